package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/conorfennell/satprep/internal/ai"
	"github.com/conorfennell/satprep/internal/auth"
	"github.com/conorfennell/satprep/internal/config"
	"github.com/conorfennell/satprep/internal/decksync"
	"github.com/conorfennell/satprep/internal/domain"
	"github.com/conorfennell/satprep/internal/gitsource"
	"github.com/conorfennell/satprep/internal/jobs"
	"github.com/conorfennell/satprep/internal/memstore"
	"github.com/conorfennell/satprep/internal/quota"
	"github.com/conorfennell/satprep/internal/ratelimit"
	"github.com/conorfennell/satprep/internal/storage"
	"github.com/conorfennell/satprep/internal/web"
)

const GracefulShutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("satprep")
	}
}

func run(args []string) error {
	f := config.Flags()
	syncOnce := f.Bool("sync", false, "run one deck sync and exit")
	addSource := f.String("add-source", "", "register a local directory or git URL as a deck source and exit")
	setPlan := f.String("set-plan", "", "change a user's plan, as email=free|pro, and exit")
	migrateOnly := f.Bool("migrate-only", false, "apply database migrations and exit")
	if err := f.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(f)
	if err != nil {
		return err
	}

	logger := cfg.Log.Logger(os.Stderr)
	zerolog.SetGlobalLevel(cfg.Log.ZerologLevel())
	log.Logger = logger
	ctx := logger.WithContext(context.Background())

	if *migrateOnly {
		if err := storage.Migrate(cfg.Database.Driver, cfg.Database.DSN); err != nil {
			return err
		}
		logger.Info().Str("driver", cfg.Database.Driver).Msg("migrations-applied")
		return nil
	}

	db, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info().Str("driver", db.Driver()).Msg("database-opened")

	syncer := decksync.New(db, cfg.Sources.ReposDir)

	switch {
	case *addSource != "":
		return registerSource(ctx, db, *addSource)
	case *setPlan != "":
		return changePlan(ctx, db, *setPlan)
	case *syncOnce:
		results, err := syncer.Run(ctx)
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Printf("%s: %d cards, %d removed, %d errors\n", r.Path, r.Parsed, r.Orphaned, len(r.Errors))
		}
		return decksync.Err(results)
	}

	if len(cfg.Auth.Admins) == 0 {
		logger.Info().Msg("auth.admins is empty, deck sources can only be managed with --add-source")
	}
	if cfg.AI.APIKey == "" {
		logger.Warn().Msg("ai.api_key is empty, generation requests will fail")
	}
	lessons := memstore.New[domain.Lesson](cfg.Limits.LessonCacheTTL)
	authLimiter := ratelimit.New(cfg.Limits.RequestsPerWindow, cfg.Limits.Window, nil)
	genLimiter := ratelimit.New(cfg.Limits.RequestsPerWindow, cfg.Limits.Window, nil)

	server, err := web.NewServer(web.Deps{
		DB: db,
		Generator: ai.New(ai.Config{
			BaseURL:   cfg.AI.BaseURL,
			APIKey:    cfg.AI.APIKey,
			Model:     cfg.AI.Model,
			MaxTokens: cfg.AI.MaxTokens,
			Timeout:   cfg.AI.Timeout,
		}),
		Syncer:        syncer,
		Tokens:        auth.NewTokens(cfg.Auth.Secret, cfg.Auth.TokenTTL),
		Quota:         quota.New(db, cfg.Limits.FreeMonthlyGenerations),
		AuthLimiter:   authLimiter,
		GenLimiter:    genLimiter,
		Lessons:       lessons,
		Logger:        logger,
		SecureCookies: cfg.Auth.SecureCookies,
		Admins:        cfg.Auth.Admins,
		LocalRoot:     cfg.Sources.LocalRoot,
	})
	if err != nil {
		return err
	}

	scheduler := jobs.New(jobs.Config{
		SyncInterval: cfg.Sources.SyncInterval,
		DigestHour:   cfg.Jobs.DigestHour,
	}, syncer, db, jobs.LogNotifier{}, logger, lessons, authLimiter, genLimiter)
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	idleConnsClosed := make(chan struct{})

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info().Msg("got quit signal...")
		ctx, cancel := context.WithTimeout(context.Background(), GracefulShutdownTimeout)
		if err := srv.Shutdown(ctx); err != nil {
			// Error from closing listeners, or context timeout:
			logger.Error().Err(err).Msg("http-shutdown")
		}
		cancel()
		close(idleConnsClosed)
	}()

	logger.Info().Str("addr", cfg.Addr).Int("jobs", scheduler.Jobs()).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-idleConnsClosed
	logger.Info().Msg("server gracefully shutting down")
	return nil
}

func registerSource(ctx context.Context, db *storage.DB, path string) error {
	typ := storage.SourceGit
	if !gitsource.IsGitURL(path) {
		typ = storage.SourceLocal
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			return fmt.Errorf("%s is not a directory", abs)
		}
		path = abs
	}
	src, err := db.InsertSource(ctx, path, typ)
	if err != nil {
		return err
	}
	fmt.Printf("Source %d: %s (%s)\n", src.ID, src.Path, src.Type)
	return nil
}

func changePlan(ctx context.Context, db *storage.DB, arg string) error {
	email, plan, ok := strings.Cut(arg, "=")
	if !ok || email == "" {
		return fmt.Errorf("--set-plan wants email=plan, got %q", arg)
	}
	if err := db.SetUserPlan(ctx, email, domain.Plan(plan)); err != nil {
		return err
	}
	fmt.Printf("%s is now on the %s plan\n", email, plan)
	return nil
}
