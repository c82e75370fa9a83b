// Package jobs runs the periodic background work: deck sync, cache
// pruning and the daily due digest.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/conorfennell/satprep/internal/decksync"
	"github.com/conorfennell/satprep/internal/storage"
)

// Syncer reconciles deck sources.
type Syncer interface {
	Run(ctx context.Context) ([]decksync.Result, error)
}

// DueCounter reports how many cards each owner has due.
type DueCounter interface {
	DueCounts(ctx context.Context, today time.Time) ([]storage.OwnerDue, error)
}

// Pruner drops expired in-memory entries.
type Pruner interface {
	Prune() int
}

// Notifier is told about owners with cards due today.
type Notifier interface {
	NotifyDue(ctx context.Context, ownerKey string, due int) error
}

// LogNotifier logs the digest instead of delivering it.
type LogNotifier struct{}

func (LogNotifier) NotifyDue(ctx context.Context, ownerKey string, due int) error {
	zerolog.Ctx(ctx).Info().Str("owner", ownerKey).Int("due", due).Msg("due-digest")
	return nil
}

// Config selects which jobs run and when.
type Config struct {
	SyncInterval time.Duration // 0 disables deck sync
	DigestHour   int           // UTC hour; -1 disables the digest
}

// Scheduler manages scheduled tasks for the application.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cfg       Config
	syncer    Syncer
	due       DueCounter
	notifier  Notifier
	pruners   []Pruner
	log       zerolog.Logger
	now       func() time.Time
}

// New creates a new scheduler instance. Nothing runs until Start.
func New(cfg Config, syncer Syncer, due DueCounter, notifier Notifier, log zerolog.Logger, pruners ...Pruner) *Scheduler {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		cfg:       cfg,
		syncer:    syncer,
		due:       due,
		notifier:  notifier,
		pruners:   pruners,
		log:       log,
		now:       utcNow,
	}
}

func utcNow() time.Time { return time.Now().UTC() }

// Start registers the jobs and begins running them in the background.
func (s *Scheduler) Start() error {
	if s.cfg.SyncInterval > 0 && s.syncer != nil {
		if _, err := s.scheduler.Every(s.cfg.SyncInterval).Do(s.job("deck-sync", s.RunSync)); err != nil {
			return fmt.Errorf("failed to schedule deck sync: %w", err)
		}
	}
	if len(s.pruners) > 0 {
		prune := func(context.Context) error { s.RunPrune(); return nil }
		if _, err := s.scheduler.Every(1).Minute().Do(s.job("prune", prune)); err != nil {
			return fmt.Errorf("failed to schedule pruning: %w", err)
		}
	}
	if s.cfg.DigestHour >= 0 && s.due != nil {
		at := fmt.Sprintf("%02d:00", s.cfg.DigestHour)
		if _, err := s.scheduler.Every(1).Day().At(at).Do(s.job("due-digest", s.RunDigest)); err != nil {
			return fmt.Errorf("failed to schedule due digest: %w", err)
		}
	}
	s.scheduler.StartAsync()
	s.log.Info().Int("jobs", len(s.scheduler.Jobs())).Msg("scheduler-started")
	return nil
}

// Stop terminates all scheduled tasks.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Jobs is the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.scheduler.Jobs())
}

func (s *Scheduler) job(name string, fn func(context.Context) error) func() {
	return func() {
		log := s.log.With().Str("job", name).Logger()
		ctx := log.WithContext(context.Background())
		start := time.Now()
		if err := fn(ctx); err != nil {
			log.Error().Err(err).Msg("job-failed")
			return
		}
		log.Debug().Dur("took", time.Since(start)).Msg("job-done")
	}
}

// RunSync reconciles every deck source once.
func (s *Scheduler) RunSync(ctx context.Context) error {
	results, err := s.syncer.Run(ctx)
	if err != nil {
		return err
	}
	return decksync.Err(results)
}

// RunPrune drops expired cache and rate-limit entries.
func (s *Scheduler) RunPrune() int {
	removed := 0
	for _, p := range s.pruners {
		removed += p.Prune()
	}
	return removed
}

// RunDigest notifies every owner with due cards. A failed notification does
// not stop the rest.
func (s *Scheduler) RunDigest(ctx context.Context) error {
	counts, err := s.due.DueCounts(ctx, s.now())
	if err != nil {
		return err
	}
	var failed int
	for _, c := range counts {
		if err := s.notifier.NotifyDue(ctx, c.OwnerKey, c.Due); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("owner", c.OwnerKey).Msg("notify-failed")
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d due notifications failed", failed, len(counts))
	}
	return nil
}
