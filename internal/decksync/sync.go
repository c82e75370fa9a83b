package decksync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/conorfennell/satprep/internal/domain"
	"github.com/conorfennell/satprep/internal/gitsource"
	"github.com/conorfennell/satprep/internal/knol"
	"github.com/conorfennell/satprep/internal/parser"
	"github.com/conorfennell/satprep/internal/storage"
)

// Store is the subset of storage the sync needs.
type Store interface {
	GetAllSources(ctx context.Context) ([]storage.Source, error)
	UpsertLibraryCards(ctx context.Context, sourceID int64, cards []domain.LibraryCard) error
	GetLibraryCardsBySource(ctx context.Context, sourceID int64) ([]domain.LibraryCard, error)
	DeleteLibraryCards(ctx context.Context, sourceID int64, hashes []string) error
	UpdateSourceLastScanned(ctx context.Context, sourceID int64, at time.Time) error
}

// Result summarises one reconciled source.
type Result struct {
	SourceID int64
	Path     string
	Parsed   int
	Orphaned int
	Errors   []error
}

// Syncer imports curated deck sources into the shared library.
type Syncer struct {
	store    Store
	reposDir string
	now      func() time.Time
}

// New returns a Syncer that clones git sources under reposDir.
func New(store Store, reposDir string) *Syncer {
	return &Syncer{store: store, reposDir: reposDir, now: utcNow}
}

func utcNow() time.Time { return time.Now().UTC() }

// Run iterates over all sources and reconciles them. A failing source is
// logged and skipped; the error only reports problems listing sources.
func (s *Syncer) Run(ctx context.Context) ([]Result, error) {
	log := zerolog.Ctx(ctx)
	log.Info().Msg("sync-start")

	sources, err := s.store.GetAllSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}
	if len(sources) == 0 {
		log.Info().Msg("No sources configured. Add one with --add-source <path/or/url.git>")
		return nil, nil
	}

	var results []Result
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		log.Info().Int64("id", source.ID).Str("type", string(source.Type)).Str("path", source.Path).Msg("sync-source")

		dir := source.Path
		if source.Type == storage.SourceGit {
			dir, err = s.fetch(ctx, source.Path)
			if err != nil {
				log.Error().Err(err).Str("url", source.Path).Msg("git-sync-failed")
				results = append(results, Result{SourceID: source.ID, Path: source.Path, Errors: []error{err}})
				continue
			}
		}

		res, err := s.reconcile(ctx, source.ID, dir)
		if err != nil {
			log.Error().Err(err).Int64("source_id", source.ID).Msg("reconcile-failed")
			res.Errors = append(res.Errors, err)
		}
		res.Path = source.Path
		results = append(results, res)
	}
	log.Info().Int("sources", len(sources)).Msg("sync-complete")
	return results, nil
}

func (s *Syncer) fetch(ctx context.Context, repoURL string) (string, error) {
	if err := os.MkdirAll(s.reposDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create repos directory: %w", err)
	}
	local, err := gitsource.LocalPath(s.reposDir, repoURL)
	if err != nil {
		return "", err
	}
	if err := gitsource.Sync(ctx, repoURL, local); err != nil {
		return "", err
	}
	return local, nil
}

// reconcile makes the library cards of sourceID match the deck files under
// dir: new and edited cards are upserted, cards no longer present deleted.
func (s *Syncer) reconcile(ctx context.Context, sourceID int64, dir string) (Result, error) {
	log := zerolog.Ctx(ctx)
	res := Result{SourceID: sourceID}

	var cards []domain.LibraryCard
	found := make(map[string]bool)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !parser.IsDeckFile(d.Name()) {
			return nil
		}
		fileCards, parseErr := parser.ParseAny(path)
		if parseErr != nil {
			res.Errors = append(res.Errors, fmt.Errorf("parsing %s: %w", path, parseErr))
		}
		override := sectionFromFileName(d.Name())
		for _, card := range fileCards {
			card = knol.WithHash(card)
			if found[card.Hash] {
				continue
			}
			found[card.Hash] = true
			section := override
			if section == "" {
				section = domain.SectionForTopic(card.Topic)
			}
			cards = append(cards, domain.LibraryCard{Card: card, Section: section, SourceID: sourceID})
		}
		return nil
	})
	if walkErr != nil {
		return res, fmt.Errorf("error walking directory %s: %w", dir, walkErr)
	}
	res.Parsed = len(cards)

	if err := s.store.UpsertLibraryCards(ctx, sourceID, cards); err != nil {
		return res, err
	}

	existing, err := s.store.GetLibraryCardsBySource(ctx, sourceID)
	if err != nil {
		return res, fmt.Errorf("error getting cards for source %d: %w", sourceID, err)
	}
	var orphans []string
	for _, c := range existing {
		if !found[c.Hash] {
			log.Debug().Str("hash", c.Hash).Msg("orphaned-card")
			orphans = append(orphans, c.Hash)
		}
	}
	if err := s.store.DeleteLibraryCards(ctx, sourceID, orphans); err != nil {
		return res, err
	}
	res.Orphaned = len(orphans)

	if err := s.store.UpdateSourceLastScanned(ctx, sourceID, s.now()); err != nil {
		log.Warn().Err(err).Int64("source_id", sourceID).Msg("Failed to update last scanned for source")
	}

	log.Info().
		Str("path", dir).
		Int("parsed_cards", res.Parsed).
		Int("orphaned_deleted", res.Orphaned).
		Int("errors", len(res.Errors)).
		Msg("reconciliation-complete")
	return res, nil
}

// sectionFromFileName lets deck authors pin a file to a section with a
// "math" or "rw" name prefix.
func sectionFromFileName(name string) domain.Section {
	name = strings.ToLower(name)
	switch {
	case strings.HasPrefix(name, "math"):
		return domain.SectionMath
	case strings.HasPrefix(name, "rw"):
		return domain.SectionReadingWriting
	}
	return ""
}

// Err joins the errors of every result, or returns nil.
func Err(results []Result) error {
	var errs []error
	for _, r := range results {
		errs = append(errs, r.Errors...)
	}
	return errors.Join(errs...)
}
