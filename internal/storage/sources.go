package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SourceType tells the sync job how to fetch a source.
type SourceType string

const (
	SourceLocal SourceType = "local"
	SourceGit   SourceType = "git"
)

// Source represents a card source, either a local path or a Git URL.
type Source struct {
	ID          int64        `db:"id"`
	Path        string       `db:"path"`
	Type        SourceType   `db:"type"`
	LastScanned sql.NullTime `db:"last_scanned"`
}

// InsertSource registers a new source and returns it. Registering the same
// path twice returns the existing source.
func (db *DB) InsertSource(ctx context.Context, path string, typ SourceType) (Source, error) {
	_, err := db.conn.ExecContext(ctx, db.conn.Rebind(`
		INSERT INTO sources (path, type)
		VALUES (?, ?)
		ON CONFLICT (path) DO NOTHING
	`), path, string(typ))
	if err != nil {
		return Source{}, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	return db.FindSourceByPath(ctx, path)
}

// FindSourceByPath retrieves a source from the database by its path.
func (db *DB) FindSourceByPath(ctx context.Context, path string) (Source, error) {
	var s Source
	err := db.conn.GetContext(ctx, &s, db.conn.Rebind(`
		SELECT id, path, type, last_scanned
		FROM sources WHERE path = ?
	`), path)
	if err != nil {
		return Source{}, notFound(err)
	}
	return s, nil
}

// GetAllSources retrieves all stored sources from the database.
func (db *DB) GetAllSources(ctx context.Context) ([]Source, error) {
	var sources []Source
	err := db.conn.SelectContext(ctx, &sources, `
		SELECT id, path, type, last_scanned
		FROM sources ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	return sources, nil
}

// UpdateSourceLastScanned updates the last_scanned timestamp for a source.
func (db *DB) UpdateSourceLastScanned(ctx context.Context, sourceID int64, at time.Time) error {
	res, err := db.conn.ExecContext(ctx, db.conn.Rebind(`
		UPDATE sources
		SET last_scanned = ?
		WHERE id = ?
	`), at.UTC(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", sourceID, err)
	}
	return expectRow(res)
}

// DeleteSource removes a source and every library card imported from it.
// Cards already copied into personal decks are kept.
func (db *DB) DeleteSource(ctx context.Context, sourceID int64) error {
	return db.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM library_cards WHERE source_id = ?`), sourceID)
		if err != nil {
			return fmt.Errorf("failed to delete library cards of source ID %d: %w", sourceID, err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM sources WHERE id = ?`), sourceID)
		if err != nil {
			return fmt.Errorf("failed to delete source ID %d: %w", sourceID, err)
		}
		return expectRow(res)
	})
}
