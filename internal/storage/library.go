package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/conorfennell/satprep/internal/domain"
	"github.com/conorfennell/satprep/internal/review"
)

type libraryRow struct {
	SourceID    int64  `db:"source_id"`
	Hash        string `db:"hash"`
	Front       string `db:"front"`
	Back        string `db:"back"`
	Explanation string `db:"explanation"`
	Topic       string `db:"topic"`
	Section     string `db:"section"`
}

// UpsertLibraryCards stores cards for a source, refreshing the text of any
// card whose hash is already known.
func (db *DB) UpsertLibraryCards(ctx context.Context, sourceID int64, cards []domain.LibraryCard) error {
	return db.inTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`
			INSERT INTO library_cards (source_id, hash, front, back, explanation, topic, section)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (source_id, hash) DO UPDATE SET
				front = excluded.front,
				back = excluded.back,
				explanation = excluded.explanation,
				topic = excluded.topic,
				section = excluded.section
		`)
		for _, c := range cards {
			_, err := tx.ExecContext(ctx, query,
				sourceID, c.Hash, c.Front, c.Back, c.Explanation, c.Topic, string(c.Section))
			if err != nil {
				return fmt.Errorf("failed to upsert library card %s: %w", c.Hash, err)
			}
		}
		return nil
	})
}

// GetLibraryCardsBySource retrieves all library cards imported from a source.
func (db *DB) GetLibraryCardsBySource(ctx context.Context, sourceID int64) ([]domain.LibraryCard, error) {
	var rows []libraryRow
	err := db.conn.SelectContext(ctx, &rows, db.conn.Rebind(`
		SELECT source_id, hash, front, back, explanation, topic, section
		FROM library_cards WHERE source_id = ?
		ORDER BY id
	`), sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get library cards for source ID %d: %w", sourceID, err)
	}
	cards := make([]domain.LibraryCard, 0, len(rows))
	for _, r := range rows {
		cards = append(cards, domain.LibraryCard{
			Card: domain.Card{
				Front:       r.Front,
				Back:        r.Back,
				Explanation: r.Explanation,
				Topic:       r.Topic,
				Hash:        r.Hash,
			},
			Section:  domain.Section(r.Section),
			SourceID: r.SourceID,
		})
	}
	return cards, nil
}

// DeleteLibraryCards removes the given hashes from a source.
func (db *DB) DeleteLibraryCards(ctx context.Context, sourceID int64, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM library_cards WHERE source_id = ? AND hash IN (?)`, sourceID, hashes)
	if err != nil {
		return fmt.Errorf("failed to build delete for source ID %d: %w", sourceID, err)
	}
	if _, err := db.conn.ExecContext(ctx, db.conn.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to delete library cards for source ID %d: %w", sourceID, err)
	}
	return nil
}

// Topic is a library topic with the number of cards available in it.
type Topic struct {
	Name    string         `db:"topic" json:"topic"`
	Section domain.Section `db:"section" json:"section"`
	Cards   int            `db:"cards" json:"cards"`
}

// LibraryTopics lists the topics across all sources, grouped by section.
func (db *DB) LibraryTopics(ctx context.Context) ([]Topic, error) {
	var topics []Topic
	err := db.conn.SelectContext(ctx, &topics, `
		SELECT topic, section, COUNT(*) AS cards
		FROM library_cards
		GROUP BY topic, section
		ORDER BY section, topic
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list library topics: %w", err)
	}
	return topics, nil
}

// AddTopicToDeck copies every library card of topic into owner's deck,
// skipping cards the owner already has. It returns how many were added.
func (db *DB) AddTopicToDeck(ctx context.Context, owner domain.Owner, topic string, now time.Time) (int, error) {
	res, err := db.conn.ExecContext(ctx, db.conn.Rebind(`
		INSERT INTO flashcards (owner_key, hash, front, back, explanation, topic, section,
			ease_factor, interval_days, repetitions, rating, created_at)
		SELECT ?, hash, front, back, explanation, topic, section, ?, 0, 0, '', ?
		FROM library_cards WHERE topic = ?
		ON CONFLICT (owner_key, hash) DO NOTHING
	`), owner.Key(), review.DefaultEaseFactor, now.UTC(), topic)
	if err != nil {
		return 0, fmt.Errorf("failed to add topic %q to deck of %s: %w", topic, owner, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(n), nil
}
