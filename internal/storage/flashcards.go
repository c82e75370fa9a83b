package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/conorfennell/satprep/internal/domain"
	"github.com/conorfennell/satprep/internal/review"
)

const flashcardColumns = `id, owner_key, hash, front, back, explanation, topic, section,
	ease_factor, interval_days, repetitions, last_reviewed, next_review, rating, created_at`

type flashcardRow struct {
	ID           int64        `db:"id"`
	OwnerKey     string       `db:"owner_key"`
	Hash         string       `db:"hash"`
	Front        string       `db:"front"`
	Back         string       `db:"back"`
	Explanation  string       `db:"explanation"`
	Topic        string       `db:"topic"`
	Section      string       `db:"section"`
	EaseFactor   float64      `db:"ease_factor"`
	Interval     int          `db:"interval_days"`
	Repetitions  int          `db:"repetitions"`
	LastReviewed sql.NullTime `db:"last_reviewed"`
	NextReview   sql.NullTime `db:"next_review"`
	Rating       string       `db:"rating"`
	CreatedAt    time.Time    `db:"created_at"`
}

func (r flashcardRow) toDomain() (domain.Flashcard, error) {
	owner, err := domain.ParseOwnerKey(r.OwnerKey)
	if err != nil {
		return domain.Flashcard{}, err
	}
	state := review.State{
		EaseFactor:  r.EaseFactor,
		Interval:    r.Interval,
		Repetitions: r.Repetitions,
		Rating:      review.Rating(r.Rating),
	}
	if r.LastReviewed.Valid {
		t := r.LastReviewed.Time.UTC()
		state.LastReviewed = &t
	}
	if r.NextReview.Valid {
		t := r.NextReview.Time.UTC()
		state.NextReview = &t
	}
	return domain.Flashcard{
		ID:    r.ID,
		Owner: owner,
		Card: domain.Card{
			Front:       r.Front,
			Back:        r.Back,
			Explanation: r.Explanation,
			Topic:       r.Topic,
			Hash:        r.Hash,
		},
		Section:   domain.Section(r.Section),
		Review:    state,
		CreatedAt: r.CreatedAt.UTC(),
	}, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// NewFlashcard is the input to InsertFlashcards. Card.Hash must be set.
type NewFlashcard struct {
	domain.Card
	Section domain.Section
}

// InsertFlashcards adds cards to owner's deck with a fresh review state.
// Cards whose hash is already in the deck are skipped. It returns how many
// were inserted.
func (db *DB) InsertFlashcards(ctx context.Context, owner domain.Owner, cards []NewFlashcard, now time.Time) (int, error) {
	inserted := 0
	err := db.inTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`
			INSERT INTO flashcards (owner_key, hash, front, back, explanation, topic, section,
				ease_factor, interval_days, repetitions, rating, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, '', ?)
			ON CONFLICT (owner_key, hash) DO NOTHING
		`)
		for _, c := range cards {
			if c.Hash == "" {
				return fmt.Errorf("flashcard %q has no hash", c.Front)
			}
			res, err := tx.ExecContext(ctx, query,
				owner.Key(), c.Hash, c.Front, c.Back, c.Explanation, c.Topic, string(c.Section),
				review.DefaultEaseFactor, now.UTC())
			if err != nil {
				return fmt.Errorf("failed to insert flashcard %s: %w", c.Hash, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read affected rows: %w", err)
			}
			inserted += int(n)
		}
		return nil
	})
	return inserted, err
}

// ListFlashcards returns every card in owner's deck, oldest first.
func (db *DB) ListFlashcards(ctx context.Context, owner domain.Owner) ([]domain.Flashcard, error) {
	var rows []flashcardRow
	err := db.conn.SelectContext(ctx, &rows, db.conn.Rebind(`
		SELECT `+flashcardColumns+`
		FROM flashcards WHERE owner_key = ?
		ORDER BY id
	`), owner.Key())
	if err != nil {
		return nil, fmt.Errorf("failed to list flashcards for %s: %w", owner, err)
	}
	cards := make([]domain.Flashcard, 0, len(rows))
	for _, r := range rows {
		fc, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("failed to decode flashcard %d: %w", r.ID, err)
		}
		cards = append(cards, fc)
	}
	return cards, nil
}

// GetFlashcard returns ErrNotFound when the card does not exist or belongs
// to another owner.
func (db *DB) GetFlashcard(ctx context.Context, owner domain.Owner, id int64) (domain.Flashcard, error) {
	return getFlashcard(ctx, db.conn, owner, id)
}

func getFlashcard(ctx context.Context, q queryer, owner domain.Owner, id int64) (domain.Flashcard, error) {
	var row flashcardRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind(`
		SELECT `+flashcardColumns+`
		FROM flashcards WHERE id = ? AND owner_key = ?
	`), id, owner.Key())
	if err != nil {
		return domain.Flashcard{}, notFound(err)
	}
	return row.toDomain()
}

// GradeFlashcard applies rating to the card's schedule and records the
// review, all in one transaction.
func (db *DB) GradeFlashcard(ctx context.Context, owner domain.Owner, id int64, rating review.Rating, now time.Time) (domain.Flashcard, error) {
	var graded domain.Flashcard
	err := db.inTx(ctx, func(tx *sqlx.Tx) error {
		fc, err := getFlashcard(ctx, tx, owner, id)
		if err != nil {
			return err
		}
		next, err := review.ComputeNextReview(fc.Review, rating, now)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE flashcards
			SET ease_factor = ?, interval_days = ?, repetitions = ?,
				last_reviewed = ?, next_review = ?, rating = ?
			WHERE id = ?
		`), next.EaseFactor, next.Interval, next.Repetitions,
			nullTime(next.LastReviewed), nullTime(next.NextReview), string(next.Rating), id)
		if err != nil {
			return fmt.Errorf("failed to update flashcard %d: %w", id, err)
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO review_log (flashcard_id, owner_key, rating, interval_days, ease_factor, reviewed_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`), id, owner.Key(), string(rating), next.Interval, next.EaseFactor, now.UTC())
		if err != nil {
			return fmt.Errorf("failed to log review of flashcard %d: %w", id, err)
		}

		fc.Review = next
		graded = fc
		return nil
	})
	return graded, err
}

// DeleteFlashcard removes a card and its review history from owner's deck.
func (db *DB) DeleteFlashcard(ctx context.Context, owner domain.Owner, id int64) error {
	return db.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			DELETE FROM review_log WHERE flashcard_id = ? AND owner_key = ?
		`), id, owner.Key())
		if err != nil {
			return fmt.Errorf("failed to delete review log of flashcard %d: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			DELETE FROM flashcards WHERE id = ? AND owner_key = ?
		`), id, owner.Key())
		if err != nil {
			return fmt.Errorf("failed to delete flashcard %d: %w", id, err)
		}
		return expectRow(res)
	})
}

// ClaimAnonymous moves everything an anonymous session created to user.
// When both decks hold the same card the user's copy wins.
func (db *DB) ClaimAnonymous(ctx context.Context, anon, user domain.Owner) (int, error) {
	if anon.IsUser() || !user.IsUser() {
		return 0, fmt.Errorf("cannot claim %s for %s", anon, user)
	}
	var claimed int
	err := db.inTx(ctx, func(tx *sqlx.Tx) error {
		from, to := anon.Key(), user.Key()
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			DELETE FROM review_log WHERE flashcard_id IN (
				SELECT id FROM flashcards
				WHERE owner_key = ? AND hash IN (SELECT hash FROM flashcards WHERE owner_key = ?)
			)
		`), from, to)
		if err != nil {
			return fmt.Errorf("failed to drop duplicate review logs: %w", err)
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			DELETE FROM flashcards
			WHERE owner_key = ? AND hash IN (SELECT hash FROM flashcards WHERE owner_key = ?)
		`), from, to)
		if err != nil {
			return fmt.Errorf("failed to drop duplicate flashcards: %w", err)
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE flashcards SET owner_key = ? WHERE owner_key = ?`), to, from)
		if err != nil {
			return fmt.Errorf("failed to claim flashcards: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		claimed = int(n)

		for _, stmt := range []string{
			`UPDATE review_log SET owner_key = ? WHERE owner_key = ?`,
			`UPDATE practice_questions SET owner_key = ? WHERE owner_key = ?`,
			`UPDATE practice_attempts SET owner_key = ? WHERE owner_key = ?`,
		} {
			if _, err := tx.ExecContext(ctx, tx.Rebind(stmt), to, from); err != nil {
				return fmt.Errorf("failed to claim anonymous history: %w", err)
			}
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE study_plans SET owner_key = ?
			WHERE owner_key = ? AND NOT EXISTS (SELECT 1 FROM study_plans WHERE owner_key = ?)
		`), to, from, to)
		if err != nil {
			return fmt.Errorf("failed to claim study plan: %w", err)
		}
		return nil
	})
	return claimed, err
}

// OwnerDue is the number of due cards in one owner's deck.
type OwnerDue struct {
	OwnerKey string `db:"owner_key"`
	Due      int    `db:"due"`
}

// DueCounts returns, for every owner with at least one due card, how many
// cards are due on today's date.
func (db *DB) DueCounts(ctx context.Context, today time.Time) ([]OwnerDue, error) {
	var counts []OwnerDue
	err := db.conn.SelectContext(ctx, &counts, db.conn.Rebind(`
		SELECT owner_key, COUNT(*) AS due
		FROM flashcards
		WHERE next_review IS NULL OR next_review <= ?
		GROUP BY owner_key
		ORDER BY owner_key
	`), review.Date(today).UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to count due flashcards: %w", err)
	}
	return counts, nil
}

// ReviewStats counts graded reviews for an owner.
type ReviewStats struct {
	Total int `db:"total" json:"total"`
	Today int `db:"today" json:"today"`
}

// ReviewStats summarises owner's review log.
func (db *DB) ReviewStats(ctx context.Context, owner domain.Owner, today time.Time) (ReviewStats, error) {
	var stats ReviewStats
	err := db.conn.GetContext(ctx, &stats, db.conn.Rebind(`
		SELECT COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN reviewed_at >= ? THEN 1 ELSE 0 END), 0) AS today
		FROM review_log WHERE owner_key = ?
	`), review.Date(today).UTC(), owner.Key())
	if err != nil {
		return ReviewStats{}, fmt.Errorf("failed to read review stats for %s: %w", owner, err)
	}
	return stats, nil
}

// ReviewLog returns owner's most recent reviews, newest first.
func (db *DB) ReviewLog(ctx context.Context, owner domain.Owner, limit int) ([]domain.ReviewLogEntry, error) {
	var rows []struct {
		FlashcardID int64     `db:"flashcard_id"`
		Rating      string    `db:"rating"`
		Interval    int       `db:"interval_days"`
		EaseFactor  float64   `db:"ease_factor"`
		ReviewedAt  time.Time `db:"reviewed_at"`
	}
	err := db.conn.SelectContext(ctx, &rows, db.conn.Rebind(`
		SELECT flashcard_id, rating, interval_days, ease_factor, reviewed_at
		FROM review_log WHERE owner_key = ?
		ORDER BY reviewed_at DESC, id DESC
		LIMIT ?
	`), owner.Key(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read review log for %s: %w", owner, err)
	}
	entries := make([]domain.ReviewLogEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, domain.ReviewLogEntry{
			FlashcardID: r.FlashcardID,
			Rating:      review.Rating(r.Rating),
			ReviewedAt:  r.ReviewedAt.UTC(),
			Interval:    r.Interval,
			EaseFactor:  r.EaseFactor,
		})
	}
	return entries, nil
}
