package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/conorfennell/satprep/internal/domain"
)

// questionPayload is the JSON column holding the question text.
type questionPayload struct {
	Passage     string          `json:"passage,omitempty"`
	Prompt      string          `json:"prompt"`
	Choices     []domain.Choice `json:"choices"`
	Answer      string          `json:"answer"`
	Explanation string          `json:"explanation"`
}

type questionRow struct {
	ID         int64     `db:"id"`
	OwnerKey   string    `db:"owner_key"`
	Section    string    `db:"section"`
	Topic      string    `db:"topic"`
	Difficulty string    `db:"difficulty"`
	Payload    string    `db:"payload"`
	CreatedAt  time.Time `db:"created_at"`
}

// InsertPracticeQuestion stores a generated question and returns it with its
// ID set.
func (db *DB) InsertPracticeQuestion(ctx context.Context, q domain.PracticeQuestion) (domain.PracticeQuestion, error) {
	payload, err := json.Marshal(questionPayload{
		Passage:     q.Passage,
		Prompt:      q.Prompt,
		Choices:     q.Choices,
		Answer:      q.Answer,
		Explanation: q.Explanation,
	})
	if err != nil {
		return q, fmt.Errorf("failed to encode practice question: %w", err)
	}
	q.CreatedAt = q.CreatedAt.UTC()
	err = db.conn.QueryRowxContext(ctx, db.conn.Rebind(`
		INSERT INTO practice_questions (owner_key, section, topic, difficulty, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`), q.Owner.Key(), string(q.Section), q.Topic, string(q.Difficulty), string(payload), q.CreatedAt).Scan(&q.ID)
	if err != nil {
		return q, fmt.Errorf("failed to insert practice question: %w", err)
	}
	return q, nil
}

// GetPracticeQuestion returns ErrNotFound when the question does not exist
// or belongs to another owner.
func (db *DB) GetPracticeQuestion(ctx context.Context, owner domain.Owner, id int64) (domain.PracticeQuestion, error) {
	var row questionRow
	err := db.conn.GetContext(ctx, &row, db.conn.Rebind(`
		SELECT id, owner_key, section, topic, difficulty, payload, created_at
		FROM practice_questions WHERE id = ? AND owner_key = ?
	`), id, owner.Key())
	if err != nil {
		return domain.PracticeQuestion{}, notFound(err)
	}
	var p questionPayload
	if err := json.Unmarshal([]byte(row.Payload), &p); err != nil {
		return domain.PracticeQuestion{}, fmt.Errorf("failed to decode practice question %d: %w", id, err)
	}
	return domain.PracticeQuestion{
		ID:          row.ID,
		Owner:       owner,
		Section:     domain.Section(row.Section),
		Topic:       row.Topic,
		Difficulty:  domain.Difficulty(row.Difficulty),
		Passage:     p.Passage,
		Prompt:      p.Prompt,
		Choices:     p.Choices,
		Answer:      p.Answer,
		Explanation: p.Explanation,
		CreatedAt:   row.CreatedAt.UTC(),
	}, nil
}

// InsertPracticeAttempt records an answer.
func (db *DB) InsertPracticeAttempt(ctx context.Context, a domain.PracticeAttempt) error {
	_, err := db.conn.ExecContext(ctx, db.conn.Rebind(`
		INSERT INTO practice_attempts (question_id, owner_key, section, topic, choice, correct, answered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), a.QuestionID, a.Owner.Key(), string(a.Section), a.Topic, a.Choice, a.Correct, a.AnsweredAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record attempt at question %d: %w", a.QuestionID, err)
	}
	return nil
}

// PracticeAccuracy returns per-section attempt and correct counts for owner.
// Sections without attempts are omitted.
func (db *DB) PracticeAccuracy(ctx context.Context, owner domain.Owner) ([]domain.SectionAccuracy, error) {
	var stats []domain.SectionAccuracy
	err := db.conn.SelectContext(ctx, &stats, db.conn.Rebind(`
		SELECT section, COUNT(*) AS attempts,
			COALESCE(SUM(CASE WHEN correct THEN 1 ELSE 0 END), 0) AS correct
		FROM practice_attempts WHERE owner_key = ?
		GROUP BY section
		ORDER BY section
	`), owner.Key())
	if err != nil {
		return nil, fmt.Errorf("failed to read practice accuracy for %s: %w", owner, err)
	}
	return stats, nil
}
