package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/conorfennell/satprep/internal/domain"
)

// SaveStudyPlan replaces owner's study plan.
func (db *DB) SaveStudyPlan(ctx context.Context, plan domain.StudyPlan) error {
	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to encode study plan: %w", err)
	}
	_, err = db.conn.ExecContext(ctx, db.conn.Rebind(`
		INSERT INTO study_plans (owner_key, payload, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (owner_key) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at
	`), plan.Owner.Key(), string(payload), plan.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save study plan for %s: %w", plan.Owner, err)
	}
	return nil
}

// GetStudyPlan returns ErrNotFound when owner has no plan yet.
func (db *DB) GetStudyPlan(ctx context.Context, owner domain.Owner) (domain.StudyPlan, error) {
	var row struct {
		Payload   string    `db:"payload"`
		CreatedAt time.Time `db:"created_at"`
	}
	err := db.conn.GetContext(ctx, &row, db.conn.Rebind(`
		SELECT payload, created_at FROM study_plans WHERE owner_key = ?
	`), owner.Key())
	if err != nil {
		return domain.StudyPlan{}, notFound(err)
	}
	var plan domain.StudyPlan
	if err := json.Unmarshal([]byte(row.Payload), &plan); err != nil {
		return domain.StudyPlan{}, fmt.Errorf("failed to decode study plan for %s: %w", owner, err)
	}
	plan.Owner = owner
	plan.CreatedAt = row.CreatedAt.UTC()
	return plan, nil
}
