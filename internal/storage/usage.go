package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/satprep/internal/domain"
)

// Usage returns how many units of kind owner has used in period.
func (db *DB) Usage(ctx context.Context, owner domain.Owner, period, kind string) (int, error) {
	var used int
	err := db.conn.GetContext(ctx, &used, db.conn.Rebind(`
		SELECT used FROM usage_counts
		WHERE owner_key = ? AND period = ? AND kind = ?
	`), owner.Key(), period, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read usage of %s for %s: %w", kind, owner, err)
	}
	return used, nil
}

// IncrementUsage adds one unit of kind for owner in period and returns the
// new total.
func (db *DB) IncrementUsage(ctx context.Context, owner domain.Owner, period, kind string) (int, error) {
	var used int
	err := db.conn.QueryRowxContext(ctx, db.conn.Rebind(`
		INSERT INTO usage_counts (owner_key, period, kind, used)
		VALUES (?, ?, ?, 1)
		ON CONFLICT (owner_key, period, kind) DO UPDATE SET used = usage_counts.used + 1
		RETURNING used
	`), owner.Key(), period, kind).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("failed to increment usage of %s for %s: %w", kind, owner, err)
	}
	return used, nil
}

// ReserveUsage takes one unit of kind for owner in period, but only while
// fewer than limit units are used. A negative limit never denies. It
// reports whether the unit was taken; the check and the increment are one
// statement, so concurrent callers cannot overshoot limit.
func (db *DB) ReserveUsage(ctx context.Context, owner domain.Owner, period, kind string, limit int) (bool, error) {
	if limit < 0 {
		_, err := db.IncrementUsage(ctx, owner, period, kind)
		return err == nil, err
	}
	if limit == 0 {
		return false, nil
	}
	var used int
	err := db.conn.QueryRowxContext(ctx, db.conn.Rebind(`
		INSERT INTO usage_counts (owner_key, period, kind, used)
		VALUES (?, ?, ?, 1)
		ON CONFLICT (owner_key, period, kind) DO UPDATE SET used = usage_counts.used + 1
		WHERE usage_counts.used < ?
		RETURNING used
	`), owner.Key(), period, kind, limit).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to reserve %s for %s: %w", kind, owner, err)
	}
	return true, nil
}

// ReleaseUsage gives back one unit taken by ReserveUsage.
func (db *DB) ReleaseUsage(ctx context.Context, owner domain.Owner, period, kind string) error {
	_, err := db.conn.ExecContext(ctx, db.conn.Rebind(`
		UPDATE usage_counts SET used = used - 1
		WHERE owner_key = ? AND period = ? AND kind = ? AND used > 0
	`), owner.Key(), period, kind)
	if err != nil {
		return fmt.Errorf("failed to release %s for %s: %w", kind, owner, err)
	}
	return nil
}
