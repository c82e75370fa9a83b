package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/satprep/internal/domain"
)

type userRow struct {
	ID           int64     `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Plan         string    `db:"plan"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Plan:         domain.Plan(r.Plan),
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

// CreateUser stores a new account on the free plan. Emails are compared
// case-insensitively.
func (db *DB) CreateUser(ctx context.Context, email, passwordHash string, now time.Time) (domain.User, error) {
	email = normalizeEmail(email)
	var id int64
	err := db.conn.QueryRowxContext(ctx, db.conn.Rebind(`
		INSERT INTO users (email, password_hash, plan, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`), email, passwordHash, string(domain.PlanFree), now.UTC()).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("failed to create user %s: %w", email, err)
	}
	return domain.User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		Plan:         domain.PlanFree,
		CreatedAt:    now.UTC(),
	}, nil
}

// FindUserByEmail returns ErrNotFound when no account uses email.
func (db *DB) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var row userRow
	err := db.conn.GetContext(ctx, &row, db.conn.Rebind(`
		SELECT id, email, password_hash, plan, created_at
		FROM users WHERE email = ?
	`), normalizeEmail(email))
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return row.toDomain(), nil
}

// FindUserByID returns ErrNotFound when the account does not exist.
func (db *DB) FindUserByID(ctx context.Context, id int64) (domain.User, error) {
	var row userRow
	err := db.conn.GetContext(ctx, &row, db.conn.Rebind(`
		SELECT id, email, password_hash, plan, created_at
		FROM users WHERE id = ?
	`), id)
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return row.toDomain(), nil
}

// SetUserPlan changes the subscription tier of the account with email.
func (db *DB) SetUserPlan(ctx context.Context, email string, plan domain.Plan) error {
	if !plan.IsValid() {
		return fmt.Errorf("unknown plan %q", plan)
	}
	res, err := db.conn.ExecContext(ctx, db.conn.Rebind(`
		UPDATE users SET plan = ? WHERE email = ?
	`), string(plan), normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to set plan for %s: %w", email, err)
	}
	return expectRow(res)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
