// Package quota enforces the monthly AI generation allowance of the free
// tier. The count lives in the database and is the only source of truth.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/satprep/internal/domain"
)

// KindGeneration is the usage kind recorded for every AI generation.
const KindGeneration = "generation"

var ErrQuotaExceeded = errors.New("monthly generation quota exceeded")

// Counter stores usage per owner, period and kind. ReserveUsage must check
// and take a unit atomically.
type Counter interface {
	Usage(ctx context.Context, owner domain.Owner, period, kind string) (int, error)
	ReserveUsage(ctx context.Context, owner domain.Owner, period, kind string, limit int) (bool, error)
	ReleaseUsage(ctx context.Context, owner domain.Owner, period, kind string) error
}

// Status is an owner's allowance for the current month.
type Status struct {
	Period    string `json:"period"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"` // -1 when unlimited
	Remaining int    `json:"remaining"`
}

// Unlimited reports whether the owner has no cap.
func (s Status) Unlimited() bool {
	return s.Limit < 0
}

// Quota reserves and refunds generations.
type Quota struct {
	counter Counter
	free    int
}

// New returns a Quota allowing freeMonthly generations to free and
// anonymous owners.
func New(counter Counter, freeMonthly int) *Quota {
	return &Quota{counter: counter, free: freeMonthly}
}

// Period is the UTC calendar month of t, as "YYYY-MM".
func Period(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func (q *Quota) limit(plan domain.Plan) int {
	if plan == domain.PlanPro {
		return -1
	}
	return q.free
}

// Status reports usage without changing it. Anonymous owners are passed
// with the free plan.
func (q *Quota) Status(ctx context.Context, owner domain.Owner, plan domain.Plan, now time.Time) (Status, error) {
	period := Period(now)
	used, err := q.counter.Usage(ctx, owner, period, KindGeneration)
	if err != nil {
		return Status{}, fmt.Errorf("failed to read quota: %w", err)
	}
	s := Status{Period: period, Used: used, Limit: q.limit(plan), Remaining: -1}
	if !s.Unlimited() {
		s.Remaining = max(0, s.Limit-used)
	}
	return s, nil
}

// Reservation is one generation taken from an owner's allowance.
type Reservation struct {
	Owner  domain.Owner
	Period string
}

// Reserve takes one generation from owner's allowance for the month of now,
// returning ErrQuotaExceeded when none is left. The unit is held before the
// generation runs; call Refund if the generation fails.
func (q *Quota) Reserve(ctx context.Context, owner domain.Owner, plan domain.Plan, now time.Time) (Reservation, error) {
	period := Period(now)
	ok, err := q.counter.ReserveUsage(ctx, owner, period, KindGeneration, q.limit(plan))
	if err != nil {
		return Reservation{}, fmt.Errorf("failed to reserve generation: %w", err)
	}
	if !ok {
		return Reservation{}, ErrQuotaExceeded
	}
	return Reservation{Owner: owner, Period: period}, nil
}

// Refund returns a reserved generation.
func (q *Quota) Refund(ctx context.Context, r Reservation) error {
	if err := q.counter.ReleaseUsage(ctx, r.Owner, r.Period, KindGeneration); err != nil {
		return fmt.Errorf("failed to refund generation: %w", err)
	}
	return nil
}
