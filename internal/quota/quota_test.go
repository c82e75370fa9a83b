package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/conorfennell/satprep/internal/domain"
)

type memCounter struct {
	mu   sync.Mutex
	used map[string]int
}

func newMemCounter() *memCounter {
	return &memCounter{used: map[string]int{}}
}

func (m *memCounter) Usage(_ context.Context, owner domain.Owner, period, kind string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used[owner.Key()+"|"+period+"|"+kind], nil
}

func (m *memCounter) ReserveUsage(_ context.Context, owner domain.Owner, period, kind string, limit int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := owner.Key() + "|" + period + "|" + kind
	if limit >= 0 && m.used[k] >= limit {
		return false, nil
	}
	m.used[k]++
	return true, nil
}

func (m *memCounter) ReleaseUsage(_ context.Context, owner domain.Owner, period, kind string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := owner.Key() + "|" + period + "|" + kind
	if m.used[k] > 0 {
		m.used[k]--
	}
	return nil
}

func TestFreeTierMonthlyLimit(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	q := New(newMemCounter(), 2)
	owner := domain.AnonOwner("s1")
	march := time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)

	for range 2 {
		r, err := q.Reserve(ctx, owner, domain.PlanFree, march)
		is.NoErr(err)
		is.Equal(r.Period, "2025-03")
	}
	_, err := q.Reserve(ctx, owner, domain.PlanFree, march)
	is.True(errors.Is(err, ErrQuotaExceeded))

	s, err := q.Status(ctx, owner, domain.PlanFree, march)
	is.NoErr(err)
	is.Equal(s, Status{Period: "2025-03", Used: 2, Limit: 2, Remaining: 0})

	april := march.Add(2 * time.Hour)
	_, err = q.Reserve(ctx, owner, domain.PlanFree, april)
	is.NoErr(err)
}

func TestRefundReturnsTheGeneration(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	q := New(newMemCounter(), 1)
	owner := domain.UserOwner(7)
	now := time.Date(2025, 3, 31, 23, 30, 0, 0, time.UTC)

	r, err := q.Reserve(ctx, owner, domain.PlanFree, now)
	is.NoErr(err)
	_, err = q.Reserve(ctx, owner, domain.PlanFree, now)
	is.True(errors.Is(err, ErrQuotaExceeded))

	// the refund lands in the reserved month even after it has ended
	is.NoErr(q.Refund(ctx, r))
	s, err := q.Status(ctx, owner, domain.PlanFree, now)
	is.NoErr(err)
	is.Equal(s.Used, 0)
	_, err = q.Reserve(ctx, owner, domain.PlanFree, now)
	is.NoErr(err)
}

func TestConcurrentReservesStopAtLimit(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	q := New(newMemCounter(), 3)
	owner := domain.AnonOwner("burst")
	now := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := q.Reserve(ctx, owner, domain.PlanFree, now); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	is.Equal(granted, 3)
}

func TestProIsUnlimited(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	q := New(newMemCounter(), 0)
	owner := domain.UserOwner(1)
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := q.Reserve(ctx, owner, domain.PlanFree, now)
	is.True(errors.Is(err, ErrQuotaExceeded))
	for range 10 {
		_, err := q.Reserve(ctx, owner, domain.PlanPro, now)
		is.NoErr(err)
	}
	s, err := q.Status(ctx, owner, domain.PlanPro, now)
	is.NoErr(err)
	is.True(s.Unlimited())
	is.Equal(s.Used, 10)
}

func TestPeriodUsesUTC(t *testing.T) {
	is := is.New(t)
	tz := time.FixedZone("UTC-5", -5*3600)
	is.Equal(Period(time.Date(2025, 3, 31, 21, 0, 0, 0, tz)), "2025-04")
}
