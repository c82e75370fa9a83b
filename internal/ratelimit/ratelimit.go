// Package ratelimit implements a fixed-window request limiter keyed by
// client, backed by a memstore.
package ratelimit

import (
	"time"

	"github.com/conorfennell/satprep/internal/memstore"
)

type window struct {
	count int
	start time.Time
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long the caller should wait before the window resets.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || !d.ResetAt.After(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

// Limiter allows at most limit requests per key in each window.
type Limiter struct {
	limit   int
	window  time.Duration
	windows *memstore.Store[window]
	now     func() time.Time
}

// New returns a Limiter. A nil clock means time.Now.
func New(limit int, per time.Duration, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		limit:   limit,
		window:  per,
		windows: memstore.New[window](per, memstore.WithClock(now)),
		now:     now,
	}
}

// Allow counts one request for key and reports whether it fits in the
// current window. Denied requests are not counted.
func (l *Limiter) Allow(key string) Decision {
	now := l.now()
	var allowed bool
	w := l.windows.Update(key, func(old window, found bool) (window, bool) {
		if !found {
			old = window{start: now}
		}
		allowed = old.count < l.limit
		if allowed {
			old.count++
		}
		return old, true
	})
	return Decision{
		Allowed:   allowed,
		Limit:     l.limit,
		Remaining: max(0, l.limit-w.count),
		ResetAt:   w.start.Add(l.window),
	}
}

// Reset forgets key's window.
func (l *Limiter) Reset(key string) {
	l.windows.Delete(key)
}

// Prune drops finished windows.
func (l *Limiter) Prune() int {
	return l.windows.Prune()
}
