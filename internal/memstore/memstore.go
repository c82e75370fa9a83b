// Package memstore is a small in-process key/value store with per-entry
// expiry. It backs the rate limiter and the lesson cache.
package memstore

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time // zero means no expiry
}

// Store is safe for concurrent use.
type Store[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	now func() time.Time
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) { o.now = now }
}

// New returns a Store whose entries expire ttl after they were last set.
// A ttl of zero keeps entries until deleted.
func New[V any](ttl time.Duration, opts ...Option) *Store[V] {
	o := storeOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		now:     o.now,
	}
}

func (s *Store[V]) expired(e entry[V], now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func (s *Store[V]) expiry(now time.Time) time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(s.ttl)
}

// Get returns the live value for key.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || s.expired(e, s.now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with a fresh expiry.
func (s *Store[V]) Set(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[V]{value: value, expiresAt: s.expiry(s.now())}
}

// Update atomically replaces the value under key with fn(old, found).
// An expired entry is passed as not found. When fn keeps the expiry, the
// entry's original deadline is preserved; otherwise it gets a fresh TTL.
func (s *Store[V]) Update(key string, fn func(old V, found bool) (V, bool)) V {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e, ok := s.entries[key]
	if ok && s.expired(e, now) {
		ok = false
		e = entry[V]{}
	}
	value, keepExpiry := fn(e.value, ok)
	expiresAt := s.expiry(now)
	if ok && keepExpiry {
		expiresAt = e.expiresAt
	}
	s.entries[key] = entry[V]{value: value, expiresAt: expiresAt}
	return value
}

// Delete removes key.
func (s *Store[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Prune drops expired entries and returns how many were removed.
func (s *Store[V]) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Len counts stored entries, including expired ones not yet pruned.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
