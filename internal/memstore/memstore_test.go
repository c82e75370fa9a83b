package memstore

import (
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func TestGetSetExpiry(t *testing.T) {
	is := is.New(t)
	clock := newClock()
	s := New[string](time.Minute, WithClock(clock.Now))

	_, ok := s.Get("a")
	is.True(!ok)

	s.Set("a", "alpha")
	v, ok := s.Get("a")
	is.True(ok)
	is.Equal(v, "alpha")

	clock.Advance(59 * time.Second)
	_, ok = s.Get("a")
	is.True(ok)

	clock.Advance(time.Second)
	_, ok = s.Get("a")
	is.True(!ok) // expired exactly at the deadline
	is.Equal(s.Len(), 1)
	is.Equal(s.Prune(), 1)
	is.Equal(s.Len(), 0)
}

func TestNoTTL(t *testing.T) {
	is := is.New(t)
	clock := newClock()
	s := New[int](0, WithClock(clock.Now))
	s.Set("k", 1)
	clock.Advance(24 * 365 * time.Hour)
	v, ok := s.Get("k")
	is.True(ok)
	is.Equal(v, 1)
	is.Equal(s.Prune(), 0)

	s.Delete("k")
	_, ok = s.Get("k")
	is.True(!ok)
}

func TestUpdate(t *testing.T) {
	is := is.New(t)
	clock := newClock()
	s := New[int](time.Minute, WithClock(clock.Now))

	incr := func(old int, found bool) (int, bool) { return old + 1, true }

	is.Equal(s.Update("n", incr), 1)
	clock.Advance(30 * time.Second)
	is.Equal(s.Update("n", incr), 2)

	// keepExpiry holds the first deadline, so the entry expires one minute
	// after it was created, not after the last update.
	clock.Advance(30 * time.Second)
	_, ok := s.Get("n")
	is.True(!ok)
	is.Equal(s.Update("n", incr), 1)
}

func TestConcurrentUpdate(t *testing.T) {
	is := is.New(t)
	s := New[int](time.Hour)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update("n", func(old int, _ bool) (int, bool) { return old + 1, true })
		}()
	}
	wg.Wait()
	v, _ := s.Get("n")
	is.Equal(v, 50)
}
