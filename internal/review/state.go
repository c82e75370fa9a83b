package review

import (
	"math"
	"time"
)

const (
	// DefaultEaseFactor is the ease factor of a card that has never been graded.
	DefaultEaseFactor = 2.5
	// MinEaseFactor is the floor applied after every grade.
	MinEaseFactor = 1.3
	// MaxInterval caps the interval at roughly a hundred years.
	MaxInterval = 36500
)

// State is the scheduling record stored alongside every flashcard.
type State struct {
	EaseFactor   float64    `json:"easeFactor"`
	Interval     int        `json:"interval"`
	Repetitions  int        `json:"repetitions"`
	LastReviewed *time.Time `json:"lastReviewed,omitempty"` // nil before the first grade.
	NextReview   *time.Time `json:"nextReview,omitempty"`   // nil before the first grade.
	Rating       Rating     `json:"rating,omitempty"`
}

// NewState returns the state of a freshly created flashcard. It is due
// immediately.
func NewState() State {
	return State{EaseFactor: DefaultEaseFactor}
}

// ReviewState lets State satisfy Scheduled.
func (s State) ReviewState() State {
	return s
}

// Clamp pulls every numeric field back inside its invariant range. Stored
// states may come from older versions of the scheduler.
func (s State) Clamp() State {
	out := s.clone()
	switch {
	case math.IsNaN(out.EaseFactor) || math.IsInf(out.EaseFactor, 0):
		out.EaseFactor = DefaultEaseFactor
	case out.EaseFactor < MinEaseFactor:
		out.EaseFactor = MinEaseFactor
	}
	if out.Interval < 0 {
		out.Interval = 0
	}
	if out.Interval > MaxInterval {
		out.Interval = MaxInterval
	}
	if out.Repetitions < 0 {
		out.Repetitions = 0
	}
	return out
}

// Reviewed reports whether the card has been graded at least once.
func (s State) Reviewed() bool {
	return s.NextReview != nil
}

func (s State) clone() State {
	out := s
	if s.LastReviewed != nil {
		v := *s.LastReviewed
		out.LastReviewed = &v
	}
	if s.NextReview != nil {
		v := *s.NextReview
		out.NextReview = &v
	}
	return out
}

// Date truncates t to midnight in t's own location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
