package review

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)

func mustGrade(t *testing.T, s State, r Rating, now time.Time) State {
	t.Helper()
	next, err := ComputeNextReview(s, r, now)
	require.NoError(t, err)
	return next
}

func datePtr(y int, m time.Month, d int) *time.Time {
	v := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &v
}

func TestNewState(t *testing.T) {
	s := NewState()
	assert.Equal(t, DefaultEaseFactor, s.EaseFactor)
	assert.Zero(t, s.Interval)
	assert.Zero(t, s.Repetitions)
	assert.Nil(t, s.LastReviewed)
	assert.Nil(t, s.NextReview)
	assert.True(t, IsDue(s, t0))
}

func TestConsecutiveGotIt(t *testing.T) {
	s := NewState()

	s = mustGrade(t, s, GotIt, t0)
	assert.Equal(t, 1, s.Interval)
	assert.Equal(t, 1, s.Repetitions)
	assert.InDelta(t, 2.6, s.EaseFactor, 1e-9)

	s = mustGrade(t, s, GotIt, t0.AddDate(0, 0, 1))
	assert.Equal(t, 3, s.Interval)
	assert.Equal(t, 2, s.Repetitions)
	assert.InDelta(t, 2.7, s.EaseFactor, 1e-9)

	s = mustGrade(t, s, GotIt, t0.AddDate(0, 0, 4))
	assert.Equal(t, 8, s.Interval) // round(3 * 2.7)
	assert.Equal(t, 3, s.Repetitions)
	assert.InDelta(t, 2.8, s.EaseFactor, 1e-9)
}

func TestGradeFromEstablishedCard(t *testing.T) {
	start := State{EaseFactor: 2.5, Interval: 10, Repetitions: 3}

	tests := []struct {
		name     string
		rating   Rating
		wantIvl  int
		wantReps int
		wantEase float64
	}{
		{"no-idea resets", NoIdea, 1, 0, 2.3},
		{"almost halves", Almost, 5, 2, 2.35},
		{"got-it grows", GotIt, 25, 4, 2.6},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := mustGrade(t, start, tc.rating, t0)
			assert.Equal(t, tc.wantIvl, got.Interval)
			assert.Equal(t, tc.wantReps, got.Repetitions)
			assert.InDelta(t, tc.wantEase, got.EaseFactor, 1e-9)
			assert.Equal(t, tc.rating, got.Rating)
		})
	}
}

func TestDatesAreCalendarDays(t *testing.T) {
	s := mustGrade(t, State{EaseFactor: 2.5, Interval: 10, Repetitions: 3}, Almost, t0)
	require.NotNil(t, s.LastReviewed)
	require.NotNil(t, s.NextReview)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), *s.LastReviewed)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), *s.NextReview)
}

func TestAlmostNeverDropsBelowOneDay(t *testing.T) {
	s := mustGrade(t, State{EaseFactor: 2.5, Interval: 1, Repetitions: 0}, Almost, t0)
	assert.Equal(t, 1, s.Interval)
	assert.Equal(t, 0, s.Repetitions)
}

func TestEaseFactorFloor(t *testing.T) {
	s := State{EaseFactor: 1.35, Interval: 4, Repetitions: 2}
	s = mustGrade(t, s, NoIdea, t0)
	assert.Equal(t, MinEaseFactor, s.EaseFactor)
	s = mustGrade(t, s, Almost, t0)
	assert.Equal(t, MinEaseFactor, s.EaseFactor)
}

func TestClampsCorruptState(t *testing.T) {
	corrupt := State{EaseFactor: 0.5, Interval: -4, Repetitions: -2}
	s := mustGrade(t, corrupt, NoIdea, t0)
	assert.Equal(t, MinEaseFactor, s.EaseFactor)
	assert.Equal(t, 1, s.Interval)
	assert.Equal(t, 0, s.Repetitions)

	s = mustGrade(t, State{EaseFactor: math.NaN(), Repetitions: -1}, GotIt, t0)
	assert.InDelta(t, DefaultEaseFactor+0.1, s.EaseFactor, 1e-9)
	assert.Equal(t, 1, s.Interval)
	assert.Equal(t, 1, s.Repetitions)

	s = mustGrade(t, State{EaseFactor: 2.5, Interval: 1 << 40, Repetitions: 9}, GotIt, t0)
	assert.Equal(t, MaxInterval, s.Interval)
}

func TestInvalidRating(t *testing.T) {
	_, err := ComputeNextReview(NewState(), Rating("easy"), t0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRating))
}

func TestInputNotMutated(t *testing.T) {
	last := datePtr(2025, 3, 1)
	next := datePtr(2025, 3, 5)
	s := State{EaseFactor: 2.5, Interval: 4, Repetitions: 2, LastReviewed: last, NextReview: next}
	_ = mustGrade(t, s, GotIt, t0)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), *s.LastReviewed)
	assert.Equal(t, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), *s.NextReview)
	assert.Equal(t, 4, s.Interval)
}

func TestDeterministic(t *testing.T) {
	s := State{EaseFactor: 2.2, Interval: 7, Repetitions: 4}
	for _, r := range Ratings {
		a := mustGrade(t, s, r, t0)
		b := mustGrade(t, s, r, t0)
		assert.Equal(t, a, b, "rating %s", r)
	}
}

func TestIsDue(t *testing.T) {
	today := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	assert.True(t, IsDue(State{}, today), "never reviewed")
	assert.True(t, IsDue(State{NextReview: datePtr(2025, 3, 10)}, today), "due today")
	assert.True(t, IsDue(State{NextReview: datePtr(2025, 3, 2)}, today), "overdue")
	assert.False(t, IsDue(State{NextReview: datePtr(2025, 3, 11)}, today), "tomorrow")

	lateToday := time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
	assert.True(t, IsDue(State{NextReview: &lateToday}, today), "time of day is ignored")
}

func TestSelectDue(t *testing.T) {
	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	states := []State{
		{EaseFactor: 2.5},
		{EaseFactor: 2.5, NextReview: datePtr(2025, 3, 12)},
		{EaseFactor: 2.1, NextReview: datePtr(2025, 3, 9)},
		{EaseFactor: 2.4, NextReview: datePtr(2025, 3, 10)},
	}
	due := SelectDue(states, today)
	require.Len(t, due, 3)
	assert.Equal(t, 2.5, due[0].EaseFactor)
	assert.Equal(t, 2.1, due[1].EaseFactor)
	assert.Equal(t, 2.4, due[2].EaseFactor)

	assert.Empty(t, SelectDue([]State{}, today))
}

func TestSortByPriority(t *testing.T) {
	states := []State{
		{EaseFactor: 2.5, NextReview: datePtr(2025, 3, 8), Repetitions: 2},
		{EaseFactor: 2.0, NextReview: datePtr(2025, 3, 9), Repetitions: 2},
		{EaseFactor: 2.5},
		{EaseFactor: 2.5, NextReview: datePtr(2025, 3, 1), Repetitions: 2},
	}
	SortByPriority(states)
	assert.Nil(t, states[0].NextReview, "never reviewed first")
	assert.Equal(t, 2.0, states[1].EaseFactor, "hardest next")
	assert.Equal(t, *datePtr(2025, 3, 1), *states[2].NextReview, "most overdue before less overdue")
	assert.Equal(t, *datePtr(2025, 3, 8), *states[3].NextReview)
}

func TestSummarize(t *testing.T) {
	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	states := []State{
		NewState(),
		{EaseFactor: 2.6, Interval: 3, Repetitions: 2, NextReview: datePtr(2025, 3, 11)},
		{EaseFactor: 2.9, Interval: 40, Repetitions: 6, NextReview: datePtr(2025, 4, 10)},
		{EaseFactor: 1.3, Interval: 1, Repetitions: 0, NextReview: datePtr(2025, 3, 10)},
	}
	p := Summarize(states, today)
	assert.Equal(t, Progress{Total: 4, New: 1, Learning: 2, Mastered: 1, Due: 2}, p)
	assert.InDelta(t, 0.25, p.MasteryRate(), 1e-9)
	assert.Zero(t, Progress{}.MasteryRate())
}
