package review

import (
	"fmt"
	"math"
	"time"
)

const (
	easeBonusGotIt    = 0.1
	easePenaltyAlmost = 0.15
	easePenaltyNoIdea = 0.2
	almostShrink      = 0.5
)

// ComputeNextReview applies a grade to the card's current state and returns
// the new state. The input is not modified. LastReviewed becomes now's date
// and NextReview that date plus the new interval in days.
//
// Successful recalls grow the interval 1 day, then 3 days, then by the ease
// factor; "almost" halves it and "no-idea" resets the card.
func ComputeNextReview(state State, rating Rating, now time.Time) (State, error) {
	if !rating.IsValid() {
		return State{}, fmt.Errorf("%w: %q", ErrInvalidRating, string(rating))
	}
	cur := state.Clamp()
	next := cur

	switch rating {
	case GotIt:
		switch cur.Repetitions {
		case 0:
			next.Interval = 1
		case 1:
			next.Interval = 3
		default:
			next.Interval = scaleInterval(cur.Interval, cur.EaseFactor)
		}
		next.Repetitions = cur.Repetitions + 1
		next.EaseFactor = math.Max(MinEaseFactor, cur.EaseFactor+easeBonusGotIt)
	case Almost:
		next.Interval = scaleInterval(cur.Interval, almostShrink)
		next.Repetitions = max(0, cur.Repetitions-1)
		next.EaseFactor = math.Max(MinEaseFactor, cur.EaseFactor-easePenaltyAlmost)
	case NoIdea:
		next.Interval = 1
		next.Repetitions = 0
		next.EaseFactor = math.Max(MinEaseFactor, cur.EaseFactor-easePenaltyNoIdea)
	}

	today := Date(now)
	due := today.AddDate(0, 0, next.Interval)
	next.LastReviewed = &today
	next.NextReview = &due
	next.Rating = rating
	return next, nil
}

// scaleInterval multiplies an interval by factor, rounding to the nearest day
// and keeping the result within [1, MaxInterval].
func scaleInterval(interval int, factor float64) int {
	v := math.Round(float64(interval) * factor)
	if v < 1 {
		return 1
	}
	if v > MaxInterval {
		return MaxInterval
	}
	return int(v)
}

// IsDue reports whether the card should be shown on today's date. Cards that
// have never been graded are always due.
func IsDue(state State, today time.Time) bool {
	if state.NextReview == nil {
		return true
	}
	next := Date(state.NextReview.In(today.Location()))
	return !next.After(Date(today))
}

// Scheduled is anything that carries a review state.
type Scheduled interface {
	ReviewState() State
}

// SelectDue returns the items that are due on today's date, in input order.
func SelectDue[S Scheduled](items []S, today time.Time) []S {
	due := make([]S, 0, len(items))
	for _, item := range items {
		if IsDue(item.ReviewState(), today) {
			due = append(due, item)
		}
	}
	return due
}
