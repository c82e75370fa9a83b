package review

import (
	"slices"
	"time"
)

const (
	masteredRepetitions = 5
	masteredInterval    = 21
)

// SortByPriority orders items for a study session: never-graded cards first,
// then the hardest (lowest ease factor), then the most overdue. Ties keep
// their input order.
func SortByPriority[S Scheduled](items []S) {
	slices.SortStableFunc(items, func(a, b S) int {
		sa, sb := a.ReviewState(), b.ReviewState()
		if sa.Reviewed() != sb.Reviewed() {
			if !sa.Reviewed() {
				return -1
			}
			return 1
		}
		if sa.EaseFactor != sb.EaseFactor {
			if sa.EaseFactor < sb.EaseFactor {
				return -1
			}
			return 1
		}
		if sa.NextReview != nil && sb.NextReview != nil {
			return sa.NextReview.Compare(*sb.NextReview)
		}
		return 0
	})
}

// Mastered reports whether a card has been recalled consistently over a long
// enough interval to count as learned.
func Mastered(s State) bool {
	return s.Repetitions >= masteredRepetitions && s.Interval >= masteredInterval
}

// Progress is a point-in-time summary of a deck.
type Progress struct {
	Total    int `json:"total"`
	New      int `json:"new"`
	Learning int `json:"learning"`
	Mastered int `json:"mastered"`
	Due      int `json:"due"`
}

// MasteryRate is the share of cards that are mastered, in [0, 1].
func (p Progress) MasteryRate() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Mastered) / float64(p.Total)
}

// Summarize counts the items by learning stage.
func Summarize[S Scheduled](items []S, today time.Time) Progress {
	var p Progress
	for _, item := range items {
		s := item.ReviewState()
		p.Total++
		switch {
		case !s.Reviewed():
			p.New++
		case Mastered(s):
			p.Mastered++
		default:
			p.Learning++
		}
		if IsDue(s, today) {
			p.Due++
		}
	}
	return p
}
