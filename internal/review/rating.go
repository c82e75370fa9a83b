package review

import (
	"encoding"
	"errors"
	"fmt"
)

// ErrInvalidRating is returned for a grade outside the three known ratings.
var ErrInvalidRating = errors.New("review: invalid rating")

// Rating is the learner's self-assessed recall for a single review.
type Rating string

const (
	GotIt  Rating = "got-it"  // Recalled correctly.
	Almost Rating = "almost"  // Partially recalled.
	NoIdea Rating = "no-idea" // Not recalled at all.
)

// Ratings lists the valid ratings from worst to best.
var Ratings = []Rating{NoIdea, Almost, GotIt}

var (
	_ fmt.Stringer             = Rating("")
	_ encoding.TextMarshaler   = Rating("")
	_ encoding.TextUnmarshaler = (*Rating)(nil)
)

// IsValid reports whether r is one of GotIt, Almost or NoIdea.
func (r Rating) IsValid() bool {
	switch r {
	case GotIt, Almost, NoIdea:
		return true
	}
	return false
}

func (r Rating) String() string {
	return string(r)
}

// Label is the button text shown for the rating.
func (r Rating) Label() string {
	switch r {
	case GotIt:
		return "Got it"
	case Almost:
		return "Almost"
	case NoIdea:
		return "No idea"
	}
	return string(r)
}

// ParseRating converts a wire value into a Rating.
func ParseRating(s string) (Rating, error) {
	r := Rating(s)
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRating, s)
	}
	return r, nil
}

// MarshalText implements encoding.TextMarshaler. The zero Rating encodes as
// an empty string so that never-graded states round-trip.
func (r Rating) MarshalText() ([]byte, error) {
	if r != "" && !r.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRating, string(r))
	}
	return []byte(r), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rating) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*r = ""
		return nil
	}
	v, err := ParseRating(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
