package review

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseRating(t *testing.T) {
	for _, r := range Ratings {
		got, err := ParseRating(string(r))
		if err != nil {
			t.Fatalf("ParseRating(%q) returned an unexpected error: %v", r, err)
		}
		if got != r {
			t.Errorf("Expected %q, got %q", r, got)
		}
	}

	for _, bad := range []string{"", "Got-It", "easy", "3"} {
		if _, err := ParseRating(bad); !errors.Is(err, ErrInvalidRating) {
			t.Errorf("ParseRating(%q): expected ErrInvalidRating, got %v", bad, err)
		}
	}
}

func TestStateJSON(t *testing.T) {
	s, err := ComputeNextReview(NewState(), Almost, t0)
	if err != nil {
		t.Fatal(err)
	}
	bts, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var back State
	if err := json.Unmarshal(bts, &back); err != nil {
		t.Fatal(err)
	}
	if back.Rating != Almost || back.Interval != s.Interval || !back.NextReview.Equal(*s.NextReview) {
		t.Errorf("Expected %+v after JSON round trip, got %+v", s, back)
	}

	if err := json.Unmarshal([]byte(`{"rating":"maybe"}`), &back); !errors.Is(err, ErrInvalidRating) {
		t.Errorf("Expected ErrInvalidRating for unknown rating, got %v", err)
	}
}

func TestRatingLabel(t *testing.T) {
	if GotIt.Label() != "Got it" || NoIdea.Label() != "No idea" {
		t.Errorf("unexpected labels %q %q", GotIt.Label(), NoIdea.Label())
	}
}
