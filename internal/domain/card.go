package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/satprep/internal/review"
)

// Section is one of the two scored SAT sections.
type Section string

const (
	SectionMath           Section = "math"
	SectionReadingWriting Section = "reading-writing"
)

// IsValid reports whether s names a known section.
func (s Section) IsValid() bool {
	return s == SectionMath || s == SectionReadingWriting
}

// Title is the human-readable section name.
func (s Section) Title() string {
	switch s {
	case SectionMath:
		return "Math"
	case SectionReadingWriting:
		return "Reading & Writing"
	}
	return string(s)
}

// Owner identifies whose deck a record belongs to: either a signed-in user
// or an anonymous browser session. Exactly one field is set.
type Owner struct {
	UserID    int64
	SessionID string
}

const (
	userKeyPrefix = "user:"
	anonKeyPrefix = "anon:"
)

// UserOwner returns the owner for an authenticated user.
func UserOwner(id int64) Owner {
	return Owner{UserID: id}
}

// AnonOwner returns the owner for an anonymous session.
func AnonOwner(sessionID string) Owner {
	return Owner{SessionID: sessionID}
}

// IsUser reports whether the owner is a signed-in user.
func (o Owner) IsUser() bool {
	return o.UserID != 0
}

// IsZero reports whether no owner is set.
func (o Owner) IsZero() bool {
	return o.UserID == 0 && o.SessionID == ""
}

// Key is the stable string form stored in owner_key columns.
func (o Owner) Key() string {
	if o.IsUser() {
		return userKeyPrefix + strconv.FormatInt(o.UserID, 10)
	}
	return anonKeyPrefix + o.SessionID
}

func (o Owner) String() string {
	return o.Key()
}

// ParseOwnerKey is the inverse of Owner.Key.
func ParseOwnerKey(key string) (Owner, error) {
	switch {
	case strings.HasPrefix(key, userKeyPrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(key, userKeyPrefix), 10, 64)
		if err != nil || id <= 0 {
			return Owner{}, fmt.Errorf("invalid user owner key %q", key)
		}
		return UserOwner(id), nil
	case strings.HasPrefix(key, anonKeyPrefix) && len(key) > len(anonKeyPrefix):
		return AnonOwner(strings.TrimPrefix(key, anonKeyPrefix)), nil
	}
	return Owner{}, fmt.Errorf("invalid owner key %q", key)
}

// Card is the content of a single flashcard, as parsed from a deck file or
// generated by the AI client.
type Card struct {
	Front       string `json:"front"`
	Back        string `json:"back"`
	Explanation string `json:"explanation,omitempty"`
	Topic       string `json:"topic,omitempty"`
	Hash        string `json:"-"`
}

// Flashcard is a card in an owner's personal deck together with its review
// schedule.
type Flashcard struct {
	ID    int64 `json:"id"`
	Owner Owner `json:"-"`
	Card
	Section   Section      `json:"section"`
	Review    review.State `json:"review"`
	CreatedAt time.Time    `json:"createdAt"`
}

// ReviewState lets flashcards be passed to review.SelectDue and friends.
func (f Flashcard) ReviewState() review.State {
	return f.Review
}

// LibraryCard is a card imported from a curated deck source. Owners copy
// library cards into their own deck by topic.
type LibraryCard struct {
	Card
	Section  Section
	SourceID int64
}

// ReviewLogEntry records one grading event.
type ReviewLogEntry struct {
	FlashcardID int64
	Rating      review.Rating
	ReviewedAt  time.Time
	Interval    int
	EaseFactor  float64
}

// SectionForTopic guesses the SAT section a topic belongs to.
func SectionForTopic(topic string) Section {
	t := strings.ToLower(topic)
	for _, kw := range mathKeywords {
		if strings.Contains(t, kw) {
			return SectionMath
		}
	}
	return SectionReadingWriting
}

var mathKeywords = []string{
	"algebra", "linear", "quadratic", "equation", "function", "geometry", "trigonometry",
	"statistic", "probability", "ratio", "percent", "exponent", "polynomial", "circle",
	"triangle", "math", "inequalit", "data analysis",
}
