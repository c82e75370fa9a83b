package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/satprep/internal/domain"
)

// Normalize concatenates the card's identifying content after cleaning each
// part. It trims whitespace, lowercases, collapses inner runs of spaces and
// normalizes line endings before joining them.
//
// The explanation is left out: regenerating a card with a reworded
// explanation should not create a duplicate in the deck.
func Normalize(card domain.Card) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		lines := strings.Split(p, "\n")
		for i, line := range lines {
			lines[i] = strings.Join(strings.Fields(line), " ")
		}
		return strings.TrimSpace(strings.Join(lines, "\n"))
	}

	// Fields are newline-joined so "question" and "answer" never run
	// together into "questionanswer".
	return strings.Join([]string{
		normalizePart(card.Front),
		normalizePart(card.Back),
		normalizePart(card.Topic),
	}, "\n")
}

// Hash normalizes a card and returns its SHA-256 hash as a hex string.
func Hash(card domain.Card) string {
	hashBytes := sha256.Sum256([]byte(Normalize(card)))
	return fmt.Sprintf("%x", hashBytes)
}

// WithHash returns the card with its Hash field filled in.
func WithHash(card domain.Card) domain.Card {
	card.Hash = Hash(card)
	return card
}
