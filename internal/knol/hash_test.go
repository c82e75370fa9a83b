package knol

import (
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/conorfennell/satprep/internal/domain"
)

func TestNormalize(t *testing.T) {
	card := domain.Card{
		Front:       "  What is the SLOPE of y = 3x + 2? \r\n",
		Back:        "3",
		Topic:       "Linear   equations",
		Explanation: "ignored",
	}
	expected := "what is the slope of y = 3x + 2?\n3\nlinear equations"
	normalized := Normalize(card)

	if normalized != expected {
		t.Errorf("Expected normalized string to be '%s', but got '%s'", expected, normalized)
	}
}

func TestHash(t *testing.T) {
	t.Run("generates sha256 of normalized content", func(t *testing.T) {
		card := domain.Card{Front: "Q", Back: "A", Topic: "T"}
		expectedHash := fmt.Sprintf("%x", sha256.Sum256([]byte("q\na\nt")))
		if hash := Hash(card); hash != expectedHash {
			t.Errorf("Expected hash '%s', but got '%s'", expectedHash, hash)
		}
	})

	t.Run("hash is deterministic", func(t *testing.T) {
		card1 := domain.Card{Front: "Test"}
		card2 := domain.Card{Front: "Test"}
		if Hash(card1) != Hash(card2) {
			t.Error("Expected hashes for identical cards to be the same")
		}
	})

	t.Run("normalization produces same hash", func(t *testing.T) {
		card1 := domain.Card{Front: "  what is a transition? ", Back: "A linking word."}
		card2 := domain.Card{Front: "What Is a  Transition?", Back: "A linking word.", Explanation: "different"}
		if Hash(card1) != Hash(card2) {
			t.Error("Expected hashes to be the same after normalization, but they were different.")
		}
	})

	t.Run("different cards have different hashes", func(t *testing.T) {
		card1 := domain.Card{Front: "Card 1"}
		card2 := domain.Card{Front: "Card 2"}
		if Hash(card1) == Hash(card2) {
			t.Error("Expected hashes for different cards to be different")
		}
	})

	t.Run("fields do not bleed into each other", func(t *testing.T) {
		card1 := domain.Card{Front: "ab", Back: "c"}
		card2 := domain.Card{Front: "a", Back: "bc"}
		if Hash(card1) == Hash(card2) {
			t.Error("Expected field boundaries to be preserved")
		}
	})

	t.Run("WithHash fills the hash", func(t *testing.T) {
		card := WithHash(domain.Card{Front: "x"})
		if card.Hash != Hash(domain.Card{Front: "x"}) {
			t.Errorf("Expected hash to be set, got %q", card.Hash)
		}
	})
}
