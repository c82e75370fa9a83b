package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/conorfennell/satprep/internal/domain"
)

const tutorSystem = "You are an expert SAT tutor. You write accurate, concise study material " +
	"for high-school students preparing for the digital SAT. Always answer with a single JSON object."

// FlashcardRequest asks for a batch of flashcards on one topic.
type FlashcardRequest struct {
	Topic   string         `validate:"required,max=200"`
	Section domain.Section `validate:"required,oneof=math reading-writing"`
	Count   int            `validate:"min=1,max=20"`
	Notes   string         `validate:"max=2000"` // optional study notes to draw from
}

type flashcardsPayload struct {
	Cards []flashcardPayload `json:"cards" validate:"required,min=1,dive"`
}

type flashcardPayload struct {
	Front       string `json:"front" validate:"required"`
	Back        string `json:"back" validate:"required"`
	Explanation string `json:"explanation"`
}

// GenerateFlashcards returns new cards for the requested topic. Hashes are
// not set.
func (c *Client) GenerateFlashcards(ctx context.Context, req FlashcardRequest) ([]domain.Card, error) {
	if err := c.checkRequest(req); err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Create %d SAT %s flashcards on the topic %q.\n", req.Count, req.Section.Title(), req.Topic)
	if req.Notes != "" {
		fmt.Fprintf(&b, "Base them on these notes:\n%s\n", req.Notes)
	}
	b.WriteString(`Respond with {"cards":[{"front":"...","back":"...","explanation":"..."}]}. ` +
		"The front is a question or term, the back a short answer, the explanation one or two sentences.")

	var payload flashcardsPayload
	if err := c.complete(ctx, tutorSystem, b.String(), 0.7, &payload); err != nil {
		return nil, err
	}

	cards := make([]domain.Card, 0, len(payload.Cards))
	for _, p := range payload.Cards {
		cards = append(cards, domain.Card{
			Front:       strings.TrimSpace(p.Front),
			Back:        strings.TrimSpace(p.Back),
			Explanation: strings.TrimSpace(p.Explanation),
			Topic:       req.Topic,
		})
	}
	if len(cards) > req.Count {
		cards = cards[:req.Count]
	}
	return cards, nil
}
