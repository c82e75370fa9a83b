package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/satprep/internal/domain"
)

// QuestionRequest asks for multiple-choice practice questions.
type QuestionRequest struct {
	Section    domain.Section    `validate:"required,oneof=math reading-writing"`
	Topic      string            `validate:"required,max=200"`
	Difficulty domain.Difficulty `validate:"required,oneof=easy medium hard"`
	Count      int               `validate:"min=1,max=10"`
}

type questionsPayload struct {
	Questions []questionPayload `json:"questions" validate:"required,min=1,dive"`
}

type questionPayload struct {
	Passage     string          `json:"passage"`
	Prompt      string          `json:"prompt" validate:"required"`
	Choices     []choicePayload `json:"choices" validate:"len=4,dive"`
	Answer      string          `json:"answer" validate:"required,oneof=A B C D"`
	Explanation string          `json:"explanation" validate:"required"`
}

type choicePayload struct {
	Label string `json:"label" validate:"required,oneof=A B C D"`
	Text  string `json:"text" validate:"required"`
}

// GeneratePracticeQuestions returns questions owned by nobody yet; the
// caller sets Owner before storing them.
func (c *Client) GeneratePracticeQuestions(ctx context.Context, req QuestionRequest) ([]domain.PracticeQuestion, error) {
	if err := c.checkRequest(req); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("Write %d %s SAT %s questions on %q in the style of the digital SAT. ",
		req.Count, req.Difficulty, req.Section.Title(), req.Topic)
	if req.Section == domain.SectionReadingWriting {
		prompt += "Each question has a short passage of at most 150 words. "
	}
	prompt += `Respond with {"questions":[{"passage":"...","prompt":"...",` +
		`"choices":[{"label":"A","text":"..."},{"label":"B","text":"..."},{"label":"C","text":"..."},{"label":"D","text":"..."}],` +
		`"answer":"A","explanation":"..."}]}. Exactly one choice is correct.`

	var payload questionsPayload
	if err := c.complete(ctx, tutorSystem, prompt, 0.6, &payload); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	questions := make([]domain.PracticeQuestion, 0, len(payload.Questions))
	for i, p := range payload.Questions {
		choices, err := orderChoices(p.Choices)
		if err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", ErrInvalidPayload, i+1, err)
		}
		questions = append(questions, domain.PracticeQuestion{
			Section:     req.Section,
			Topic:       req.Topic,
			Difficulty:  req.Difficulty,
			Passage:     strings.TrimSpace(p.Passage),
			Prompt:      strings.TrimSpace(p.Prompt),
			Choices:     choices,
			Answer:      p.Answer,
			Explanation: strings.TrimSpace(p.Explanation),
			CreatedAt:   now,
		})
	}
	if len(questions) > req.Count {
		questions = questions[:req.Count]
	}
	return questions, nil
}

// orderChoices checks the labels are exactly A to D and returns them in
// that order.
func orderChoices(in []choicePayload) ([]domain.Choice, error) {
	byLabel := make(map[string]string, len(in))
	for _, ch := range in {
		if _, dup := byLabel[ch.Label]; dup {
			return nil, fmt.Errorf("duplicate choice %s", ch.Label)
		}
		byLabel[ch.Label] = strings.TrimSpace(ch.Text)
	}
	out := make([]domain.Choice, 0, 4)
	for _, label := range []string{"A", "B", "C", "D"} {
		text, ok := byLabel[label]
		if !ok {
			return nil, fmt.Errorf("missing choice %s", label)
		}
		out = append(out, domain.Choice{Label: label, Text: text})
	}
	return out, nil
}
