package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/conorfennell/satprep/internal/domain"
)

// LessonRequest asks for a short explainer.
type LessonRequest struct {
	Topic string `validate:"required,max=200"`
}

type lessonPayload struct {
	Title     string   `json:"title" validate:"required"`
	Summary   string   `json:"summary" validate:"required"`
	Body      string   `json:"body" validate:"required"`
	KeyPoints []string `json:"keyPoints" validate:"required,min=1,dive,required"`
}

// GenerateLesson returns a lesson whose body is markdown.
func (c *Client) GenerateLesson(ctx context.Context, req LessonRequest) (domain.Lesson, error) {
	if err := c.checkRequest(req); err != nil {
		return domain.Lesson{}, err
	}

	prompt := fmt.Sprintf("Teach the SAT topic %q in under 400 words. ", req.Topic) +
		"Use markdown in the body with one worked example. " +
		`Respond with {"title":"...","summary":"one sentence","body":"markdown","keyPoints":["..."]}.`

	var payload lessonPayload
	if err := c.complete(ctx, tutorSystem, prompt, 0.5, &payload); err != nil {
		return domain.Lesson{}, err
	}
	return domain.Lesson{
		Topic:     req.Topic,
		Title:     payload.Title,
		Summary:   payload.Summary,
		Body:      payload.Body,
		KeyPoints: payload.KeyPoints,
		CreatedAt: time.Now().UTC(),
	}, nil
}
