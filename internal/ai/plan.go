package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/satprep/internal/domain"
)

// PlanRequest describes the student a study plan is for.
type PlanRequest struct {
	CurrentScore int       `validate:"min=400,max=1600"`
	TargetScore  int       `validate:"min=400,max=1600,gtfield=CurrentScore"`
	ExamDate     time.Time `validate:"required"`
	Today        time.Time `validate:"required"`
	WeakTopics   []string  `validate:"max=10,dive,max=100"`
}

// Weeks until the exam, at least one.
func (r PlanRequest) Weeks() int {
	days := int(r.ExamDate.Sub(r.Today).Hours() / 24)
	return max(1, (days+6)/7)
}

type planPayload struct {
	Weeks []planWeekPayload `json:"weeks" validate:"required,min=1,dive"`
}

type planWeekPayload struct {
	Week  int      `json:"week" validate:"min=1"`
	Focus []string `json:"focus" validate:"required,min=1"`
	Tasks []string `json:"tasks" validate:"required,min=1"`
}

// GenerateStudyPlan returns a week-by-week plan up to the exam date.
func (c *Client) GenerateStudyPlan(ctx context.Context, req PlanRequest) (domain.StudyPlan, error) {
	if err := c.checkRequest(req); err != nil {
		return domain.StudyPlan{}, err
	}
	if !req.ExamDate.After(req.Today) {
		return domain.StudyPlan{}, fmt.Errorf("%w: exam date must be in the future", ErrInvalidRequest)
	}

	weeks := min(req.Weeks(), 26)
	prompt := fmt.Sprintf("A student scores %d on the SAT and wants %d. The exam is in %d weeks. ",
		req.CurrentScore, req.TargetScore, weeks)
	if len(req.WeakTopics) > 0 {
		prompt += fmt.Sprintf("Weak topics: %s. ", strings.Join(req.WeakTopics, ", "))
	}
	prompt += fmt.Sprintf("Write a plan with exactly %d weeks. ", weeks) +
		`Respond with {"weeks":[{"week":1,"focus":["..."],"tasks":["..."]}]}.`

	var payload planPayload
	if err := c.complete(ctx, tutorSystem, prompt, 0.4, &payload); err != nil {
		return domain.StudyPlan{}, err
	}

	plan := domain.StudyPlan{
		CurrentScore: req.CurrentScore,
		TargetScore:  req.TargetScore,
		ExamDate:     req.ExamDate.UTC(),
		CreatedAt:    time.Now().UTC(),
	}
	for i, w := range payload.Weeks {
		if i == weeks {
			break
		}
		plan.Weeks = append(plan.Weeks, domain.PlanWeek{Week: i + 1, Focus: w.Focus, Tasks: w.Tasks})
	}
	return plan, nil
}
