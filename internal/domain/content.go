package domain

import "time"

// Difficulty of a generated practice question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid reports whether d is easy, medium or hard.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Choice is one answer option of a multiple-choice question.
type Choice struct {
	Label string `json:"label"` // A-D
	Text  string `json:"text"`
}

// PracticeQuestion is a generated multiple-choice SAT question.
type PracticeQuestion struct {
	ID          int64      `json:"id"`
	Owner       Owner      `json:"-"`
	Section     Section    `json:"section"`
	Topic       string     `json:"topic"`
	Difficulty  Difficulty `json:"difficulty"`
	Passage     string     `json:"passage,omitempty"`
	Prompt      string     `json:"prompt"`
	Choices     []Choice   `json:"choices"`
	Answer      string     `json:"answer"`
	Explanation string     `json:"explanation"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Correct reports whether label is the right answer.
func (q PracticeQuestion) Correct(label string) bool {
	return label == q.Answer
}

// PracticeAttempt is one answer submitted for a practice question.
type PracticeAttempt struct {
	QuestionID int64
	Owner      Owner
	Section    Section
	Topic      string
	Choice     string
	Correct    bool
	AnsweredAt time.Time
}

// SectionAccuracy aggregates practice attempts for one section.
type SectionAccuracy struct {
	Section  Section `db:"section" json:"section"`
	Attempts int     `db:"attempts" json:"attempts"`
	Correct  int     `db:"correct" json:"correct"`
}

// Rate is the share of correct answers in [0, 1].
func (a SectionAccuracy) Rate() float64 {
	if a.Attempts == 0 {
		return 0
	}
	return float64(a.Correct) / float64(a.Attempts)
}

// Lesson is a short generated explainer for a topic. Body is markdown.
type Lesson struct {
	Topic     string    `json:"topic"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Body      string    `json:"body"`
	KeyPoints []string  `json:"keyPoints"`
	CreatedAt time.Time `json:"createdAt"`
}

// StudyPlan is a week-by-week schedule towards a target score.
type StudyPlan struct {
	Owner        Owner      `json:"-"`
	CurrentScore int        `json:"currentScore"`
	TargetScore  int        `json:"targetScore"`
	ExamDate     time.Time  `json:"examDate"`
	Weeks        []PlanWeek `json:"weeks"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// PlanWeek is one week of a study plan.
type PlanWeek struct {
	Week  int      `json:"week"`
	Focus []string `json:"focus"`
	Tasks []string `json:"tasks"`
}
