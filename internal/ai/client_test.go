package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/satprep/internal/domain"
)

// fakeAPI answers every completion with content, after checking the
// request looks like a JSON-mode chat call.
func fakeAPI(t *testing.T, status int, content string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		assert.Len(t, req.Messages, 2)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"message":"rate limited upstream"}}`))
			return
		}
		resp := map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:   srv.URL + "/v1/",
		APIKey:    "test-key",
		Model:     "test-model",
		MaxTokens: 500,
		Timeout:   5 * time.Second,
	})
}

func TestGenerateFlashcards(t *testing.T) {
	c := fakeAPI(t, http.StatusOK, `{"cards":[
		{"front":" What is the slope of y = 2x + 1? ","back":"2","explanation":"Coefficient of x."},
		{"front":"y-intercept of y = 2x + 1","back":"1"},
		{"front":"extra","back":"dropped"}
	]}`)

	cards, err := c.GenerateFlashcards(context.Background(), FlashcardRequest{
		Topic:   "Linear functions",
		Section: domain.SectionMath,
		Count:   2,
	})
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "What is the slope of y = 2x + 1?", cards[0].Front)
	assert.Equal(t, "Linear functions", cards[1].Topic)
}

func TestFencedJSONAccepted(t *testing.T) {
	c := fakeAPI(t, http.StatusOK, "```json\n{\"cards\":[{\"front\":\"a\",\"back\":\"b\"}]}\n```")
	cards, err := c.GenerateFlashcards(context.Background(), FlashcardRequest{
		Topic: "t", Section: domain.SectionReadingWriting, Count: 1,
	})
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}

func TestInvalidPayloads(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "Sure! Here are your cards."},
		{"empty cards", `{"cards":[]}`},
		{"missing back", `{"cards":[{"front":"a"}]}`},
		{"wrong shape", `{"cards":"a,b"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := fakeAPI(t, http.StatusOK, tc.content)
			_, err := c.GenerateFlashcards(context.Background(), FlashcardRequest{
				Topic: "t", Section: domain.SectionMath, Count: 3,
			})
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestAPIError(t *testing.T) {
	c := fakeAPI(t, http.StatusTooManyRequests, "")
	_, err := c.GenerateLesson(context.Background(), LessonRequest{Topic: "Transitions"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "rate limited upstream", apiErr.Message)
}

func TestInvalidRequestNeverCallsAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("API should not be called")
	}))
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL, Model: "m", Timeout: time.Second})

	_, err := c.GenerateFlashcards(context.Background(), FlashcardRequest{Topic: "", Section: domain.SectionMath, Count: 1})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = c.GeneratePracticeQuestions(context.Background(), QuestionRequest{
		Section: domain.SectionMath, Topic: "x", Difficulty: "impossible", Count: 1,
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	_, err = c.GenerateStudyPlan(context.Background(), PlanRequest{
		CurrentScore: 1300, TargetScore: 1200, ExamDate: today.AddDate(0, 1, 0), Today: today,
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = c.GenerateStudyPlan(context.Background(), PlanRequest{
		CurrentScore: 1100, TargetScore: 1200, ExamDate: today, Today: today,
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestGeneratePracticeQuestions(t *testing.T) {
	c := fakeAPI(t, http.StatusOK, `{"questions":[{
		"prompt":"If 3x = 12, what is x?",
		"choices":[{"label":"D","text":"36"},{"label":"A","text":"3"},{"label":"B","text":"4"},{"label":"C","text":"9"}],
		"answer":"B",
		"explanation":"Divide both sides by 3."
	}]}`)

	qs, err := c.GeneratePracticeQuestions(context.Background(), QuestionRequest{
		Section: domain.SectionMath, Topic: "Linear equations", Difficulty: domain.DifficultyEasy, Count: 1,
	})
	require.NoError(t, err)
	require.Len(t, qs, 1)
	q := qs[0]
	assert.Equal(t, []domain.Choice{
		{Label: "A", Text: "3"},
		{Label: "B", Text: "4"},
		{Label: "C", Text: "9"},
		{Label: "D", Text: "36"},
	}, q.Choices)
	assert.True(t, q.Correct("B"))
	assert.Equal(t, domain.DifficultyEasy, q.Difficulty)
}

func TestPracticeQuestionValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"three choices", `{"questions":[{"prompt":"p","choices":[{"label":"A","text":"1"},{"label":"B","text":"2"},{"label":"C","text":"3"}],"answer":"A","explanation":"e"}]}`},
		{"answer E", `{"questions":[{"prompt":"p","choices":[{"label":"A","text":"1"},{"label":"B","text":"2"},{"label":"C","text":"3"},{"label":"D","text":"4"}],"answer":"E","explanation":"e"}]}`},
		{"duplicate label", `{"questions":[{"prompt":"p","choices":[{"label":"A","text":"1"},{"label":"A","text":"2"},{"label":"C","text":"3"},{"label":"D","text":"4"}],"answer":"A","explanation":"e"}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := fakeAPI(t, http.StatusOK, tc.content)
			_, err := c.GeneratePracticeQuestions(context.Background(), QuestionRequest{
				Section: domain.SectionMath, Topic: "t", Difficulty: domain.DifficultyHard, Count: 1,
			})
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestGenerateLessonAndPlan(t *testing.T) {
	c := fakeAPI(t, http.StatusOK, `{"title":"Transitions","summary":"Linking ideas.","body":"## Why\nUse *however* for contrast.","keyPoints":["contrast","cause"]}`)
	lesson, err := c.GenerateLesson(context.Background(), LessonRequest{Topic: "Transitions"})
	require.NoError(t, err)
	assert.Equal(t, "Transitions", lesson.Title)
	assert.Equal(t, []string{"contrast", "cause"}, lesson.KeyPoints)

	c = fakeAPI(t, http.StatusOK, `{"weeks":[
		{"week":1,"focus":["algebra"],"tasks":["20 cards a day"]},
		{"week":7,"focus":["reading"],"tasks":["2 passages"]},
		{"week":3,"focus":["extra"],"tasks":["dropped"]}
	]}`)
	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	plan, err := c.GenerateStudyPlan(context.Background(), PlanRequest{
		CurrentScore: 1100, TargetScore: 1300, ExamDate: today.AddDate(0, 0, 14), Today: today,
	})
	require.NoError(t, err)
	require.Len(t, plan.Weeks, 2)
	assert.Equal(t, 2, plan.Weeks[1].Week, "weeks are renumbered")
}

func TestPlanWeeks(t *testing.T) {
	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, PlanRequest{Today: today, ExamDate: today.AddDate(0, 0, 3)}.Weeks())
	assert.Equal(t, 2, PlanRequest{Today: today, ExamDate: today.AddDate(0, 0, 8)}.Weeks())
	assert.Equal(t, 1, PlanRequest{Today: today, ExamDate: today.AddDate(0, 0, -5)}.Weeks())
}
