package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/satprep/internal/ai"
	"github.com/conorfennell/satprep/internal/auth"
	"github.com/conorfennell/satprep/internal/domain"
	"github.com/conorfennell/satprep/internal/knol"
	"github.com/conorfennell/satprep/internal/quota"
	"github.com/conorfennell/satprep/internal/storage"
)

// planOf looks the plan up in the database so upgrades apply without a new
// session. Anonymous owners are on the free plan.
func (s *Server) planOf(ctx context.Context) (domain.Plan, error) {
	user := auth.UserFromContext(ctx)
	if user == nil {
		return domain.PlanFree, nil
	}
	u, err := s.db.FindUserByID(ctx, user.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.PlanFree, nil
	}
	if err != nil {
		return "", err
	}
	return u.Plan, nil
}

// admit runs the rate limiter and reserves one generation from the monthly
// quota. It writes the error response itself and reports whether to go on.
// A failed generation must hand the reservation back with refund.
func (s *Server) admit(w http.ResponseWriter, r *http.Request) (quota.Reservation, bool) {
	owner := auth.OwnerFromContext(r.Context())
	if !s.allow(w, r, s.genLimiter, "gen:"+owner.Key()) {
		return quota.Reservation{}, false
	}
	plan, err := s.planOf(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return quota.Reservation{}, false
	}
	res, err := s.quota.Reserve(r.Context(), owner, plan, s.Nower.Now())
	if err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			logger(r).Info().Str("owner", owner.Key()).Msg("quota-exceeded")
		}
		s.fail(w, r, err)
		return quota.Reservation{}, false
	}
	return res, true
}

// refund returns the reservation of a generation that produced nothing.
// It outlives the request so a disconnecting client still gets it back.
func (s *Server) refund(r *http.Request, res quota.Reservation) {
	if err := s.quota.Refund(context.WithoutCancel(r.Context()), res); err != nil {
		logger(r).Error().Err(err).Str("owner", res.Owner.Key()).Msg("quota-refund-failed")
	}
}

func (s *Server) charge(r *http.Request, what string) {
	owner := auth.OwnerFromContext(r.Context())
	logger(r).Info().Str("owner", owner.Key()).Str("kind", what).Msg("content-generated")
}

func formInt(r *http.Request, key string, def int) (int, error) {
	v := strings.TrimSpace(r.PostFormValue(key))
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

type generatedView struct {
	Added int
	Cards []domain.Card
}

func (s *Server) handleGenerateFlashcards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := formInt(r, "count", 5)
		if err != nil {
			s.clientError(w, r, http.StatusBadRequest, "Invalid count")
			return
		}
		req := ai.FlashcardRequest{
			Topic:   strings.TrimSpace(r.PostFormValue("topic")),
			Section: domain.Section(r.PostFormValue("section")),
			Count:   count,
			Notes:   r.PostFormValue("notes"),
		}
		if req.Section == "" {
			req.Section = domain.SectionForTopic(req.Topic)
		}
		if err := validate.Struct(req); err != nil {
			s.clientError(w, r, http.StatusBadRequest, "Enter a topic and between 1 and 20 cards")
			return
		}
		res, ok := s.admit(w, r)
		if !ok {
			return
		}

		cards, err := s.gen.GenerateFlashcards(r.Context(), req)
		if err != nil {
			s.refund(r, res)
			s.failAI(w, r, err)
			return
		}
		s.charge(r, "flashcards")

		fresh := make([]storage.NewFlashcard, 0, len(cards))
		for i := range cards {
			if cards[i].Topic == "" {
				cards[i].Topic = req.Topic
			}
			cards[i] = knol.WithHash(cards[i])
			fresh = append(fresh, storage.NewFlashcard{Card: cards[i], Section: req.Section})
		}
		added, err := s.db.InsertFlashcards(r.Context(), auth.OwnerFromContext(r.Context()), fresh, s.Nower.Now())
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		s.render(w, r, "generated", generatedView{Added: added, Cards: cards})
	}
}

type practiceView struct {
	Sections     []domain.Section
	Difficulties []domain.Difficulty
	Accuracy     []domain.SectionAccuracy
	Questions    []domain.PracticeQuestion
}

func (s *Server) handleGetPractice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acc, err := s.db.PracticeAccuracy(r.Context(), auth.OwnerFromContext(r.Context()))
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		s.render(w, r, "practice", s.page(r, "Practice", practiceView{
			Sections:     []domain.Section{domain.SectionMath, domain.SectionReadingWriting},
			Difficulties: []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard},
			Accuracy:     acc,
		}))
	}
}

func (s *Server) handleGeneratePractice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := formInt(r, "count", 3)
		if err != nil {
			s.clientError(w, r, http.StatusBadRequest, "Invalid count")
			return
		}
		req := ai.QuestionRequest{
			Section:    domain.Section(r.PostFormValue("section")),
			Topic:      strings.TrimSpace(r.PostFormValue("topic")),
			Difficulty: domain.Difficulty(r.PostFormValue("difficulty")),
			Count:      count,
		}
		if err := validate.Struct(req); err != nil {
			s.clientError(w, r, http.StatusBadRequest, "Choose a section, topic, difficulty and up to 10 questions")
			return
		}
		res, ok := s.admit(w, r)
		if !ok {
			return
		}

		questions, err := s.gen.GeneratePracticeQuestions(r.Context(), req)
		if err != nil {
			s.refund(r, res)
			s.failAI(w, r, err)
			return
		}
		s.charge(r, "practice")

		owner := auth.OwnerFromContext(r.Context())
		now := s.Nower.Now()
		for i := range questions {
			questions[i].Owner = owner
			questions[i].CreatedAt = now
			stored, err := s.db.InsertPracticeQuestion(r.Context(), questions[i])
			if err != nil {
				s.serverError(w, r, err)
				return
			}
			questions[i] = stored
		}
		s.render(w, r, "practice_questions", practiceView{Questions: questions})
	}
}

type answerView struct {
	Question domain.PracticeQuestion
	Choice   string
	Correct  bool
}

func (s *Server) handleAnswerPractice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			s.clientError(w, r, http.StatusBadRequest, "Invalid question ID")
			return
		}
		choice := strings.ToUpper(strings.TrimSpace(r.PostFormValue("choice")))
		if err := validate.Var(choice, "required,oneof=A B C D"); err != nil {
			s.clientError(w, r, http.StatusBadRequest, "Pick one of A, B, C or D")
			return
		}
		owner := auth.OwnerFromContext(r.Context())
		q, err := s.db.GetPracticeQuestion(r.Context(), owner, id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		correct := q.Correct(choice)
		err = s.db.InsertPracticeAttempt(r.Context(), domain.PracticeAttempt{
			QuestionID: q.ID,
			Owner:      owner,
			Section:    q.Section,
			Topic:      q.Topic,
			Choice:     choice,
			Correct:    correct,
			AnsweredAt: s.Nower.Now(),
		})
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		s.render(w, r, "practice_result", answerView{Question: q, Choice: choice, Correct: correct})
	}
}

func (s *Server) handleGetLessons() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topics, err := s.db.LibraryTopics(r.Context())
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		s.render(w, r, "lessons", s.page(r, "Lessons", topics))
	}
}

func lessonKey(topic string) string {
	return strings.ToLower(strings.Join(strings.Fields(topic), " "))
}

// handleGenerateLesson serves lessons from the shared cache when possible.
// Cache hits do not count against the quota.
func (s *Server) handleGenerateLesson() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := ai.LessonRequest{Topic: strings.TrimSpace(r.PostFormValue("topic"))}
		if err := validate.Struct(req); err != nil {
			s.clientError(w, r, http.StatusBadRequest, "Enter a topic")
			return
		}
		key := lessonKey(req.Topic)
		if lesson, ok := s.lessons.Get(key); ok {
			logger(r).Debug().Str("topic", key).Msg("lesson-cache-hit")
			s.render(w, r, "lesson", lesson)
			return
		}
		res, ok := s.admit(w, r)
		if !ok {
			return
		}
		lesson, err := s.gen.GenerateLesson(r.Context(), req)
		if err != nil {
			s.refund(r, res)
			s.failAI(w, r, err)
			return
		}
		s.charge(r, "lesson")
		if lesson.CreatedAt.IsZero() {
			lesson.CreatedAt = s.Nower.Now()
		}
		s.lessons.Set(key, lesson)
		s.render(w, r, "lesson", lesson)
	}
}

type planView struct {
	Plan    *domain.StudyPlan
	Today   string
	Message string
}

func (s *Server) handleGetPlan() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view := planView{Today: s.Nower.Now().UTC().Format(time.DateOnly)}
		plan, err := s.db.GetStudyPlan(r.Context(), auth.OwnerFromContext(r.Context()))
		switch {
		case err == nil:
			view.Plan = &plan
		case !errors.Is(err, storage.ErrNotFound):
			s.serverError(w, r, err)
			return
		}
		s.render(w, r, "plan", s.page(r, "Study plan", view))
	}
}

func splitTopics(v string) []string {
	var topics []string
	for _, t := range strings.Split(v, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

func (s *Server) handleGeneratePlan() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := s.Nower.Now().UTC()
		current, err1 := formInt(r, "current_score", 0)
		target, err2 := formInt(r, "target_score", 0)
		exam, err3 := time.Parse(time.DateOnly, r.PostFormValue("exam_date"))
		if err := errors.Join(err1, err2, err3); err != nil {
			s.clientError(w, r, http.StatusBadRequest, "Enter both scores and the exam date")
			return
		}
		req := ai.PlanRequest{
			CurrentScore: current,
			TargetScore:  target,
			ExamDate:     exam,
			Today:        now,
			WeakTopics:   splitTopics(r.PostFormValue("weak_topics")),
		}
		if err := validate.Struct(req); err != nil || !exam.After(now) {
			s.clientError(w, r, http.StatusBadRequest,
				"Scores must be between 400 and 1600 with the target above the current score, and the exam in the future")
			return
		}
		res, ok := s.admit(w, r)
		if !ok {
			return
		}
		plan, err := s.gen.GenerateStudyPlan(r.Context(), req)
		if err != nil {
			s.refund(r, res)
			s.failAI(w, r, err)
			return
		}
		s.charge(r, "plan")

		plan.Owner = auth.OwnerFromContext(r.Context())
		plan.CreatedAt = now
		if err := s.db.SaveStudyPlan(r.Context(), plan); err != nil {
			s.serverError(w, r, err)
			return
		}
		s.render(w, r, "plan_weeks", planView{Plan: &plan})
	}
}
