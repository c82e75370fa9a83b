package web

import (
	"encoding/json"
	"net/http"

	"github.com/conorfennell/satprep/internal/auth"
	"github.com/conorfennell/satprep/internal/domain"
	"github.com/conorfennell/satprep/internal/quota"
	"github.com/conorfennell/satprep/internal/review"
	"github.com/conorfennell/satprep/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ProgressReport is everything the progress page shows.
type ProgressReport struct {
	Deck     review.Progress          `json:"deck"`
	Mastery  float64                  `json:"mastery"`
	Reviews  storage.ReviewStats      `json:"reviews"`
	Practice []domain.SectionAccuracy `json:"practice"`
	Quota    quota.Status             `json:"quota"`
	Recent   []domain.ReviewLogEntry  `json:"-"`
}

func (s *Server) progress(r *http.Request) (ProgressReport, error) {
	ctx := r.Context()
	owner := auth.OwnerFromContext(ctx)
	now := s.Nower.Now()

	cards, err := s.db.ListFlashcards(ctx, owner)
	if err != nil {
		return ProgressReport{}, err
	}
	rep := ProgressReport{Deck: review.Summarize(cards, now)}
	rep.Mastery = rep.Deck.MasteryRate()
	if rep.Reviews, err = s.db.ReviewStats(ctx, owner, now); err != nil {
		return rep, err
	}
	if rep.Practice, err = s.db.PracticeAccuracy(ctx, owner); err != nil {
		return rep, err
	}
	if rep.Practice == nil {
		rep.Practice = []domain.SectionAccuracy{}
	}
	plan, err := s.planOf(ctx)
	if err != nil {
		return rep, err
	}
	if rep.Quota, err = s.quota.Status(ctx, owner, plan, now); err != nil {
		return rep, err
	}
	if rep.Recent, err = s.db.ReviewLog(ctx, owner, 10); err != nil {
		return rep, err
	}
	return rep, nil
}

func (s *Server) handleGetProgress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := s.progress(r)
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		s.render(w, r, "progress", s.page(r, "Progress", rep))
	}
}

func (s *Server) handleAPIProgress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := s.progress(r)
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// handleAPIDue lists the owner's due flashcards in study order.
func (s *Server) handleAPIDue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		due, _, err := s.dueCards(r.Context(), auth.OwnerFromContext(r.Context()))
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cards": due, "count": len(due)})
	}
}

type reviewRequest struct {
	Rating review.Rating `json:"rating"`
}

// handleAPIReview grades one card. The body is {"rating":"got-it"}.
func (s *Server) handleAPIReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			s.clientError(w, r, http.StatusBadRequest, "Invalid card ID")
			return
		}
		var req reviewRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
			s.fail(w, r, review.ErrInvalidRating)
			return
		}
		card, err := s.grade(r, id, req.Rating)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}
