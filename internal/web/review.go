package web

import (
	"context"
	"net/http"
	"strconv"

	"github.com/conorfennell/satprep/internal/auth"
	"github.com/conorfennell/satprep/internal/domain"
	"github.com/conorfennell/satprep/internal/review"
)

type deckView struct {
	DueCount    int
	HasDueCards bool
	Total       int
}

type cardView struct {
	Card      domain.Flashcard
	Remaining int
	Ratings   []review.Rating
}

// dueCards returns the owner's due flashcards in study order.
func (s *Server) dueCards(ctx context.Context, owner domain.Owner) ([]domain.Flashcard, int, error) {
	cards, err := s.db.ListFlashcards(ctx, owner)
	if err != nil {
		return nil, 0, err
	}
	due := review.SelectDue(cards, s.Nower.Now())
	review.SortByPriority(due)
	return due, len(cards), nil
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleHome() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		due, total, err := s.dueCards(r.Context(), auth.OwnerFromContext(r.Context()))
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		s.render(w, r, "home", s.page(r, "Study", deckView{
			DueCount:    len(due),
			HasDueCards: len(due) > 0,
			Total:       total,
		}))
	}
}

// handleGetDeck renders the deck view, showing the number of due cards.
func (s *Server) handleGetDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		due, total, err := s.dueCards(r.Context(), auth.OwnerFromContext(r.Context()))
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		s.render(w, r, "deck", deckView{DueCount: len(due), HasDueCards: len(due) > 0, Total: total})
	}
}

// handleGetNextReview renders the front of the next due card.
func (s *Server) handleGetNextReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderNext(w, r)
	}
}

func (s *Server) renderNext(w http.ResponseWriter, r *http.Request) {
	due, total, err := s.dueCards(r.Context(), auth.OwnerFromContext(r.Context()))
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if len(due) == 0 {
		s.render(w, r, "deck", deckView{Total: total})
		return
	}
	s.render(w, r, "card_front", cardView{Card: due[0], Remaining: len(due)})
}

// handleShowAnswer renders the back of a card.
func (s *Server) handleShowAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			s.clientError(w, r, http.StatusBadRequest, "Invalid card ID")
			return
		}
		card, err := s.db.GetFlashcard(r.Context(), auth.OwnerFromContext(r.Context()), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.render(w, r, "card_back", cardView{Card: card, Ratings: review.Ratings})
	}
}

// handlePostReview grades a card and renders the next one.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			s.clientError(w, r, http.StatusBadRequest, "Invalid card ID")
			return
		}
		rating, err := review.ParseRating(r.PostFormValue("rating"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if _, err := s.grade(r, id, rating); err != nil {
			s.fail(w, r, err)
			return
		}
		s.renderNext(w, r)
	}
}

func (s *Server) grade(r *http.Request, id int64, rating review.Rating) (domain.Flashcard, error) {
	owner := auth.OwnerFromContext(r.Context())
	card, err := s.db.GradeFlashcard(r.Context(), owner, id, rating, s.Nower.Now())
	if err != nil {
		return card, err
	}
	logger(r).Info().
		Int64("card", id).
		Str("owner", owner.Key()).
		Stringer("rating", rating).
		Int("interval", card.Review.Interval).
		Float64("ease", card.Review.EaseFactor).
		Msg("card-graded")
	return card, nil
}

// handleDeleteFlashcard removes a card from the owner's deck. The row is
// swapped out by HTMX so the response body is empty.
func (s *Server) handleDeleteFlashcard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			s.clientError(w, r, http.StatusBadRequest, "Invalid card ID")
			return
		}
		if err := s.db.DeleteFlashcard(r.Context(), auth.OwnerFromContext(r.Context()), id); err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
