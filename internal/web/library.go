package web

import (
	"net/http"
	"strings"

	"github.com/conorfennell/satprep/internal/auth"
	"github.com/conorfennell/satprep/internal/storage"
)

type libraryView struct {
	Topics []storage.Topic
	Added  int
	Topic  string
}

func (s *Server) handleGetLibrary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topics, err := s.db.LibraryTopics(r.Context())
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		s.render(w, r, "library", s.page(r, "Library", libraryView{Topics: topics}))
	}
}

// handleAddTopic copies a library topic into the owner's deck.
func (s *Server) handleAddTopic() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic := strings.TrimSpace(r.PostFormValue("topic"))
		if topic == "" {
			s.clientError(w, r, http.StatusBadRequest, "Topic cannot be empty")
			return
		}
		owner := auth.OwnerFromContext(r.Context())
		added, err := s.db.AddTopicToDeck(r.Context(), owner, topic, s.Nower.Now())
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		logger(r).Info().Str("owner", owner.Key()).Str("topic", topic).Int("added", added).Msg("topic-added")
		s.render(w, r, "topic_added", libraryView{Added: added, Topic: topic})
	}
}
