package web

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/satprep/internal/decksync"
	"github.com/conorfennell/satprep/internal/gitsource"
	"github.com/conorfennell/satprep/internal/storage"
)

type sourcesView struct {
	Sources []storage.Source
	Results []decksync.Result
}

func (s *Server) sourceList(w http.ResponseWriter, r *http.Request, results []decksync.Result) {
	sources, err := s.db.GetAllSources(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, "source_list", sourcesView{Sources: sources, Results: results})
}

// handlePostSync triggers a manual sync and re-renders the source list.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Run in the foreground to make the user wait
		results, err := s.syncer.Run(r.Context())
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		if err := decksync.Err(results); err != nil {
			logger(r).Warn().Err(err).Msg("sync-partial")
		}
		s.sourceList(w, r, results)
	}
}

// handleGetSources renders the main sources management page.
func (s *Server) handleGetSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := s.db.GetAllSources(r.Context())
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		s.render(w, r, "sources", s.page(r, "Sources", sourcesView{Sources: sources}))
	}
}

// handlePostSource adds a new source and re-renders the source list.
func (s *Server) handlePostSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimSpace(r.PostFormValue("path"))
		if path == "" {
			s.clientError(w, r, http.StatusBadRequest, "Path cannot be empty")
			return
		}
		typ := storage.SourceGit
		if gitsource.IsGitURL(path) {
			if _, err := gitsource.LocalPath(".", path); err != nil {
				s.clientError(w, r, http.StatusBadRequest, "That git URL cannot be checked out")
				return
			}
		} else {
			typ = storage.SourceLocal
			resolved, err := s.localSource(path)
			if err != nil {
				logger(r).Warn().Err(err).Str("path", path).Msg("source-rejected")
				s.clientError(w, r, http.StatusBadRequest, "Local sources must be existing directories inside the deck folder")
				return
			}
			path = resolved
		}
		src, err := s.db.InsertSource(r.Context(), path, typ)
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		logger(r).Info().Int64("source", src.ID).Str("path", path).Str("type", string(typ)).Msg("source-added")
		s.sourceList(w, r, nil)
	}
}

// handleDeleteSource deletes a source and re-renders the source list.
func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			s.clientError(w, r, http.StatusBadRequest, "Invalid source ID")
			return
		}
		if err := s.db.DeleteSource(r.Context(), id); err != nil {
			s.fail(w, r, err)
			return
		}
		s.sourceList(w, r, nil)
	}
}

var errOutsideRoot = errors.New("outside the local deck root")

// localSource resolves path to an existing directory inside the local deck
// root, following symlinks. Relative paths are taken from the root.
func (s *Server) localSource(path string) (string, error) {
	if s.localRoot == "" {
		return "", errors.New("no local deck root configured")
	}
	root, err := filepath.Abs(s.localRoot)
	if err != nil {
		return "", err
	}
	if root, err = filepath.EvalSymlinks(root); err != nil {
		return "", fmt.Errorf("local deck root: %w", err)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is %w", resolved, errOutsideRoot)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", resolved)
	}
	return resolved, nil
}
