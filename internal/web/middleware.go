package web

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/justinas/alice"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/conorfennell/satprep/internal/ai"
	"github.com/conorfennell/satprep/internal/auth"
	"github.com/conorfennell/satprep/internal/domain"
	"github.com/conorfennell/satprep/internal/quota"
	"github.com/conorfennell/satprep/internal/ratelimit"
	"github.com/conorfennell/satprep/internal/review"
	"github.com/conorfennell/satprep/internal/storage"
)

const (
	sessionCookie = "satprep_session"
	anonCookie    = "satprep_anon"
)

func (s *Server) middleware() alice.Chain {
	return alice.New(
		hlog.NewHandler(s.log),
		hlog.RequestIDHandler("req_id", "X-Request-Id"),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Stringer("url", r.URL).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		}),
		s.recoverer,
		s.identify,
	)
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				hlog.FromRequest(r).Error().Interface("panic", rec).Msg("handler-panic")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// identify works out whose deck the request is for: the signed-in user if
// the session cookie verifies, otherwise an anonymous session that is
// created on first visit.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := s.Nower.Now()
		if c, err := r.Cookie(sessionCookie); err == nil {
			user, err := s.tokens.Parse(c.Value, now)
			if err == nil {
				ctx := auth.StoreOwnerInContext(r.Context(), domain.UserOwner(user.ID), user)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			hlog.FromRequest(r).Debug().Err(err).Msg("stale-session")
			s.clearCookie(w, sessionCookie)
		}

		var sessionID string
		if c, err := r.Cookie(anonCookie); err == nil && auth.ValidSessionID(c.Value) {
			sessionID = c.Value
		} else {
			sessionID = auth.NewSessionID()
			http.SetCookie(w, &http.Cookie{
				Name:     anonCookie,
				Value:    sessionID,
				Path:     "/",
				Expires:  now.AddDate(1, 0, 0),
				HttpOnly: true,
				Secure:   s.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := auth.StoreOwnerInContext(r.Context(), domain.AnonOwner(sessionID), nil)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.UserFromContext(r.Context()) == nil {
			s.clientError(w, r, http.StatusUnauthorized, "Please log in first")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// isAdmin reports whether the signed-in user's email is on the admin list.
// The email is read from the database, not the session.
func (s *Server) isAdmin(r *http.Request) (bool, error) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		return false, nil
	}
	u, err := s.db.FindUserByID(r.Context(), user.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.admins[strings.ToLower(u.Email)], nil
}

// requireAdmin lets through only users on the admin list: 401 for visitors,
// 403 for everyone else.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.UserFromContext(r.Context()) == nil {
			s.clientError(w, r, http.StatusUnauthorized, "Please log in first")
			return
		}
		ok, err := s.isAdmin(r)
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		if !ok {
			logger(r).Warn().Str("path", r.URL.Path).Msg("admin-denied")
			s.clientError(w, r, http.StatusForbidden, "Only site admins can manage deck sources")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) setSession(w http.ResponseWriter, user domain.User) error {
	now := s.Nower.Now()
	token, err := s.tokens.Issue(user, now)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  now.Add(s.tokens.TTL()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Server) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// allow applies a rate limiter, answering 429 when the key is over its
// limit.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, l *ratelimit.Limiter, key string) bool {
	if l == nil {
		return true
	}
	d := l.Allow(key)
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if d.Allowed {
		return true
	}
	retry := d.RetryAfter(s.Nower.Now())
	w.Header().Set("Retry-After", strconv.Itoa(int(retry.Round(time.Second).Seconds())))
	hlog.FromRequest(r).Warn().Str("key", key).Msg("rate-limited")
	s.clientError(w, r, http.StatusTooManyRequests, "Too many requests, slow down")
	return false
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}

func (s *Server) clientError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if isAPI(r) {
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}
	http.Error(w, msg, status)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	hlog.FromRequest(r).Error().Err(err).Msg("request-failed")
	s.clientError(w, r, http.StatusInternalServerError, "Internal Server Error")
}

// fail maps domain errors to status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *ai.APIError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.clientError(w, r, http.StatusNotFound, "Not found")
	case errors.Is(err, review.ErrInvalidRating), errors.Is(err, ai.ErrInvalidRequest):
		s.clientError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, quota.ErrQuotaExceeded):
		s.clientError(w, r, http.StatusTooManyRequests, "You have used all of this month's free generations")
	case errors.Is(err, ai.ErrInvalidPayload), errors.As(err, &apiErr):
		hlog.FromRequest(r).Warn().Err(err).Msg("ai-failed")
		s.clientError(w, r, http.StatusBadGateway, "The AI tutor could not answer right now, try again")
	default:
		s.serverError(w, r, err)
	}
}

// failAI is fail for errors from the generator: anything that is not a
// caller mistake is reported as an upstream failure.
func (s *Server) failAI(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ai.ErrInvalidRequest) {
		s.fail(w, r, err)
		return
	}
	var apiErr *ai.APIError
	if !errors.Is(err, ai.ErrInvalidPayload) && !errors.As(err, &apiErr) {
		err = fmt.Errorf("%w: %v", ai.ErrInvalidPayload, err)
	}
	s.fail(w, r, err)
}

// logger is a shortcut for the request-scoped logger.
func logger(r *http.Request) *zerolog.Logger {
	return hlog.FromRequest(r)
}
