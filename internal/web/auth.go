package web

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/satprep/internal/auth"
	"github.com/conorfennell/satprep/internal/domain"
	"github.com/conorfennell/satprep/internal/storage"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type credentials struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=8,max=72"`
}

type authForm struct {
	Action string
	Email  string
	Error  string
}

func (s *Server) handleAuthForm(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, "auth", s.page(r, action, authForm{Action: action}))
	}
}

func (s *Server) renderAuthError(w http.ResponseWriter, r *http.Request, action, email, msg string, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	s.render(w, r, "auth", s.page(r, action, authForm{Action: action, Email: email, Error: msg}))
}

func (s *Server) handleSignup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.allow(w, r, s.authLimiter, "auth:"+clientIP(r)) {
			return
		}
		c := credentials{Email: r.PostFormValue("email"), Password: r.PostFormValue("password")}
		if err := validate.Struct(c); err != nil {
			s.renderAuthError(w, r, "signup", c.Email,
				"Enter a valid email and a password of at least 8 characters", http.StatusBadRequest)
			return
		}
		hash, err := auth.HashPassword(c.Password)
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		user, err := s.db.CreateUser(r.Context(), c.Email, hash, s.Nower.Now())
		if errors.Is(err, storage.ErrEmailTaken) {
			s.renderAuthError(w, r, "signup", c.Email, "That email is already registered", http.StatusConflict)
			return
		}
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		logger(r).Info().Int64("user", user.ID).Msg("user-created")
		s.signIn(w, r, user)
	}
}

func (s *Server) handleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.allow(w, r, s.authLimiter, "auth:"+clientIP(r)) {
			return
		}
		email := r.PostFormValue("email")
		user, err := s.db.FindUserByEmail(r.Context(), email)
		if err == nil {
			err = auth.CheckPassword(user.PasswordHash, r.PostFormValue("password"))
		}
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, auth.ErrInvalidCredentials) {
			s.renderAuthError(w, r, "login", email, "Wrong email or password", http.StatusUnauthorized)
			return
		}
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		s.signIn(w, r, user)
	}
}

// signIn moves the visitor's anonymous deck into the account, then issues
// the session cookie. A failed claim leaves the visitor signed out.
func (s *Server) signIn(w http.ResponseWriter, r *http.Request, user domain.User) {
	if anon := auth.OwnerFromContext(r.Context()); !anon.IsZero() && !anon.IsUser() {
		n, err := s.db.ClaimAnonymous(r.Context(), anon, domain.UserOwner(user.ID))
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		if n > 0 {
			logger(r).Info().Int64("user", user.ID).Int("cards", n).Msg("deck-claimed")
		}
	}
	if err := s.setSession(w, user); err != nil {
		s.serverError(w, r, err)
		return
	}
	redirect(w, r, "/")
}

func (s *Server) handleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.clearCookie(w, sessionCookie)
		redirect(w, r, "/")
	}
}

// redirect sends HTMX requests to url with HX-Redirect, since XHR follows
// plain redirects transparently.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", url)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}
