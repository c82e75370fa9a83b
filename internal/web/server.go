package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/justinas/alice"
	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"

	"github.com/conorfennell/satprep/internal/ai"
	"github.com/conorfennell/satprep/internal/auth"
	"github.com/conorfennell/satprep/internal/decksync"
	"github.com/conorfennell/satprep/internal/domain"
	"github.com/conorfennell/satprep/internal/memstore"
	"github.com/conorfennell/satprep/internal/quota"
	"github.com/conorfennell/satprep/internal/ratelimit"
	"github.com/conorfennell/satprep/internal/storage"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

// Generator produces AI study content.
type Generator interface {
	GenerateFlashcards(ctx context.Context, req ai.FlashcardRequest) ([]domain.Card, error)
	GeneratePracticeQuestions(ctx context.Context, req ai.QuestionRequest) ([]domain.PracticeQuestion, error)
	GenerateLesson(ctx context.Context, req ai.LessonRequest) (domain.Lesson, error)
	GenerateStudyPlan(ctx context.Context, req ai.PlanRequest) (domain.StudyPlan, error)
}

// Syncer reconciles deck sources on demand.
type Syncer interface {
	Run(ctx context.Context) ([]decksync.Result, error)
}

type nower interface {
	Now() time.Time
}

// RealNower is the wall clock in UTC, so stored timestamps and day
// boundaries agree whatever the host time zone.
type RealNower struct{}

func (r RealNower) Now() time.Time {
	return time.Now().UTC()
}

// Deps are the collaborators of a Server.
type Deps struct {
	DB            *storage.DB
	Generator     Generator
	Syncer        Syncer
	Tokens        *auth.Tokens
	Quota         *quota.Quota
	AuthLimiter   *ratelimit.Limiter // login and signup, per client IP
	GenLimiter    *ratelimit.Limiter // AI generation, per owner
	Lessons       *memstore.Store[domain.Lesson]
	Logger        zerolog.Logger
	SecureCookies bool
	Admins        []string // emails allowed to manage deck sources
	LocalRoot     string   // local deck sources must be directories under it
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	db          *storage.DB
	gen         Generator
	syncer      Syncer
	tokens      *auth.Tokens
	quota       *quota.Quota
	authLimiter *ratelimit.Limiter
	genLimiter  *ratelimit.Limiter
	lessons     *memstore.Store[domain.Lesson]
	log         zerolog.Logger
	secure      bool
	admins      map[string]bool
	localRoot   string

	router    *http.ServeMux
	handler   http.Handler
	templates *template.Template
	Nower     nower
}

// NewServer creates and configures a new server.
func NewServer(d Deps) (*Server, error) {
	md := goldmark.New()
	funcs := template.FuncMap{
		"markdown": func(src string) (template.HTML, error) {
			var buf bytes.Buffer
			if err := md.Convert([]byte(src), &buf); err != nil {
				return "", err
			}
			// goldmark escapes raw HTML unless WithUnsafe is set.
			return template.HTML(buf.String()), nil
		},
		"pct": func(v float64) string {
			return fmt.Sprintf("%.0f%%", v*100)
		},
		"date": func(t *time.Time) string {
			if t == nil {
				return "never"
			}
			return t.Format("Jan 2, 2006")
		},
	}
	tpl, err := template.New("").Funcs(funcs).ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		db:          d.DB,
		gen:         d.Generator,
		syncer:      d.Syncer,
		tokens:      d.Tokens,
		quota:       d.Quota,
		authLimiter: d.AuthLimiter,
		genLimiter:  d.GenLimiter,
		lessons:     d.Lessons,
		log:         d.Logger,
		secure:      d.SecureCookies,
		admins:      make(map[string]bool, len(d.Admins)),
		localRoot:   d.LocalRoot,
		router:      http.NewServeMux(),
		templates:   tpl,
		Nower:       RealNower{},
	}
	for _, email := range d.Admins {
		s.admins[strings.ToLower(strings.TrimSpace(email))] = true
	}
	if err := s.routes(); err != nil {
		return nil, err
	}
	s.handler = s.middleware().Then(s.router)
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() error {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("failed to create sub-filesystem for static assets: %w", err)
	}
	fileServer := http.FileServer(http.FS(staticFS))
	userOnly := alice.New(s.requireUser)
	adminOnly := alice.New(s.requireAdmin)

	s.router.Handle("GET /static/", http.StripPrefix("/static/", fileServer))
	s.router.HandleFunc("GET /healthz", s.handleHealthz())
	s.router.HandleFunc("GET /{$}", s.handleHome())

	s.router.HandleFunc("GET /signup", s.handleAuthForm("signup"))
	s.router.HandleFunc("POST /signup", s.handleSignup())
	s.router.HandleFunc("GET /login", s.handleAuthForm("login"))
	s.router.HandleFunc("POST /login", s.handleLogin())
	s.router.HandleFunc("POST /logout", s.handleLogout())

	// HTMX-based routes
	s.router.HandleFunc("GET /deck", s.handleGetDeck())
	s.router.HandleFunc("GET /review/next", s.handleGetNextReview())
	s.router.HandleFunc("GET /review/{id}/answer", s.handleShowAnswer())
	s.router.HandleFunc("POST /review/{id}", s.handlePostReview())
	s.router.HandleFunc("POST /flashcards/generate", s.handleGenerateFlashcards())
	s.router.HandleFunc("DELETE /flashcards/{id}", s.handleDeleteFlashcard())

	s.router.HandleFunc("GET /library", s.handleGetLibrary())
	s.router.HandleFunc("POST /library/add", s.handleAddTopic())

	s.router.HandleFunc("GET /practice", s.handleGetPractice())
	s.router.HandleFunc("POST /practice/generate", s.handleGeneratePractice())
	s.router.HandleFunc("POST /practice/{id}/answer", s.handleAnswerPractice())

	s.router.HandleFunc("GET /lessons", s.handleGetLessons())
	s.router.HandleFunc("POST /lessons", s.handleGenerateLesson())

	s.router.Handle("GET /plan", userOnly.ThenFunc(s.handleGetPlan()))
	s.router.Handle("POST /plan", userOnly.ThenFunc(s.handleGeneratePlan()))

	s.router.HandleFunc("GET /progress", s.handleGetProgress())

	// Source management routes
	s.router.Handle("GET /sources", adminOnly.ThenFunc(s.handleGetSources()))
	s.router.Handle("POST /sources", adminOnly.ThenFunc(s.handlePostSource()))
	s.router.Handle("DELETE /sources/{id}", adminOnly.ThenFunc(s.handleDeleteSource()))
	s.router.Handle("POST /sync", adminOnly.ThenFunc(s.handlePostSync()))

	// JSON API
	s.router.HandleFunc("GET /api/flashcards/due", s.handleAPIDue())
	s.router.HandleFunc("POST /api/flashcards/{id}/review", s.handleAPIReview())
	s.router.HandleFunc("GET /api/progress", s.handleAPIProgress())
	return nil
}

func (s *Server) handleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}
}

// render executes a named template, logging instead of failing the
// response when the client went away mid-write.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.serverError(w, r, fmt.Errorf("render %s: %w", name, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil && !errors.Is(err, context.Canceled) {
		zerolog.Ctx(r.Context()).Debug().Err(err).Str("template", name).Msg("write-failed")
	}
}

// page is the data every full page template receives.
type page struct {
	Title   string
	User    *auth.AuthedUser
	Admin   bool
	Flash   string
	Content any
}

func (s *Server) page(r *http.Request, title string, content any) page {
	p := page{Title: title, User: auth.UserFromContext(r.Context()), Content: content}
	if p.User != nil && len(s.admins) > 0 {
		p.Admin, _ = s.isAdmin(r)
	}
	return p
}
