package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/claude/workoutpal/internal/auth"
	"github.com/claude/workoutpal/internal/catalog"
	"github.com/claude/workoutpal/internal/history"
	"github.com/claude/workoutpal/internal/models"
	"github.com/claude/workoutpal/internal/session"
	"github.com/go-chi/chi/v5"
)

// PreferenceStore reads and writes the user's toggles.
type PreferenceStore interface {
	Preferences(ctx context.Context) models.Preferences
	SavePreferences(ctx context.Context, p models.Preferences) error
}

// Deps are the services the HTTP handlers drive.
type Deps struct {
	Catalog     *catalog.Catalog
	History     *history.Store
	Sessions    *session.Manager
	Preferences PreferenceStore
	Auth        *auth.Service
	// Session carries the defaults for new sessions. VoiceEnabled is taken
	// from the stored preferences on every Begin.
	Session session.Config
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	Deps
	log    *slog.Logger
	apiKey string
	router chi.Router
	whois  WhoIser
	mcp    http.Handler
}

// New creates a new Server with all routes configured.
func New(deps Deps, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		Deps:   deps,
		log:    log,
		apiKey: apiKey,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identity)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))

		r.Get("/workouts", s.handleListWorkouts)
		r.Get("/workouts/{id}", s.handleGetWorkout)

		r.Post("/session", s.handleBeginSession)
		r.Get("/session", s.handleGetSession)
		r.Delete("/session", s.handleEndSession)
		r.Post("/session/start", s.sessionCommand((*session.Runner).Start))
		r.Post("/session/pause", s.sessionCommand((*session.Runner).Pause))
		r.Post("/session/resume", s.sessionCommand((*session.Runner).Resume))
		r.Post("/session/skip", s.sessionCommand((*session.Runner).Skip))

		r.Get("/history", s.handleListHistory)
		r.Get("/history/recent", s.handleRecentHistory)
		r.Delete("/history", s.handleClearHistory)
		r.Get("/stats", s.handleStats)

		r.Get("/preferences", s.handleGetPreferences)
		r.Put("/preferences", s.handlePutPreferences)

		r.Post("/auth/signup", s.handleSignUp)
		r.Post("/auth/signin", s.handleSignIn)
		r.Post("/auth/signout", s.handleSignOut)
		r.Get("/me", s.handleMe)
	})

	s.router.With(APIKeyAuth(s.apiKey)).Handle("/mcp", http.HandlerFunc(s.serveMCP))
}

// identity picks the tailnet middleware once a local client is attached.
func (s *Server) identity(next http.Handler) http.Handler {
	dev := DevIdentity(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.whois == nil {
			dev.ServeHTTP(w, r)
			return
		}
		TailnetIdentity(s.whois, s.log)(next).ServeHTTP(w, r)
	})
}

// SetTailscale attaches the tsnet local client used to identify callers.
func (s *Server) SetTailscale(lc WhoIser) {
	s.whois = lc
}

// SetMCP mounts the MCP streamable HTTP handler at /mcp.
func (s *Server) SetMCP(h http.Handler) {
	s.mcp = h
}

func (s *Server) serveMCP(w http.ResponseWriter, r *http.Request) {
	if s.mcp == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "mcp not enabled"})
		return
	}
	s.mcp.ServeHTTP(w, r)
}
