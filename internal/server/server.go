package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/claude/anchor/internal/ingest"
	"github.com/claude/anchor/internal/ledger"
	"github.com/claude/anchor/internal/session"
	"github.com/claude/anchor/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Sessions controls the focus session. *engine.Engine satisfies it.
type Sessions interface {
	Start(ctx context.Context, durationSeconds int, sessionType string) (session.State, error)
	Cancel(ctx context.Context) (session.State, error)
	GiveUp(ctx context.Context) (session.State, error)
	Acknowledge(ctx context.Context) (session.State, error)
	Snapshot(ctx context.Context) (session.State, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	sessions        Sessions
	ledger          *ledger.Ledger
	store           storage.Store
	ingest          *ingest.Provider
	events          *Broadcaster
	log             *slog.Logger
	apiKey          string
	defaultDuration int
	router          chi.Router
}

// New creates a new Server with all routes configured. store backs the
// import log; defaultDuration is used when a start request names no duration.
func New(sessions Sessions, l *ledger.Ledger, store storage.Store, provider *ingest.Provider, events *Broadcaster, apiKey string, defaultDuration int, log *slog.Logger) *Server {
	s := &Server{
		sessions:        sessions,
		ledger:          l,
		store:           store,
		ingest:          provider,
		events:          events,
		log:             log,
		apiKey:          apiKey,
		defaultDuration: session.ClampDuration(defaultDuration),
		router:          chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Mount attaches an extra handler, such as the MCP endpoint, under pattern.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.router.Mount(pattern, h)
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(RequestLogging(s.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(CORS)

	// Reads are open; anything that changes a session or the stats needs
	// the API key, the same as sensor ingest.
	auth := APIKeyAuth(s.apiKey)

	s.router.Route("/api/v1/ingest", func(r chi.Router) {
		r.Use(auth)
		r.Post("/motion", s.handleMotionIngest)
		r.Post("/visibility", s.handleVisibilityIngest)
	})

	s.router.Route("/api/v1/session", func(r chi.Router) {
		r.Get("/", s.handleSessionState)
		r.Get("/events", s.handleSessionEvents)
		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Post("/start", s.handleSessionStart)
			r.Post("/cancel", s.handleSessionCancel)
			r.Post("/give-up", s.handleSessionGiveUp)
			r.Post("/acknowledge", s.handleSessionAcknowledge)
		})
	})

	s.router.Get("/api/v1/stats", s.handleStats)
	s.router.Get("/api/v1/history", s.handleHistory)
	s.router.Get("/api/v1/rank", s.handleRank)
	s.router.Get("/api/v1/goal/today", s.handleGoalToday)
	s.router.Get("/api/v1/summary/weekly", s.handleWeeklySummary)
	s.router.Get("/api/v1/imports", s.handleImportLogs)

	s.router.Route("/api/v1/settings", func(r chi.Router) {
		r.Use(auth)
		r.Put("/daily-goal", s.handleSetDailyGoal)
		r.Post("/session-types", s.handleAddSessionType)
		r.Delete("/session-types", s.handleRemoveSessionType)
		r.Post("/strict-mode/toggle", s.handleToggleStrictMode)
	})
}
