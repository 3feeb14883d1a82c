// Package server provides the HTTP API for repcoach analysis sessions.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ayusman/repcoach/internal/metrics"
	"github.com/ayusman/repcoach/internal/profile"
	"github.com/ayusman/repcoach/internal/store"
)

// Config holds the server configuration.
type Config struct {
	// Registry resolves exercise IDs. A nil registry serves the built-in catalog.
	Registry *profile.Registry
	// Store persists custom profiles. Profile endpoints are only mounted
	// when it is set.
	Store   *store.Store
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// CatalogPath is re-read on reload. Empty means the built-in catalog.
	CatalogPath string
	// Exercises restricts the exercises offered. Empty offers every profile.
	Exercises []string

	MaxSessions int
	IdleTimeout time.Duration
}

// Server represents the HTTP server for the repcoach application.
type Server struct {
	config   Config
	registry *profile.Registry
	metrics  *metrics.Metrics
	log      *slog.Logger
	sessions *sessionManager
	router   chi.Router
	start    time.Time

	reloadMu sync.Mutex
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config:   config,
		registry: config.Registry,
		metrics:  config.Metrics,
		log:      config.Logger,
		router:   chi.NewRouter(),
		start:    time.Now(),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.registry == nil {
		s.registry = mustDefaultRegistry()
	}
	s.sessions = newSessionManager(config.MaxSessions, config.IdleTimeout, s.metrics.ActiveSessions)
	s.routes()
	return s
}

func mustDefaultRegistry() *profile.Registry {
	defaults, err := profile.Default()
	if err != nil {
		panic(fmt.Sprintf("built-in catalog: %v", err))
	}
	reg, err := profile.NewRegistry(defaults)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog: %v", err))
	}
	return reg
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(RequestLogging(s.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(CORS)

	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/metrics", s.metrics.Handler().ServeHTTP)

	s.router.Get("/api/exercises", s.handleListExercises)
	s.router.Get("/api/exercises/{id}", s.handleGetExercise)

	s.router.Route("/api/profiles", func(r chi.Router) {
		r.Post("/reload", s.handleReloadProfiles)
		if s.config.Store == nil {
			return
		}
		r.Get("/", s.handleListProfiles)
		r.Post("/", s.handleCreateProfile)
		r.Get("/{id}", s.handleGetProfile)
		r.Put("/{id}", s.handleUpdateProfile)
		r.Delete("/{id}", s.handleDeleteProfile)
	})

	s.router.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Get("/{id}", s.handleGetSession)
		r.Delete("/{id}", s.handleDeleteSession)
		r.Post("/{id}/frames", s.handleFrame)
		r.Post("/{id}/reset", s.handleResetSession)
		r.Get("/{id}/stream", s.handleStream)
	})
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Registry returns the registry sessions resolve exercises against.
func (s *Server) Registry() *profile.Registry {
	return s.registry
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"uptime":   time.Since(s.start).String(),
		"profiles": s.registry.Len(),
		"sessions": s.sessions.len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
