// Package server provides HTTP server management and lifecycle handling for
// the music API: the backend serving the collections and the standalone
// metrics server of the frontmetrics process.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/soundstats/music-api/config"
	"github.com/soundstats/music-api/data"
	"github.com/soundstats/music-api/handlers"
	"github.com/soundstats/music-api/interfaces"
	"github.com/soundstats/music-api/logging"
	"github.com/soundstats/music-api/metrics"
)

// Dependencies are the collaborators the backend routes are built from
type Dependencies struct {
	Store    interfaces.DocumentStore
	Health   interfaces.HealthChecker
	Registry *metrics.Registry
	Metrics  *metrics.ServiceMetrics
	Visitors interfaces.VisitorTracker
	Sampler  interfaces.SessionSampler // nil disables session samples
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router chi.Router
	config *config.Config
	name   string
}

// NewServer creates the backend server
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	s := newServer("backend", cfg)

	s.setupMiddleware()
	s.setupRoutes(deps)

	return s
}

// NewMetricsServer creates a server exposing only reg at /metrics
func NewMetricsServer(cfg *config.Config, reg *metrics.Registry) *Server {
	s := newServer("frontmetrics", cfg)

	s.setupMiddleware()
	s.router.Method(http.MethodGet, "/metrics", reg.Handler())

	return s
}

func newServer(name string, cfg *config.Config) *Server {
	router := chi.NewRouter()

	return &Server{
		server: &http.Server{
			Handler:      router,
			Addr:         cfg.Address + ":" + cfg.Port,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
		router: router,
		config: cfg,
		name:   name,
	}
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(logging.LoggingMiddleware(logging.Default()))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes. Only the collection routes are
// instrumented.
func (s *Server) setupRoutes(deps Dependencies) {
	instrumentation := metrics.NewInstrumentation(deps.Metrics, deps.Visitors, deps.Sampler)

	s.router.Get("/", handlers.ServeRoot)

	s.router.With(instrumentation.Instrument(deps.Metrics.ArtistsRequests)).
		Get("/artists", handlers.ServeCollection(deps.Store, data.ArtistsCollection))
	s.router.With(instrumentation.Instrument(deps.Metrics.SongsRequests)).
		Get("/songs", handlers.ServeCollection(deps.Store, data.SongsCollection))

	s.router.Method(http.MethodGet, "/metrics", deps.Registry.Handler())
	s.router.Get("/health", handlers.HealthCheck(deps.Health))
}

// Handler returns the routed handler, middleware included
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start listens and serves until Shutdown. It returns http.ErrServerClosed
// after a graceful shutdown.
func (s *Server) Start() error {
	logging.Info(fmt.Sprintf("Starting %s server at: %s", s.name, s.server.Addr))
	return s.server.ListenAndServe()
}

// Serve is Start on an existing listener
func (s *Server) Serve(l net.Listener) error {
	logging.Info(fmt.Sprintf("Starting %s server at: %s", s.name, l.Addr()))
	return s.server.Serve(l)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...", "server", s.name)

	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "server", s.name, "error", err)
		// If graceful shutdown fails, force close
		if err := s.server.Close(); err != nil {
			logging.Error("Server close error", "server", s.name, "error", err)
			return fmt.Errorf("failed to close %s server: %w", s.name, err)
		}
	}

	logging.Info("Server shutdown complete", "server", s.name)
	return nil
}
