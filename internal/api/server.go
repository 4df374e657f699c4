// Package api is the browser-facing administrative surface: plugin
// registration CRUD, the live alerts feed, SSE events, health, and
// Prometheus metrics. It never receives third-party webhooks; those go
// to the gateway listener.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/porter-gw/porter/internal/alerts"
	"github.com/porter-gw/porter/internal/events"
	"github.com/porter-gw/porter/internal/registry"
	"github.com/porter-gw/porter/internal/webhook"
)

// Config holds admin API server settings.
type Config struct {
	Listen string
	// APIKey, when set, gates every /api route behind a bearer token.
	// Empty means the API is open; front it with a reverse proxy.
	APIKey string
}

// Server is the admin API HTTP server.
type Server struct {
	config    Config
	registry  *registry.Client
	syncer    *registry.Syncer
	table     *webhook.RouteTable
	alerts    *alerts.Store
	events    *events.Hub
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New builds the admin API server.
func New(cfg Config, reg *registry.Client, syncer *registry.Syncer, table *webhook.RouteTable, store *alerts.Store, hub *events.Hub, logger *slog.Logger) *Server {
	return &Server{
		config:    cfg,
		registry:  reg,
		syncer:    syncer,
		table:     table,
		alerts:    store,
		events:    hub,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.setupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("admin API starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("admin API shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoints.
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/api/test", s.handleTest)
		r.Get("/api/plugins", s.handleListPlugins)
		r.Post("/api/plugins", s.handleRegisterPlugin)
		r.Patch("/api/plugins", s.handleUpdatePlugin)
		r.Delete("/api/plugins", s.handleDeletePlugin)
		r.Post("/api/webhook", s.handleAlertIngest)
		r.Get("/api/alerts", s.handleListAlerts)
		r.Get("/api/events", s.handleEvents)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Result: "error", Error: message})
}
