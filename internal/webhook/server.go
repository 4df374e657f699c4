package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/porter-gw/porter/internal/config"
	"github.com/porter-gw/porter/internal/events"
)

// Config holds gateway server configuration.
type Config struct {
	Listen         string
	ForwardTimeout time.Duration
	MaxBodyBytes   int64
	TrustedProxies []string
}

// Server is the public webhook gateway listener.
type Server struct {
	config    Config
	table     *RouteTable
	forwarder *Forwarder
	source    *sourceAddr
	hub       *events.Hub
	logger    *slog.Logger
	server    *http.Server
}

// ErrorResponse is the uniform JSON body for gateway rejections.
type ErrorResponse struct {
	Result string `json:"result"`
	Error  string `json:"error"`
}

// New creates a gateway server over the given route table. Successful
// deliveries are announced on hub (nil disables the feed). Returns an
// error when the trusted proxy list does not parse; that is a
// configuration fault, surfaced at startup rather than per request.
func New(cfg Config, table *RouteTable, hub *events.Hub, logger *slog.Logger) (*Server, error) {
	if cfg.ForwardTimeout <= 0 {
		cfg.ForwardTimeout = 15 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = config.DefaultMaxBodySize
	}

	source, err := newSourceAddr(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("invalid trusted_proxies: %w", err)
	}

	return &Server{
		config:    cfg,
		table:     table,
		forwarder: NewForwarder(cfg.ForwardTimeout),
		source:    source,
		hub:       hub,
		logger:    logger,
	}, nil
}

// Start starts the gateway HTTP server (blocking until ctx is canceled).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:        s.config.Listen,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// WriteTimeout must cover the forward; leave headroom past it.
		WriteTimeout: s.config.ForwardTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("gateway starting", "listen", s.config.Listen, "plugins", s.table.Len())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("gateway shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("gateway shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("gateway server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// One catch-all route; the table decides which plugin paths exist.
	r.Post("/plugin/{plugin}", s.handleWebhook)

	return r
}

// loggingMiddleware logs requests without payloads or credentials.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// handleWebhook runs the lookup -> source -> credential -> forward
// pipeline. The cheap rejections come first so a request that will be
// refused never costs an upstream call.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "plugin")

	pol, err := s.table.Lookup(name)
	if err != nil {
		recordOutcome(name, outcomeUnknownPlugin)
		s.respondError(w, http.StatusNotFound, "not found")
		return
	}

	if !s.source.allowed(r, pol) {
		recordOutcome(pol.Name, outcomeForbidden)
		s.logger.Warn("webhook source rejected",
			"plugin", pol.Name,
			"source", s.source.extract(r).String(),
		)
		s.respondError(w, http.StatusForbidden, "forbidden")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodyBytes+1))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}
	if int64(len(body)) > s.config.MaxBodyBytes {
		recordOutcome(pol.Name, outcomeTooLarge)
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	if err := authenticate(r, body, pol); err != nil {
		recordOutcome(pol.Name, outcomeUnauthorized)
		s.logger.Warn("webhook authentication rejected",
			"plugin", pol.Name,
			"auth_type", string(pol.AuthType),
		)
		s.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	start := time.Now()
	deliveryID, status, err := s.forwarder.Forward(w, r, pol, body)
	forwardDuration.WithLabelValues(pol.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		recordOutcome(pol.Name, outcomeUpstreamError)
		// The sentinel carries no destination; log it as-is.
		s.logger.Error("webhook forward failed",
			"plugin", pol.Name,
			"delivery_id", deliveryID,
			"error", err,
		)
		s.respondError(w, http.StatusBadGateway, "bad gateway")
		return
	}

	recordOutcome(pol.Name, outcomeForwarded)
	if s.hub != nil {
		s.hub.Publish(events.KindDelivery, map[string]any{
			"plugin":          pol.Name,
			"delivery_id":     deliveryID,
			"upstream_status": status,
		})
	}
	s.logger.Info("webhook forwarded",
		"plugin", pol.Name,
		"delivery_id", deliveryID,
		"upstream_status", status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// respondError sends the uniform JSON rejection body.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Result: "error", Error: message})
}
