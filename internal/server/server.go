package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/veritas-legal/factgate/internal/facts"
)

// Server is the governance HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional (nil-safe): Health.
type ServerConfig struct {
	// Required dependencies.
	Service *facts.Service
	Logger  *slog.Logger

	// Optional dependencies (nil = disabled).
	Health HealthChecker

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Service:             cfg.Service,
		Health:              cfg.Health,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	mux := http.NewServeMux()

	// Fact recording and listing, scoped to a case.
	mux.HandleFunc("POST /v1/cases/{case_id}/facts", h.HandleCreateFact)
	mux.HandleFunc("GET /v1/cases/{case_id}/facts", h.HandleListFacts)
	mux.HandleFunc("GET /v1/cases/{case_id}/facts/critical-dates", h.HandleCriticalDates)
	mux.HandleFunc("GET /v1/cases/{case_id}/facts/conflicts", h.HandleListConflicts)
	mux.HandleFunc("POST /v1/cases/{case_id}/facts/bulk-extract", h.HandleBulkExtract)

	// Per-fact governance operations.
	mux.HandleFunc("GET /v1/facts/{fact_id}", h.HandleGetFact)
	mux.HandleFunc("POST /v1/facts/{fact_id}/verify", h.HandleVerifyFact)
	mux.HandleFunc("POST /v1/facts/{fact_id}/sign-off", h.HandleSignOffFact)

	// Health (no acting user required).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → acting user → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = actingUserMiddleware(handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
