// Package server exposes the engine over HTTP and WebSocket: marketplace
// browsing, confirmed actions, filter configuration, and change push.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/courtside/refexchange/internal/domain"
	"github.com/courtside/refexchange/internal/server/handler"
	"github.com/courtside/refexchange/internal/server/middleware"
	"github.com/courtside/refexchange/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit caps requests per client IP per RateWindow. Zero disables
	// the limiter even when one is wired.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health    *handler.HealthHandler
	Exchanges *handler.ExchangeHandler
	Settings  *handler.SettingsHandler
}

// Server is the HTTP + WebSocket API server of the exchange engine.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes registered and the middleware chain
// (rate limit, auth, logging, CORS) applied.
func New(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Marketplace endpoints.
	mux.HandleFunc("GET /api/exchanges", handlers.Exchanges.ListExchanges)
	mux.HandleFunc("POST /api/exchanges/{id}/actions", handlers.Exchanges.ExecuteAction)

	// Filter configuration endpoints.
	mux.HandleFunc("GET /api/settings/filters", handlers.Settings.ListFilters)
	mux.HandleFunc("PUT /api/settings/filters/{kind}", handlers.Settings.UpdateFilter)
	mux.HandleFunc("PUT /api/settings/filters/{kind}/overrides/{association}", handlers.Settings.SetOverride)
	mux.HandleFunc("DELETE /api/settings/filters/{kind}/overrides/{association}", handlers.Settings.ClearOverride)

	// WebSocket change push.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux

	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
