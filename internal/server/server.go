// Package server exposes the engine's operational HTTP and WebSocket API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/alanyoungcy/alphasignal/internal/server/handler"
	"github.com/alanyoungcy/alphasignal/internal/server/middleware"
	"github.com/alanyoungcy/alphasignal/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port           int
	CORSOrigins    []string
	APIKey         string // if empty, authentication is disabled
	RateLimitPerIP int    // requests per minute; 0 disables
}

// Handlers aggregates the HTTP handlers. Nil handlers are not routed.
type Handlers struct {
	Health       *handler.HealthHandler
	Status       *handler.StatusHandler
	Signals      *handler.SignalHandler
	Trigger      *handler.TriggerHandler
	VenueMarkets *handler.VenueMarketHandler
	Archives     *handler.ArchiveHandler
	Audit        *handler.AuditHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers the routes and wraps them in the middleware chain:
// CORS, logging, rate limit, auth. limiter may be nil.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      newRouter(cfg, handlers, hub, limiter, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With(slog.String("component", "server")),
	}
}

func newRouter(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	if handlers.Status != nil {
		mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	}
	if handlers.Signals != nil {
		mux.HandleFunc("GET /api/signals", handlers.Signals.ListSignals)
	}
	if handlers.Trigger != nil {
		mux.HandleFunc("POST /api/trigger", handlers.Trigger.Trigger)
	}
	if handlers.VenueMarkets != nil {
		mux.HandleFunc("GET /api/venue-markets/available", handlers.VenueMarkets.ListAvailable)
	}
	if handlers.Archives != nil {
		mux.HandleFunc("GET /api/archives", handlers.Archives.ListArchives)
	}
	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/audit", handlers.Audit.ListAudit)
	}
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	if limiter != nil && cfg.RateLimitPerIP > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimitPerIP, time.Minute, logger)(h)
	}
	h = middleware.Logging(logger, "/api/health")(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
