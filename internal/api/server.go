package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/wireless-discovery/wdc/internal/auth"
)

// Server represents the HTTP API server.
type Server struct {
	httpServer     *http.Server
	telemetryHub   TelemetryPort
	inventory      InventoryPort
	authMiddleware *auth.Middleware
	log            zerolog.Logger
	startTime      time.Time
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

// NewServer creates a new API server without authentication.
func NewServer(telemetryHub TelemetryPort, inventory InventoryPort, readTimeout, writeTimeout, idleTimeout time.Duration) *Server {
	return &Server{
		telemetryHub: telemetryHub,
		inventory:    inventory,
		log:          zerolog.Nop(),
		startTime:    time.Now(),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		idleTimeout:  idleTimeout,
	}
}

// NewServerWithAuth creates a new API server with authentication middleware.
func NewServerWithAuth(telemetryHub TelemetryPort, inventory InventoryPort, authMiddleware *auth.Middleware, readTimeout, writeTimeout, idleTimeout time.Duration) *Server {
	s := NewServer(telemetryHub, inventory, readTimeout, writeTimeout, idleTimeout)
	s.authMiddleware = authMiddleware
	return s
}

// SetLogger installs the structured logger used for request-level events.
func (s *Server) SetLogger(log zerolog.Logger) {
	s.log = log.With().Str("component", "api").Logger()
}

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}

	s.log.Info().Str("addr", addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
