package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/xgate/internal/logger"
	"github.com/marmos91/xgate/pkg/api/auth"
	"github.com/marmos91/xgate/pkg/api/handlers"
	"github.com/marmos91/xgate/pkg/identity"
)

// Server provides the control API HTTP server.
//
// Endpoints:
//   - GET /healthz: Liveness probe
//   - POST /api/v1/login: Credential login, returns a bearer token
//   - GET /api/v1/status: Daemon status
//   - GET /api/v1/sessions: Live session table
//
// The server supports graceful shutdown with configurable timeout.
type Server struct {
	server       *http.Server
	config       APIConfig
	shutdownOnce sync.Once
}

// NewServer creates a new control API HTTP server.
//
// The server is created in a stopped state. Call Start() to begin serving
// requests.
//
// Defaults are applied here to ensure the server works correctly even when
// created directly (e.g., in tests). This is idempotent with the defaults
// applied during config loading.
//
// Parameters:
//   - config: Server configuration (port, timeouts, JWT secret)
//   - store: User store backing POST /api/v1/login (may be nil to disable login)
//   - gw: Gateway state source for status and session listing (may be nil)
//   - version: Daemon version reported by status endpoints
//
// Returns an error when no JWT secret is configured or the secret is too
// short; the API cannot authenticate anything without one.
func NewServer(config APIConfig, store identity.Store, gw handlers.SessionSource, version string) (*Server, error) {
	config.applyDefaults()

	tokens, err := auth.NewTokenService(auth.Config{
		Secret:        config.GetJWTSecret(),
		TokenDuration: config.JWT.TokenDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("api: invalid JWT secret (set %s or api.jwt.secret): %w", EnvAPISecret, err)
	}

	router := NewRouter(store, gw, tokens, version)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return &Server{
		server: server,
		config: config,
	}, nil
}

// Start starts the API HTTP server and blocks until the context is cancelled
// or an error occurs.
//
// When the context is cancelled, Start initiates graceful shutdown and returns.
//
// Returns:
//   - nil on graceful shutdown
//   - error if the server fails to start or shutdown encounters an error
func (s *Server) Start(ctx context.Context) error {
	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.config.Port)
		logger.Debug("API endpoints available",
			"healthz", fmt.Sprintf("http://localhost:%d/healthz", s.config.Port),
			"status", fmt.Sprintf("http://localhost:%d/api/v1/status", s.config.Port),
			"sessions", fmt.Sprintf("http://localhost:%d/api/v1/sessions", s.config.Port),
		)

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
				// Context was cancelled, error is not needed
			}
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		// Create new context with timeout for graceful shutdown
		// Don't use the cancelled ctx as it would cause immediate shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the API server.
//
// Stop is safe to call multiple times and safe to call concurrently with Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("API server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", "error", err)
		} else {
			logger.Info("API server stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int {
	return s.config.Port
}
