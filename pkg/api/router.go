package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/xgate/internal/logger"
	"github.com/marmos91/xgate/pkg/api/auth"
	"github.com/marmos91/xgate/pkg/api/handlers"
	apiMiddleware "github.com/marmos91/xgate/pkg/api/middleware"
	"github.com/marmos91/xgate/pkg/identity"
)

// NewRouter creates and configures the chi router with all middleware and routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET /healthz - Liveness probe (unauthenticated)
//   - POST /api/v1/login - User authentication (unauthenticated)
//   - GET /api/v1/status - Daemon status (bearer token)
//   - GET /api/v1/sessions - Live session table (bearer token)
func NewRouter(store identity.Store, gw handlers.SessionSource, tokens *auth.TokenService, version string) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Liveness probe - unauthenticated
	healthHandler := handlers.NewHealthHandler(version)
	r.Get("/healthz", healthHandler.Liveness)

	// Root redirect to the liveness probe for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/healthz", http.StatusTemporaryRedirect)
	})

	authHandler := handlers.NewAuthHandler(store, tokens)
	statusHandler := handlers.NewStatusHandler(gw, version)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoint
		r.Post("/login", authHandler.Login)

		// Protected routes - require a valid bearer token
		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.JWTAuth(tokens))

			r.Get("/status", statusHandler.Status)
			r.Get("/sessions", statusHandler.Sessions)
		})
	})

	return r
}

// isHealthPath returns true if the request path is the healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/healthz"
}

// requestLogger is a custom middleware that logs requests using the internal logger.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
//   - Healthcheck requests are logged at DEBUG level to reduce noise
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration.String(),
		}

		// Log healthcheck requests at DEBUG to avoid polluting logs
		if isHealthPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}
