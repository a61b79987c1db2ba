package handlers

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/marmos91/xgate/internal/logger"
	"github.com/marmos91/xgate/pkg/api/middleware"
	"github.com/marmos91/xgate/pkg/gateway"
)

// SessionSource exposes the live state of the SSH gateway to the API.
// *gateway.Server satisfies this interface.
type SessionSource interface {
	ActiveConnections() int32
	Sessions() []gateway.SessionInfo
}

// StatusHandler serves daemon status and the live session table.
type StatusHandler struct {
	gw      SessionSource
	version string
	started time.Time
}

// NewStatusHandler creates a new status handler.
//
// The source parameter may be nil, in which case connection and session
// counts are reported as zero.
func NewStatusHandler(gw SessionSource, version string) *StatusHandler {
	return &StatusHandler{
		gw:      gw,
		version: version,
		started: time.Now(),
	}
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Version           string `json:"version"`
	GoVersion         string `json:"go_version"`
	PID               int    `json:"pid"`
	Uptime            string `json:"uptime"`
	ActiveConnections int32  `json:"active_connections"`
	Sessions          int    `json:"sessions"`
}

// SessionsResponse is the response body for GET /api/v1/sessions.
type SessionsResponse struct {
	Sessions []gateway.SessionInfo `json:"sessions"`
	Count    int                   `json:"count"`
}

// Status handles GET /api/v1/status.
// Returns daemon identity and live gateway counters.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	response := StatusResponse{
		Version:   h.version,
		GoVersion: runtime.Version(),
		PID:       os.Getpid(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	}

	if h.gw != nil {
		response.ActiveConnections = h.gw.ActiveConnections()
		response.Sessions = len(h.gw.Sessions())
	}

	WriteJSONOK(w, response)
}

// Sessions handles GET /api/v1/sessions.
// Returns the live session table, oldest first.
func (h *StatusHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil {
		logger.DebugCtx(r.Context(), "Session table requested", "requested_by", claims.Username)
	}

	sessions := make([]gateway.SessionInfo, 0)
	if h.gw != nil {
		sessions = append(sessions, h.gw.Sessions()...)
	}

	WriteJSONOK(w, SessionsResponse{
		Sessions: sessions,
		Count:    len(sessions),
	})
}
