package handlers

import (
	"net/http"
	"time"
)

// HealthHandler handles the unauthenticated liveness probe.
type HealthHandler struct {
	version string
	started time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version, started: time.Now()}
}

// healthData is the payload of the liveness probe, consumed by the
// 'xgate status' command.
type healthData struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	StartedAt string `json:"started_at"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_sec"`
}

// Liveness handles GET /healthz.
//
// Returns 200 OK if the server process is running. This endpoint is designed
// for liveness probes and should always succeed as long as the HTTP server
// is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.started)
	writeJSON(w, http.StatusOK, healthyResponse(healthData{
		Service:   "xgate",
		Version:   h.version,
		StartedAt: h.started.UTC().Format(time.RFC3339),
		Uptime:    uptime.Round(time.Second).String(),
		UptimeSec: int64(uptime.Seconds()),
	}))
}
