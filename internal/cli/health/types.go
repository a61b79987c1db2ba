// Package health declares the wire shape of the /healthz probe for the
// status command.
package health

// Data is the service identity block inside a probe response.
type Data struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	StartedAt string `json:"started_at"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_sec"`
}

// Response mirrors the envelope returned by GET /healthz.
type Response struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      Data   `json:"data"`
	Error     string `json:"error,omitempty"`
}
