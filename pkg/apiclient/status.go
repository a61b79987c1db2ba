package apiclient

import (
	"time"
)

// ServerStatus represents the daemon status reported by the API.
type ServerStatus struct {
	Version           string `json:"version"`
	GoVersion         string `json:"go_version"`
	PID               int    `json:"pid"`
	Uptime            string `json:"uptime"`
	ActiveConnections int32  `json:"active_connections"`
	Sessions          int    `json:"sessions"`
}

// Session represents one entry in the gateway's live session table.
type Session struct {
	ID         string    `json:"id"`
	User       string    `json:"user"`
	RemoteAddr string    `json:"remote_addr"`
	Outcome    string    `json:"outcome"`
	Mode       string    `json:"mode,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

// SessionList represents the live session table.
type SessionList struct {
	Sessions []Session `json:"sessions"`
	Count    int       `json:"count"`
}

// Status returns daemon identity and live gateway counters.
func (c *Client) Status() (*ServerStatus, error) {
	var status ServerStatus
	if err := c.get("/api/v1/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Sessions returns the gateway's live session table, oldest first.
func (c *Client) Sessions() (*SessionList, error) {
	var list SessionList
	if err := c.get("/api/v1/sessions", &list); err != nil {
		return nil, err
	}
	return &list, nil
}
