package prometheus

import (
	"strconv"
	"time"

	"github.com/marmos91/xgate/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// gatewayMetrics is the Prometheus implementation of metrics.GatewayMetrics.
type gatewayMetrics struct {
	sessions          *prometheus.CounterVec
	sessionDuration   *prometheus.HistogramVec
	authAttempts      *prometheus.CounterVec
	handshakeFailures prometheus.Counter
	channelsRejected  *prometheus.CounterVec
	execRequests      *prometheus.CounterVec
	bridgeSpawns      *prometheus.CounterVec
	bridgeExits       *prometheus.CounterVec
	bridgeBytes       *prometheus.CounterVec
	activeSessions    prometheus.Gauge
	connsAccepted     prometheus.Counter
	connsClosed       prometheus.Counter
	connsForceClosed  prometheus.Counter
}

// NewGatewayMetrics creates a new Prometheus-backed GatewayMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewGatewayMetrics() metrics.GatewayMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &gatewayMetrics{
		sessions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "xgate_sessions_total",
				Help: "Total number of completed sessions by outcome",
			},
			[]string{"outcome"}, // "direct-handoff", "subprocess", "rejected"
		),
		sessionDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "xgate_session_duration_seconds",
				Help: "Time from connection accept to session outcome in seconds",
				Buckets: []float64{
					0.05, // 50ms - fast rejections
					0.25, // 250ms
					1,    // 1s - handshake plus auth
					5,    // 5s
					20,   // 20s - exec wait timeout
					60,   // 1m
					300,  // 5m
					1800, // 30m - long-lived bridges
					7200, // 2h
				},
			},
			[]string{"outcome"},
		),
		authAttempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "xgate_auth_attempts_total",
				Help: "Total number of authentication attempts by method and result",
			},
			[]string{"method", "result"}, // result: "accepted", "rejected"
		),
		handshakeFailures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "xgate_handshake_failures_total",
				Help: "Total number of SSH transport negotiations that failed",
			},
		),
		channelsRejected: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "xgate_channels_rejected_total",
				Help: "Total number of rejected channel open requests by channel type",
			},
			[]string{"channel_type"},
		),
		execRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "xgate_exec_requests_total",
				Help: "Total number of interpreted exec requests by resolved subcommand",
			},
			[]string{"subcommand"},
		),
		bridgeSpawns: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "xgate_bridge_spawns_total",
				Help: "Total number of bridge subprocesses spawned by session mode",
			},
			[]string{"mode"}, // "seamless", "desktop", "shadow"
		),
		bridgeExits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "xgate_bridge_exits_total",
				Help: "Total number of bridge subprocess exits by exit code",
			},
			[]string{"exit_code"},
		),
		bridgeBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "xgate_bridge_bytes_total",
				Help: "Total bytes forwarded by bridge workers by direction",
			},
			[]string{"direction"}, // "stdin", "stdout", "stderr"
		),
		activeSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "xgate_active_sessions",
				Help: "Current number of active sessions",
			},
		),
		connsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "xgate_connections_accepted_total",
				Help: "Total number of accepted TCP connections",
			},
		),
		connsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "xgate_connections_closed_total",
				Help: "Total number of closed TCP connections",
			},
		),
		connsForceClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "xgate_connections_force_closed_total",
				Help: "Total number of connections forcibly closed during shutdown",
			},
		),
	}
}

func (m *gatewayMetrics) RecordSession(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(outcome).Inc()
	m.sessionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *gatewayMetrics) RecordAuthAttempt(method string, success bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if success {
		result = "accepted"
	}
	m.authAttempts.WithLabelValues(method, result).Inc()
}

func (m *gatewayMetrics) RecordHandshakeFailure() {
	if m == nil {
		return
	}
	m.handshakeFailures.Inc()
}

func (m *gatewayMetrics) RecordChannelRejected(kind string) {
	if m == nil {
		return
	}
	m.channelsRejected.WithLabelValues(kind).Inc()
}

func (m *gatewayMetrics) RecordExecRequest(subcommand string) {
	if m == nil {
		return
	}
	m.execRequests.WithLabelValues(subcommand).Inc()
}

func (m *gatewayMetrics) RecordBridgeSpawn(mode string) {
	if m == nil {
		return
	}
	m.bridgeSpawns.WithLabelValues(mode).Inc()
}

func (m *gatewayMetrics) RecordBridgeExit(exitCode int) {
	if m == nil {
		return
	}
	m.bridgeExits.WithLabelValues(strconv.Itoa(exitCode)).Inc()
}

func (m *gatewayMetrics) RecordBridgeBytes(direction string, bytes uint64) {
	if m == nil {
		return
	}
	m.bridgeBytes.WithLabelValues(direction).Add(float64(bytes))
}

func (m *gatewayMetrics) SetActiveSessions(count int32) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(count))
}

func (m *gatewayMetrics) RecordConnectionAccepted() {
	if m == nil {
		return
	}
	m.connsAccepted.Inc()
}

func (m *gatewayMetrics) RecordConnectionClosed() {
	if m == nil {
		return
	}
	m.connsClosed.Inc()
}

func (m *gatewayMetrics) RecordConnectionForceClosed() {
	if m == nil {
		return
	}
	m.connsForceClosed.Inc()
}
