package prometheus

import (
	"testing"
	"time"

	"github.com/marmos91/xgate/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGatewayMetricsDisabled(t *testing.T) {
	// Registry not initialized in this process yet
	if metrics.IsEnabled() {
		t.Skip("registry already initialized by another test")
	}
	assert.Nil(t, NewGatewayMetrics())
}

func TestGatewayMetricsRecording(t *testing.T) {
	metrics.InitRegistry()

	m := NewGatewayMetrics()
	require.NotNil(t, m)

	impl, ok := m.(*gatewayMetrics)
	require.True(t, ok)

	m.RecordSession("rejected", 120*time.Millisecond)
	m.RecordSession("direct-handoff", 3*time.Second)
	assert.Equal(t, float64(1), testutil.ToFloat64(impl.sessions.WithLabelValues("rejected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(impl.sessions.WithLabelValues("direct-handoff")))

	m.RecordAuthAttempt("publickey", true)
	m.RecordAuthAttempt("publickey", false)
	m.RecordAuthAttempt("password", false)
	assert.Equal(t, float64(1), testutil.ToFloat64(impl.authAttempts.WithLabelValues("publickey", "accepted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(impl.authAttempts.WithLabelValues("publickey", "rejected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(impl.authAttempts.WithLabelValues("password", "rejected")))

	m.RecordHandshakeFailure()
	assert.Equal(t, float64(1), testutil.ToFloat64(impl.handshakeFailures))

	m.RecordChannelRejected("direct-tcpip")
	assert.Equal(t, float64(1), testutil.ToFloat64(impl.channelsRejected.WithLabelValues("direct-tcpip")))

	m.RecordExecRequest("_proxy")
	m.RecordExecRequest("_proxy")
	assert.Equal(t, float64(2), testutil.ToFloat64(impl.execRequests.WithLabelValues("_proxy")))

	m.RecordBridgeSpawn("seamless")
	assert.Equal(t, float64(1), testutil.ToFloat64(impl.bridgeSpawns.WithLabelValues("seamless")))

	m.RecordBridgeExit(0)
	m.RecordBridgeExit(1)
	assert.Equal(t, float64(1), testutil.ToFloat64(impl.bridgeExits.WithLabelValues("0")))
	assert.Equal(t, float64(1), testutil.ToFloat64(impl.bridgeExits.WithLabelValues("1")))

	m.RecordBridgeBytes("stdout", 4096)
	m.RecordBridgeBytes("stdout", 1)
	assert.Equal(t, float64(4097), testutil.ToFloat64(impl.bridgeBytes.WithLabelValues("stdout")))

	m.SetActiveSessions(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(impl.activeSessions))

	m.RecordConnectionAccepted()
	m.RecordConnectionClosed()
	m.RecordConnectionForceClosed()
	assert.Equal(t, float64(1), testutil.ToFloat64(impl.connsAccepted))
	assert.Equal(t, float64(1), testutil.ToFloat64(impl.connsClosed))
	assert.Equal(t, float64(1), testutil.ToFloat64(impl.connsForceClosed))
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *gatewayMetrics

	assert.NotPanics(t, func() {
		m.RecordSession("rejected", time.Second)
		m.RecordAuthAttempt("none", true)
		m.RecordHandshakeFailure()
		m.RecordChannelRejected("x11")
		m.RecordExecRequest("_proxy")
		m.RecordBridgeSpawn("desktop")
		m.RecordBridgeExit(0)
		m.RecordBridgeBytes("stdin", 1)
		m.SetActiveSessions(0)
		m.RecordConnectionAccepted()
		m.RecordConnectionClosed()
		m.RecordConnectionForceClosed()
	})
}
