package metrics

import (
	"time"
)

// GatewayMetrics provides observability for the session gateway.
//
// Implementations can collect metrics about the SSH transport, authentication
// decisions, command interpretation, and bridge traffic. This interface is
// optional - pass nil to disable metrics collection with zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	metrics := prometheus.NewGatewayMetrics()
//	srv := gateway.New(cfg, deps, metrics)
//
//	// Without metrics (pass nil for zero overhead)
//	srv := gateway.New(cfg, deps, nil)
type GatewayMetrics interface {
	// RecordSession records a completed session with its outcome and duration.
	//
	// Parameters:
	//   - outcome: Session outcome ("direct-handoff", "subprocess", "rejected")
	//   - duration: Time from connection accept to outcome
	RecordSession(outcome string, duration time.Duration)

	// RecordAuthAttempt records one authentication decision.
	//
	// Parameters:
	//   - method: SSH auth method ("none", "password", "publickey", "gssapi-with-mic")
	//   - success: Whether the attempt was accepted
	RecordAuthAttempt(method string, success bool)

	// RecordHandshakeFailure increments the failed-handshake counter.
	// Called when the SSH transport negotiation fails before authentication.
	RecordHandshakeFailure()

	// RecordChannelRejected records a rejected channel open request.
	//
	// Parameters:
	//   - kind: Channel type requested by the client (e.g. "direct-tcpip")
	RecordChannelRejected(kind string)

	// RecordExecRequest records an interpreted exec request.
	//
	// Parameters:
	//   - subcommand: Resolved subcommand (e.g. "_proxy", "_proxy_start"),
	//     or "unrecognized" when interpretation failed
	RecordExecRequest(subcommand string)

	// RecordBridgeSpawn records a spawned bridge subprocess.
	//
	// Parameters:
	//   - mode: Session flavor ("seamless", "desktop", "shadow", ...)
	RecordBridgeSpawn(mode string)

	// RecordBridgeExit records a bridge subprocess exit.
	//
	// Parameters:
	//   - exitCode: Process exit code
	RecordBridgeExit(exitCode int)

	// RecordBridgeBytes records bytes forwarded by a bridge worker.
	//
	// Parameters:
	//   - direction: "stdin", "stdout", or "stderr"
	//   - bytes: Number of bytes forwarded
	RecordBridgeBytes(direction string, bytes uint64)

	// SetActiveSessions updates the current session count.
	SetActiveSessions(count int32)

	// RecordConnectionAccepted increments the total accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the total closed connections counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed increments the force-closed connections counter.
	// Called when connections are forcibly closed after shutdown timeout.
	RecordConnectionForceClosed()
}

// NopGatewayMetrics is a GatewayMetrics that records nothing.
//
// Components that accept a GatewayMetrics normalize nil to this value so
// their hot paths never nil-check.
type NopGatewayMetrics struct{}

var _ GatewayMetrics = NopGatewayMetrics{}

func (NopGatewayMetrics) RecordSession(string, time.Duration) {}
func (NopGatewayMetrics) RecordAuthAttempt(string, bool)      {}
func (NopGatewayMetrics) RecordHandshakeFailure()             {}
func (NopGatewayMetrics) RecordChannelRejected(string)        {}
func (NopGatewayMetrics) RecordExecRequest(string)            {}
func (NopGatewayMetrics) RecordBridgeSpawn(string)            {}
func (NopGatewayMetrics) RecordBridgeExit(int)                {}
func (NopGatewayMetrics) RecordBridgeBytes(string, uint64)    {}
func (NopGatewayMetrics) SetActiveSessions(int32)             {}
func (NopGatewayMetrics) RecordConnectionAccepted()           {}
func (NopGatewayMetrics) RecordConnectionClosed()             {}
func (NopGatewayMetrics) RecordConnectionForceClosed()        {}
