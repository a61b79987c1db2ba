package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for gateway operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// Client attributes
	AttrClientAddr = "client.address"

	// Session attributes
	AttrSessionID  = "session.id"
	AttrUsername   = "user.name"
	AttrAuthMethod = "auth.method"
	AttrTarget     = "session.target"

	// SSH surface attributes
	AttrChannelType = "ssh.channel_type"
	AttrRequestType = "ssh.request_type"

	// Command and bridge attributes
	AttrSubcommand = "exec.subcommand"
	AttrServerMode = "exec.server_mode"
	AttrExitCode   = "bridge.exit_code"
	AttrOutcome    = "session.outcome"
)

// Span names for gateway operations.
// Format: <component>.<operation>
const (
	SpanSession = "gateway.session"
	SpanExec    = "exec.interpret"
	SpanProbe   = "exec.probe"
	SpanBridge  = "bridge.subprocess"
	SpanHandoff = "handoff.upstream"
)

// ClientAddr returns an attribute for the full client address (ip:port)
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// SessionID returns an attribute for the gateway session ID
func SessionID(id string) attribute.KeyValue {
	return attribute.String(AttrSessionID, id)
}

// Username returns an attribute for the SSH username
func Username(name string) attribute.KeyValue {
	return attribute.String(AttrUsername, name)
}

// AuthMethod returns an attribute for the authentication method
func AuthMethod(method string) attribute.KeyValue {
	return attribute.String(AttrAuthMethod, method)
}

// Target returns an attribute for the upstream a session is wired to
func Target(target string) attribute.KeyValue {
	return attribute.String(AttrTarget, target)
}

// ChannelType returns an attribute for the SSH channel kind
func ChannelType(kind string) attribute.KeyValue {
	return attribute.String(AttrChannelType, kind)
}

// RequestType returns an attribute for the SSH request type
func RequestType(t string) attribute.KeyValue {
	return attribute.String(AttrRequestType, t)
}

// Subcommand returns an attribute for the resolved subcommand
func Subcommand(s string) attribute.KeyValue {
	return attribute.String(AttrSubcommand, s)
}

// ServerMode returns an attribute for the session flavor
func ServerMode(mode string) attribute.KeyValue {
	return attribute.String(AttrServerMode, mode)
}

// ExitCode returns an attribute for a subprocess exit code
func ExitCode(code int) attribute.KeyValue {
	return attribute.Int(AttrExitCode, code)
}

// Outcome returns an attribute for the session outcome
func Outcome(o string) attribute.KeyValue {
	return attribute.String(AttrOutcome, o)
}

// StartSessionSpan starts a root span for one gateway session.
func StartSessionSpan(ctx context.Context, sessionID, clientAddr string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{
		SessionID(sessionID),
		ClientAddr(clientAddr),
	}, attrs...)
	return StartSpan(ctx, SpanSession, trace.WithAttributes(all...))
}

// StartBridgeSpan starts a span covering a subprocess bridge lifetime.
func StartBridgeSpan(ctx context.Context, subcommand, mode string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanBridge, trace.WithAttributes(
		Subcommand(subcommand),
		ServerMode(mode),
	))
}
