package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so sessions can be
// correlated across the gateway, the control API, and the bridge workers.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Client identification
	KeyClientIP   = "client_ip"
	KeyClientPort = "client_port"
	KeyUsername   = "username"
	KeyAuthMethod = "auth_method"

	// Session & connection
	KeySessionID = "session_id"
	KeyLocalAddr = "local_addr"
	KeyTarget    = "target"

	// SSH surface
	KeyChannelType = "channel_type"
	KeyRequestType = "request_type"
	KeyKeyType     = "key_type"
	KeyFingerprint = "fingerprint"
	KeyAlgorithm   = "algorithm"

	// Command interpretation & bridging
	KeyCommand    = "command"
	KeySubcommand = "subcommand"
	KeyServerMode = "server_mode"
	KeyDisplay    = "display"
	KeyDirection  = "direction"
	KeyExitCode   = "exit_code"
	KeyPID        = "pid"
	KeyBytes      = "bytes"

	// Operation metadata
	KeyPath       = "path"
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyOutcome    = "outcome"
)

// Field constructors for type safety.

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// ClientIP returns a slog.Attr for client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// Username returns a slog.Attr for the SSH username
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// AuthMethod returns a slog.Attr for the authentication method
func AuthMethod(method string) slog.Attr {
	return slog.String(KeyAuthMethod, method)
}

// SessionID returns a slog.Attr for the gateway session identifier
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// KeyTypeAttr returns a slog.Attr for a host or client key type
func KeyTypeAttr(t string) slog.Attr {
	return slog.String(KeyKeyType, t)
}

// Fingerprint returns a slog.Attr for a public key fingerprint
func Fingerprint(fp string) slog.Attr {
	return slog.String(KeyFingerprint, fp)
}

// Subcommand returns a slog.Attr for the resolved xpra subcommand
func Subcommand(s string) slog.Attr {
	return slog.String(KeySubcommand, s)
}

// ServerMode returns a slog.Attr for the session flavor (seamless, desktop, shadow)
func ServerMode(mode string) slog.Attr {
	return slog.String(KeyServerMode, mode)
}

// Direction returns a slog.Attr for a bridge forwarding direction
func Direction(d string) slog.Attr {
	return slog.String(KeyDirection, d)
}

// ExitCode returns a slog.Attr for a subprocess exit code
func ExitCode(code int) slog.Attr {
	return slog.Int(KeyExitCode, code)
}

// Path returns a slog.Attr for a filesystem path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// DurationMs returns a slog.Attr for operation duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error (handles nil)
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Outcome returns a slog.Attr for a session outcome label
func Outcome(o string) slog.Attr {
	return slog.String(KeyOutcome, o)
}
