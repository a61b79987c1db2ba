// Package auth implements the SSH authentication policy for the gateway.
//
// The package builds the server-side policy callbacks that x/crypto/ssh
// invokes during the handshake. It provides:
//
//   - Policy describing which authentication methods a connection admits
//   - Engine translating a Policy into an ssh.ServerConfig
//   - PasswordBackend interface for pluggable password verification
//   - KeyAuthorizer matching presented keys against an authorized_keys file
//   - Standard error types for authentication failures
//
// Method advertisement follows from callback installation: a method the
// policy disables simply has no callback, so the transport never offers it.
// The concrete password backends live in sub-packages:
//
//   - authfile/: bcrypt user file
//   - pamauth/:  host PAM conversation (Linux/cgo)
//   - krb5auth/: Kerberos AS exchange against the realm KDC
//   - gss/:      gssapi-with-mic acceptor backed by a service keytab
package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/marmos91/xgate/internal/logger"
	"github.com/marmos91/xgate/pkg/metrics"
)

// Standard authentication errors.
var (
	// ErrAuthenticationFailed indicates that authentication was attempted but
	// rejected (wrong password, unknown key, principal mismatch).
	ErrAuthenticationFailed = errors.New("auth: authentication failed")

	// ErrInvalidCredentials indicates that the presented credentials are wrong
	// or malformed for the backend that examined them.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrBackendUnavailable indicates that a backend could not answer at all
	// (PAM not compiled in, KDC unreachable) as opposed to rejecting the
	// credentials it was given.
	ErrBackendUnavailable = errors.New("auth: backend unavailable")
)

// Permission extension keys recorded on successful authentication.
// The gateway reads these from ssh.Permissions.Extensions after the
// handshake to label logs and metrics.
const (
	// MethodExtension records which SSH method succeeded
	// ("none", "password", "publickey", "gssapi-with-mic").
	MethodExtension = "xgate-auth-method"

	// BackendExtension records the password backend name for password logins.
	BackendExtension = "xgate-auth-backend"

	// FingerprintExtension records the SHA256 fingerprint of the accepted
	// public key for publickey logins.
	FingerprintExtension = "xgate-key-fingerprint"

	// PrincipalExtension records the full Kerberos principal
	// (name@REALM) for gssapi-with-mic logins.
	PrincipalExtension = "xgate-principal"
)

// PasswordBackend verifies username/password pairs.
//
// Thread safety: implementations must be safe for concurrent use; the SSH
// transport may run handshakes for several connections at once.
type PasswordBackend interface {
	// Verify checks one username/password pair.
	//
	// Returns:
	//   - nil when the pair is valid
	//   - an error wrapping ErrInvalidCredentials when the pair is wrong
	//   - an error wrapping ErrBackendUnavailable when the backend cannot
	//     answer (the caller still treats this as a failed attempt)
	Verify(username, password string) error

	// Name returns the backend name for logging ("file", "pam", "krb5").
	Name() string
}

// AcceptorFactory produces GSS acceptors for gssapi-with-mic handshakes.
//
// An acceptor carries per-handshake context state (session key, peer
// principal), so a fresh one is required for every connection attempt.
type AcceptorFactory interface {
	// NewAcceptor returns a new single-use ssh.GSSAPIServer.
	NewAcceptor() ssh.GSSAPIServer
}

// Policy describes which authentication methods one connection admits.
//
// A nil backend disables the corresponding method entirely; the transport
// never advertises it. Policy values are immutable for the lifetime of a
// connection attempt.
type Policy struct {
	// AllowNone permits clients to authenticate with the "none" method.
	AllowNone bool

	// Password enables password authentication through the given backend.
	Password PasswordBackend

	// Keys enables public-key authentication against an authorized_keys file.
	Keys *KeyAuthorizer

	// GSS enables gssapi-with-mic through a Kerberos service keytab.
	GSS AcceptorFactory

	// Banner is sent to the client before authentication when non-empty.
	Banner string
}

// Engine turns a Policy into the ssh.ServerConfig callback surface.
//
// One Engine serves all connections; per-connection state lives in the
// configs it builds.
type Engine struct {
	policy  Policy
	metrics metrics.GatewayMetrics
}

// NewEngine creates an authentication engine for the given policy.
// A nil recorder disables metrics.
func NewEngine(policy Policy, rec metrics.GatewayMetrics) *Engine {
	if rec == nil {
		rec = metrics.NopGatewayMetrics{}
	}
	return &Engine{policy: policy, metrics: rec}
}

// Policy returns the policy the engine enforces.
func (e *Engine) Policy() Policy {
	return e.policy
}

// ServerConfig builds an ssh.ServerConfig enforcing the engine's policy.
//
// A fresh config must be built for every connection attempt: the GSS
// acceptor installed here is single-use. The caller still registers host
// keys and sets the server version string.
func (e *Engine) ServerConfig() *ssh.ServerConfig {
	cfg := &ssh.ServerConfig{}

	if e.policy.AllowNone {
		cfg.NoClientAuth = true
		cfg.NoClientAuthCallback = func(conn ssh.ConnMetadata) (*ssh.Permissions, error) {
			e.metrics.RecordAuthAttempt("none", true)
			logger.Debug("Accepted none authentication",
				"user", conn.User(),
				"remote", conn.RemoteAddr(),
			)
			return permissions("none"), nil
		}
	}

	if backend := e.policy.Password; backend != nil {
		cfg.PasswordCallback = func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if err := backend.Verify(conn.User(), string(password)); err != nil {
				e.metrics.RecordAuthAttempt("password", false)
				logger.Warn("Password authentication failed",
					"user", conn.User(),
					"backend", backend.Name(),
					"remote", conn.RemoteAddr(),
					"error", err,
				)
				return nil, fmt.Errorf("password for %q: %w", conn.User(), ErrAuthenticationFailed)
			}
			e.metrics.RecordAuthAttempt("password", true)
			logger.Info("Password authentication succeeded",
				"user", conn.User(),
				"backend", backend.Name(),
				"remote", conn.RemoteAddr(),
			)
			perms := permissions("password")
			perms.Extensions[BackendExtension] = backend.Name()
			return perms, nil
		}
	}

	if authorizer := e.policy.Keys; authorizer != nil {
		cfg.PublicKeyCallback = func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if err := authorizer.Authorize(conn.User(), key); err != nil {
				e.metrics.RecordAuthAttempt("publickey", false)
				logger.Warn("Public key authentication failed",
					"user", conn.User(),
					"key_type", key.Type(),
					"remote", conn.RemoteAddr(),
					"error", err,
				)
				return nil, fmt.Errorf("public key for %q: %w", conn.User(), ErrAuthenticationFailed)
			}
			e.metrics.RecordAuthAttempt("publickey", true)
			logger.Info("Public key authentication succeeded",
				"user", conn.User(),
				"key_type", key.Type(),
				"fingerprint", ssh.FingerprintSHA256(key),
				"remote", conn.RemoteAddr(),
			)
			perms := permissions("publickey")
			perms.Extensions[FingerprintExtension] = ssh.FingerprintSHA256(key)
			return perms, nil
		}
	}

	if factory := e.policy.GSS; factory != nil {
		cfg.GSSAPIWithMICConfig = &ssh.GSSAPIWithMICConfig{
			Server:     factory.NewAcceptor(),
			AllowLogin: e.allowGSSLogin,
		}
	}

	if banner := e.policy.Banner; banner != "" {
		if !strings.HasSuffix(banner, "\n") {
			banner += "\n"
		}
		cfg.BannerCallback = func(conn ssh.ConnMetadata) string {
			return banner
		}
	}

	return cfg
}

// allowGSSLogin admits a verified Kerberos principal only when its name
// portion (realm stripped) matches the requested SSH username.
func (e *Engine) allowGSSLogin(conn ssh.ConnMetadata, srcName string) (*ssh.Permissions, error) {
	name := srcName
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name != conn.User() {
		e.metrics.RecordAuthAttempt("gssapi-with-mic", false)
		logger.Warn("Kerberos principal does not match requested user",
			"principal", srcName,
			"user", conn.User(),
			"remote", conn.RemoteAddr(),
		)
		return nil, fmt.Errorf("principal %q cannot log in as %q: %w", srcName, conn.User(), ErrAuthenticationFailed)
	}
	e.metrics.RecordAuthAttempt("gssapi-with-mic", true)
	logger.Info("Kerberos authentication succeeded",
		"principal", srcName,
		"user", conn.User(),
		"remote", conn.RemoteAddr(),
	)
	perms := permissions("gssapi-with-mic")
	perms.Extensions[PrincipalExtension] = srcName
	return perms, nil
}

func permissions(method string) *ssh.Permissions {
	return &ssh.Permissions{
		Extensions: map[string]string{MethodExtension: method},
	}
}
