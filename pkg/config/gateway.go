package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/marmos91/xgate/internal/logger"
	"github.com/marmos91/xgate/pkg/auth"
	"github.com/marmos91/xgate/pkg/auth/authfile"
	"github.com/marmos91/xgate/pkg/auth/gss"
	"github.com/marmos91/xgate/pkg/auth/krb5auth"
	"github.com/marmos91/xgate/pkg/auth/pamauth"
	"github.com/marmos91/xgate/pkg/bridge"
	"github.com/marmos91/xgate/pkg/command"
	"github.com/marmos91/xgate/pkg/gateway"
	"github.com/marmos91/xgate/pkg/hostkeys"
	"github.com/marmos91/xgate/pkg/identity"
	"github.com/marmos91/xgate/pkg/metrics"
)

// CreateIdentityStore creates the bcrypt user file store from the
// configuration.
//
// The store backs the file password backend, control API logins, and the
// user CLI commands. A missing file is tolerated: the store starts empty
// and picks the file up once it appears.
func (c *Config) CreateIdentityStore() (*identity.FileStore, error) {
	store, err := identity.NewFileStore(c.Auth.UserFile)
	if err != nil {
		return nil, fmt.Errorf("user store: %w", err)
	}
	return store, nil
}

// CreateAuthEngine assembles the authentication engine from the
// configuration.
//
// The password backend is selected by auth.password_backend; publickey
// authentication is always offered against the authorized_keys file; the
// gssapi-with-mic acceptor is added when kerberos.enabled is set.
func (c *Config) CreateAuthEngine(store identity.Store, rec metrics.GatewayMetrics) (*auth.Engine, error) {
	policy := auth.Policy{
		AllowNone: c.Auth.AllowNone,
		Banner:    c.Auth.Banner,
		Keys:      auth.NewKeyAuthorizer(c.Auth.AuthorizedKeys, c.Auth.FingerprintHashes),
	}

	switch c.Auth.PasswordBackend {
	case "", "none":
		// No password verifier; publickey (and GSSAPI when enabled) remain.
	case "file":
		if store == nil {
			return nil, fmt.Errorf("auth: the file password backend requires a user store")
		}
		policy.Password = authfile.New(store)
	case "pam":
		backend, err := pamauth.New(c.Auth.PAMService)
		if err != nil {
			return nil, fmt.Errorf("pam backend: %w", err)
		}
		policy.Password = backend
	case "krb5":
		backend, err := krb5auth.New(c.Kerberos.Realm, resolveKrb5ConfPath(c.Kerberos.Krb5Conf))
		if err != nil {
			return nil, fmt.Errorf("krb5 backend: %w", err)
		}
		policy.Password = backend
	default:
		return nil, fmt.Errorf("unknown password backend: %q", c.Auth.PasswordBackend)
	}

	if c.Kerberos.Enabled {
		svc, err := gss.NewService(
			resolveKeytabPath(c.Kerberos.KeytabPath),
			resolveServicePrincipal(c.Kerberos.ServicePrincipal),
			c.Kerberos.MaxClockSkew,
		)
		if err != nil {
			return nil, fmt.Errorf("gssapi acceptor: %w", err)
		}
		policy.GSS = svc
	}

	return auth.NewEngine(policy, rec), nil
}

// CreateGateway builds the SSH gateway server from the configuration.
//
// Host keys are loaded up front so a missing or unreadable key fails the
// start instead of the first connection. The handler consumes sessions the
// command interpreter hands off directly; nil falls back to rejecting them.
func (c *Config) CreateGateway(engine *auth.Engine, handler gateway.SessionHandler, rec metrics.GatewayMetrics) (*gateway.Server, error) {
	keys, err := hostkeys.Load(c.Gateway.HostKey, c.Gateway.HostKeyDirs)
	if err != nil {
		return nil, err
	}

	bootstrap := &gateway.Bootstrap{
		HostKeys:      keys.Signers(),
		Auth:          engine,
		ServerVersion: c.Gateway.ServerVersion,
		Wait:          resolveServerWait(c.Gateway.ServerWait),
		Interpreter: command.Interpreter{
			AllowProxyStart: c.Gateway.AllowProxyStart,
			Display:         c.Gateway.Display,
		},
		Prober: command.NewProber(),
		Bridge: bridge.Options{
			Command:    c.Bridge.XpraCommand,
			Args:       c.Bridge.ExtraArgs,
			ChunkSize:  c.Bridge.ChunkSize.Int(),
			SendWindow: c.Bridge.SendWindow,
			Metrics:    rec,
		},
		Metrics: rec,
	}

	return gateway.New(gateway.Config{
		Listen:             c.Gateway.Listen,
		MaxConnections:     c.Gateway.MaxConnections,
		ShutdownTimeout:    c.ShutdownTimeout,
		MetricsLogInterval: c.Gateway.MetricsLogInterval,
	}, bootstrap, handler, rec), nil
}

// CreateUpstreamHandler builds the default session handler, which splices
// direct handoffs onto the configured upstream display socket.
func (c *Config) CreateUpstreamHandler(rec metrics.GatewayMetrics) *gateway.UpstreamHandler {
	return &gateway.UpstreamHandler{
		Upstream:    c.Gateway.Upstream,
		DialTimeout: c.Gateway.DialTimeout,
		Metrics:     rec,
	}
}

// resolveServerWait resolves the handshake wait with environment variable override.
//
// Resolution order (highest priority first):
//  1. XGATE_GATEWAY_SERVER_WAIT env var (duration string, or plain seconds)
//  2. server_wait from the configuration file
func resolveServerWait(configWait time.Duration) time.Duration {
	env := os.Getenv("XGATE_GATEWAY_SERVER_WAIT")
	if env == "" {
		return configWait
	}
	if wait, err := time.ParseDuration(env); err == nil {
		return wait
	}
	if secs, err := strconv.Atoi(env); err == nil {
		return time.Duration(secs) * time.Second
	}
	logger.Warn("Ignoring invalid XGATE_GATEWAY_SERVER_WAIT", "value", env)
	return configWait
}

// resolveKeytabPath resolves the keytab path with environment variable override.
//
// Resolution order (highest priority first):
//  1. XGATE_KERBEROS_KEYTAB env var
//  2. keytab_path from the configuration file
func resolveKeytabPath(configPath string) string {
	if envPath := os.Getenv("XGATE_KERBEROS_KEYTAB"); envPath != "" {
		return envPath
	}
	return configPath
}

// resolveServicePrincipal resolves the service principal with environment variable override.
//
// Resolution order (highest priority first):
//  1. XGATE_KERBEROS_PRINCIPAL env var
//  2. service_principal from the configuration file
func resolveServicePrincipal(configPrincipal string) string {
	if envSPN := os.Getenv("XGATE_KERBEROS_PRINCIPAL"); envSPN != "" {
		return envSPN
	}
	return configPrincipal
}

// resolveKrb5ConfPath resolves the krb5.conf path with environment variable override.
//
// Resolution order (highest priority first):
//  1. XGATE_KERBEROS_KRB5CONF env var
//  2. krb5_conf from the configuration file
func resolveKrb5ConfPath(configPath string) string {
	if envPath := os.Getenv("XGATE_KERBEROS_KRB5CONF"); envPath != "" {
		return envPath
	}
	return configPath
}
