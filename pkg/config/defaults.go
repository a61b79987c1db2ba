package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/xgate/internal/bytesize"
	"github.com/marmos91/xgate/pkg/api"
	"github.com/marmos91/xgate/pkg/auth"
	"github.com/marmos91/xgate/pkg/bridge"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyGatewayDefaults(&cfg.Gateway)
	applyAuthDefaults(&cfg.Auth)
	applyKerberosDefaults(&cfg.Kerberos)
	applyBridgeDefaults(&cfg.Bridge)
	applyMetricsDefaults(&cfg.Metrics)
	applyAPIDefaults(&cfg.API)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)
	// No need to set, zero value is false

	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	// Apply profiling defaults
	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	// Enabled defaults to false (opt-in for profiling)
	// No need to set, zero value is false

	// Default endpoint is localhost:4040 (standard Pyroscope port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	// Default profile types include CPU, memory allocation, and goroutines
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyShutdownTimeoutDefaults sets shutdown timeout defaults.
func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyGatewayDefaults sets SSH listener and policy defaults.
func applyGatewayDefaults(cfg *GatewayConfig) {
	if cfg.Listen == "" {
		cfg.Listen = ":2222"
	}
	if cfg.ServerWait == 0 {
		cfg.ServerWait = 20 * time.Second
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	// Host keys are searched user-local first so an unprivileged install
	// can override the system directory.
	if cfg.HostKey == "" && len(cfg.HostKeyDirs) == 0 {
		cfg.HostKeyDirs = []string{
			filepath.Join(getConfigDir(), "keys"),
			"/etc/xgate/keys",
		}
	}
}

// applyAuthDefaults sets authentication defaults.
func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.PasswordBackend == "" {
		cfg.PasswordBackend = "file"
	}
	if cfg.UserFile == "" {
		cfg.UserFile = filepath.Join(getConfigDir(), "users")
	}
	if cfg.PAMService == "" {
		cfg.PAMService = "sshd"
	}
	if len(cfg.FingerprintHashes) == 0 {
		cfg.FingerprintHashes = auth.DefaultFingerprintHashes()
	}
}

// applyKerberosDefaults sets Kerberos defaults.
func applyKerberosDefaults(cfg *KerberosConfig) {
	if cfg.Krb5Conf == "" {
		cfg.Krb5Conf = "/etc/krb5.conf"
	}
	if cfg.MaxClockSkew == 0 {
		cfg.MaxClockSkew = 5 * time.Minute
	}
}

// applyBridgeDefaults sets xpra subprocess defaults.
func applyBridgeDefaults(cfg *BridgeConfig) {
	if cfg.XpraCommand == "" {
		cfg.XpraCommand = bridge.DefaultCommand
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = bytesize.ByteSize(bridge.DefaultChunkSize)
	}
	if cfg.SendWindow == 0 {
		cfg.SendWindow = bridge.DefaultSendWindow
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in for metrics)
	// Port defaults to 9090 if metrics are enabled
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyAPIDefaults sets control API server defaults.
// The API itself is on by default; NewServer fails fast when no signing
// secret is configured.
func applyAPIDefaults(cfg *api.APIConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.JWT.TokenDuration == 0 {
		cfg.JWT.TokenDuration = time.Hour
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
