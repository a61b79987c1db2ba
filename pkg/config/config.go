package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/xgate/internal/bytesize"
	"github.com/marmos91/xgate/pkg/api"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the xgate configuration.
//
// This structure captures static configuration aspects of the gateway:
//   - Logging configuration
//   - Telemetry/tracing configuration
//   - Gateway settings (listener, handshake policy, command policy)
//   - Authentication (password backend, authorized keys, Kerberos)
//   - Bridge settings (xpra subprocess launch)
//   - Metrics and control API servers
//
// Runtime state (live sessions, spawned bridges) is not configuration; it is
// observable through the control API and the metrics endpoint.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (XGATE_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Gateway configures the SSH listener and per-connection policy
	Gateway GatewayConfig `mapstructure:"gateway" yaml:"gateway"`

	// Auth selects how connecting clients are authenticated
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`

	// Kerberos contains Kerberos configuration shared by the krb5 password
	// backend and the gssapi-with-mic acceptor.
	// Environment variable overrides:
	//   XGATE_KERBEROS_KEYTAB overrides KeytabPath
	//   XGATE_KERBEROS_PRINCIPAL overrides ServicePrincipal
	Kerberos KerberosConfig `mapstructure:"kerberos" yaml:"kerberos"`

	// Bridge configures the xpra subprocess spawned for proxy-start sessions
	Bridge BridgeConfig `mapstructure:"bridge" yaml:"bridge"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains control API server configuration
	API api.APIConfig `mapstructure:"api" yaml:"api"`
}

// GatewayConfig configures the SSH listener and the per-connection
// handshake and command policy.
type GatewayConfig struct {
	// Listen is the TCP address the SSH listener binds.
	// Default: ":2222"
	Listen string `mapstructure:"listen" validate:"required" yaml:"listen"`

	// MaxConnections caps concurrent client connections.
	// Zero means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"omitempty,gte=0" yaml:"max_connections"`

	// ServerVersion overrides the SSH identification banner when non-empty.
	// Must start with "SSH-2.0-" to be accepted by clients.
	ServerVersion string `mapstructure:"server_version" yaml:"server_version,omitempty"`

	// ServerWait bounds how long a connection may take to produce a channel
	// and an exec request before it is dropped.
	// Override: XGATE_GATEWAY_SERVER_WAIT (duration string or plain seconds)
	// Default: 20s
	ServerWait time.Duration `mapstructure:"server_wait" yaml:"server_wait"`

	// HostKey pins a single host key file. The file name must follow the
	// ssh_host_<type>_key convention. When empty, HostKeyDirs are scanned.
	HostKey string `mapstructure:"host_key" yaml:"host_key,omitempty"`

	// HostKeyDirs are the directories scanned for conventionally named host
	// key files when HostKey is not set.
	// Default: [$XDG_CONFIG_HOME/xgate/keys, /etc/xgate/keys]
	HostKeyDirs []string `mapstructure:"host_key_dirs" yaml:"host_key_dirs"`

	// Display is the display this gateway serves. A _proxy request naming a
	// different display is refused. Empty means no display is advertised and
	// only display-less _proxy requests are accepted.
	Display string `mapstructure:"display" yaml:"display,omitempty"`

	// AllowProxyStart permits the _proxy_start family of subcommands, which
	// spawn an xpra subprocess on the gateway host.
	// Default: false
	AllowProxyStart bool `mapstructure:"allow_proxy_start" yaml:"allow_proxy_start"`

	// Upstream is the display server socket direct handoffs are spliced to,
	// either "unix:/path/to/sock" or "tcp:host:port". A bare absolute path
	// is treated as a unix socket.
	Upstream string `mapstructure:"upstream" yaml:"upstream,omitempty"`

	// DialTimeout bounds the upstream dial.
	// Default: 10s
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`

	// MetricsLogInterval enables periodic connection stats logging when
	// positive. Zero disables the periodic log line.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" yaml:"metrics_log_interval,omitempty"`
}

// AuthConfig selects how connecting clients are authenticated.
type AuthConfig struct {
	// PasswordBackend selects the password verifier.
	// Valid values: none, file, pam, krb5
	// Default: "file"
	PasswordBackend string `mapstructure:"password_backend" validate:"required,oneof=none file pam krb5" yaml:"password_backend"`

	// AllowNone accepts any username without credentials. Only sensible for
	// closed test rigs; never enable on a reachable network.
	// Default: false
	AllowNone bool `mapstructure:"allow_none" yaml:"allow_none"`

	// UserFile is the htpasswd-style credential file for the file backend.
	// Also consulted by control API logins and the user CLI commands.
	// Default: $XDG_CONFIG_HOME/xgate/users
	UserFile string `mapstructure:"user_file" yaml:"user_file"`

	// PAMService is the PAM service name for the pam backend.
	// Default: "sshd"
	PAMService string `mapstructure:"pam_service" yaml:"pam_service"`

	// AuthorizedKeys is the authorized_keys file consulted for publickey
	// authentication. Empty means the process user's ~/.ssh/authorized_keys.
	AuthorizedKeys string `mapstructure:"authorized_keys" yaml:"authorized_keys,omitempty"`

	// FingerprintHashes lists the digests logged for offered public keys.
	// Valid values: md5, sha1, sha224, sha256, sha384, sha512
	// Default: all of them
	FingerprintHashes []string `mapstructure:"fingerprint_hashes" validate:"omitempty,dive,oneof=md5 sha1 sha224 sha256 sha384 sha512" yaml:"fingerprint_hashes"`

	// Banner is sent to clients before authentication when non-empty.
	Banner string `mapstructure:"banner" yaml:"banner,omitempty"`
}

// KerberosConfig contains Kerberos configuration.
//
// The krb5 password backend uses Realm and Krb5Conf to attempt client
// logins against the KDC. When Enabled is true, the gateway additionally
// accepts gssapi-with-mic authentication using the service keytab.
type KerberosConfig struct {
	// Enabled controls whether gssapi-with-mic authentication is offered.
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// KeytabPath is the path to the service keytab file.
	// Override: XGATE_KERBEROS_KEYTAB
	KeytabPath string `mapstructure:"keytab_path" yaml:"keytab_path,omitempty"`

	// ServicePrincipal pins ticket verification to one principal in the
	// keytab. Format: service/hostname@REALM. Empty matches the ticket's
	// own service name.
	// Override: XGATE_KERBEROS_PRINCIPAL
	ServicePrincipal string `mapstructure:"service_principal" yaml:"service_principal,omitempty"`

	// Realm is the realm the krb5 password backend attempts logins against.
	// Empty falls back to the default_realm from Krb5Conf.
	Realm string `mapstructure:"realm" yaml:"realm,omitempty"`

	// Krb5Conf is the path to the Kerberos configuration file.
	// Default: /etc/krb5.conf
	Krb5Conf string `mapstructure:"krb5_conf" yaml:"krb5_conf"`

	// MaxClockSkew is the maximum allowed clock difference between client
	// and gateway during ticket verification.
	// Default: 5m
	MaxClockSkew time.Duration `mapstructure:"max_clock_skew" yaml:"max_clock_skew"`
}

// BridgeConfig configures the xpra subprocess spawned for proxy-start
// sessions.
type BridgeConfig struct {
	// XpraCommand is the executable serving xpra subcommands. Looked up on
	// PATH when not absolute.
	// Default: "xpra"
	XpraCommand string `mapstructure:"xpra_command" validate:"required" yaml:"xpra_command"`

	// ExtraArgs are inserted between the command and the subcommand.
	ExtraArgs []string `mapstructure:"extra_args" yaml:"extra_args,omitempty"`

	// ChunkSize is how many bytes each forwarding loop reads at once.
	// Supports human-readable formats: "4Ki", "64KB", or plain numbers.
	// Default: 4Ki
	ChunkSize bytesize.ByteSize `mapstructure:"chunk_size" yaml:"chunk_size"`

	// SendWindow bounds how long one channel write may keep retrying
	// before the bridge gives up on the session.
	// Default: 5s
	SendWindow time.Duration `mapstructure:"send_window" yaml:"send_window"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector
// (e.g., Jaeger, Tempo, or any OTLP receiver).
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	// Set to false in production with a TLS-enabled collector
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// 1.0 = sample all traces, 0.5 = sample 50%, 0.0 = no sampling
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
// When enabled, CPU and memory profiles are continuously sent to a Pyroscope server
// for flame graph visualization and performance analysis.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Valid values: cpu, alloc_objects, alloc_space, inuse_objects, inuse_space,
	//               goroutines, mutex_count, mutex_duration, block_count, block_duration
	// Default: ["cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"]
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (XGATE_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Configure viper
	setupViper(v, configPath)

	// Read configuration file if it exists
	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	// If no config file was found, use defaults
	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	// Unmarshal into config struct with custom decode hooks
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: User-friendly error with instructions if config not found
func MustLoad(configPath string) (*Config, error) {
	// Determine config path
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  xgate config init\n\n"+
				"Or specify a custom config file:\n"+
				"  xgate <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  xgate config init --config %s",
				configPath, configPath)
		}
	}

	// Load configuration
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path.
// The configuration is saved in YAML format using proper yaml tags.
func SaveConfig(cfg *Config, path string) error {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Use yaml.Marshal directly to respect yaml tags
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file with restricted permissions (0600 = owner read/write only).
	// This is important because config files may contain sensitive data like the
	// API signing secret.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Set up environment variable support
	// Environment variables use XGATE_ prefix and underscores
	// Example: XGATE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("XGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Configure config file search
	if configPath != "" {
		// Use explicitly specified config file
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/xgate/config.{yaml,toml}
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml") // Primary format
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		// Check if error is "config file not found"
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return false, nil
		}
		// Also check for os.PathError when explicit config file doesn't exist
		if os.IsNotExist(err) {
			// Config file not found is acceptable - use defaults
			return false, nil
		}
		// Other errors are problems
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
// This includes ByteSize and time.Duration parsing.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook returns a mapstructure decode hook that converts strings
// and integers to bytesize.ByteSize. This enables config files to use human-readable
// sizes like "4Ki", "500Mi", "100MB", or plain numbers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		// Only handle conversion to ByteSize
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			// Parse human-readable string like "4Ki", "500Mi", "100MB"
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		// Only handle conversion to time.Duration
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			// Parse duration string like "30s", "5m", "1h"
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	// Check XDG_CONFIG_HOME
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "xgate")
	}

	// Fall back to ~/.config
	home, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, use current directory as last resort
		return "."
	}

	return filepath.Join(home, ".config", "xgate")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
