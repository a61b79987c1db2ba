package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for structural and cross-field problems.
//
// Struct-tag rules (oneof, min, max, ...) cover per-field constraints; the
// checks below cover relationships between fields that tags cannot express.
// Validation never mutates the config; normalization happens in ApplyDefaults.
func Validate(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return err
	}
	if err := validateAuth(cfg); err != nil {
		return err
	}
	return validateKerberos(&cfg.Kerberos)
}

// validateTelemetry checks tracing and profiling settings.
func validateTelemetry(cfg *TelemetryConfig) error {
	if cfg.Enabled && cfg.Endpoint == "" {
		return fmt.Errorf("telemetry is enabled but no endpoint is configured")
	}
	if cfg.Profiling.Enabled && cfg.Profiling.Endpoint == "" {
		return fmt.Errorf("profiling is enabled but no endpoint is configured")
	}
	return nil
}

// validateAuth checks that the selected password backend has what it needs.
func validateAuth(cfg *Config) error {
	switch cfg.Auth.PasswordBackend {
	case "file":
		if cfg.Auth.UserFile == "" {
			return fmt.Errorf("auth: the file password backend requires user_file")
		}
	case "krb5":
		// Realm may come from the default_realm in krb5.conf, so only the
		// config file path is mandatory up front.
		if cfg.Kerberos.Krb5Conf == "" {
			return fmt.Errorf("auth: the krb5 password backend requires kerberos.krb5_conf")
		}
	}
	return nil
}

// validateKerberos checks the gssapi-with-mic acceptor settings.
func validateKerberos(cfg *KerberosConfig) error {
	if cfg.Enabled && resolveKeytabPath(cfg.KeytabPath) == "" {
		return fmt.Errorf("kerberos is enabled but no keytab_path is configured (set kerberos.keytab_path or XGATE_KERBEROS_KEYTAB)")
	}
	return nil
}
