package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_ShutdownTimeout(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
}

func TestApplyDefaults_Gateway(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Gateway.Listen != ":2222" {
		t.Errorf("Expected default listen address ':2222', got %q", cfg.Gateway.Listen)
	}
	if cfg.Gateway.ServerWait != 20*time.Second {
		t.Errorf("Expected default server wait 20s, got %v", cfg.Gateway.ServerWait)
	}
	if cfg.Gateway.DialTimeout != 10*time.Second {
		t.Errorf("Expected default dial timeout 10s, got %v", cfg.Gateway.DialTimeout)
	}
	if len(cfg.Gateway.HostKeyDirs) == 0 {
		t.Error("Expected default host key directories to be set")
	}
	if cfg.Gateway.AllowProxyStart {
		t.Error("Expected proxy-start to be off by default")
	}
}

func TestApplyDefaults_Gateway_ExplicitHostKey(t *testing.T) {
	// A pinned host key suppresses the search directory defaults.
	cfg := &Config{}
	cfg.Gateway.HostKey = "/etc/xgate/keys/ssh_host_ed25519_key"
	ApplyDefaults(cfg)

	if len(cfg.Gateway.HostKeyDirs) != 0 {
		t.Errorf("Expected no host key directories with explicit host key, got %v", cfg.Gateway.HostKeyDirs)
	}
}

func TestApplyDefaults_Auth(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Auth.PasswordBackend != "file" {
		t.Errorf("Expected default password backend 'file', got %q", cfg.Auth.PasswordBackend)
	}
	if cfg.Auth.UserFile == "" {
		t.Error("Expected default user file to be set")
	}
	if cfg.Auth.PAMService != "sshd" {
		t.Errorf("Expected default PAM service 'sshd', got %q", cfg.Auth.PAMService)
	}
	if len(cfg.Auth.FingerprintHashes) != 6 {
		t.Errorf("Expected 6 default fingerprint hashes, got %d", len(cfg.Auth.FingerprintHashes))
	}
}

func TestApplyDefaults_Bridge(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Bridge.XpraCommand != "xpra" {
		t.Errorf("Expected default xpra command 'xpra', got %q", cfg.Bridge.XpraCommand)
	}
	if cfg.Bridge.ChunkSize != 4096 {
		t.Errorf("Expected default chunk size 4096, got %d", cfg.Bridge.ChunkSize)
	}
	if cfg.Bridge.SendWindow != 5*time.Second {
		t.Errorf("Expected default send window 5s, got %v", cfg.Bridge.SendWindow)
	}
}

func TestApplyDefaults_API(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.API.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.API.Port)
	}
	if cfg.API.ReadTimeout != 10*time.Second {
		t.Errorf("Expected default read timeout 10s, got %v", cfg.API.ReadTimeout)
	}
	if cfg.API.WriteTimeout != 10*time.Second {
		t.Errorf("Expected default write timeout 10s, got %v", cfg.API.WriteTimeout)
	}
	if cfg.API.IdleTimeout != 60*time.Second {
		t.Errorf("Expected default idle timeout 60s, got %v", cfg.API.IdleTimeout)
	}
	if cfg.API.JWT.TokenDuration != time.Hour {
		t.Errorf("Expected default token duration 1h, got %v", cfg.API.JWT.TokenDuration)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "DEBUG",
			Format: "json",
			Output: "/var/log/xgate.log",
		},
		ShutdownTimeout: 60 * time.Second,
		Gateway: GatewayConfig{
			Listen:     ":2200",
			ServerWait: 5 * time.Second,
		},
		Bridge: BridgeConfig{
			XpraCommand: "/opt/xpra/bin/xpra",
		},
	}

	ApplyDefaults(cfg)

	// Verify explicit values were preserved
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected explicit level 'DEBUG' to be preserved, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected explicit format 'json' to be preserved, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "/var/log/xgate.log" {
		t.Errorf("Expected explicit output to be preserved, got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 60*time.Second {
		t.Errorf("Expected explicit timeout 60s to be preserved, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Gateway.Listen != ":2200" {
		t.Errorf("Expected explicit listen address to be preserved, got %q", cfg.Gateway.Listen)
	}
	if cfg.Gateway.ServerWait != 5*time.Second {
		t.Errorf("Expected explicit server wait to be preserved, got %v", cfg.Gateway.ServerWait)
	}
	if cfg.Bridge.XpraCommand != "/opt/xpra/bin/xpra" {
		t.Errorf("Expected explicit xpra command to be preserved, got %q", cfg.Bridge.XpraCommand)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	// The default config should pass validation
	err := Validate(cfg)
	if err != nil {
		t.Errorf("Default config should be valid, got error: %v", err)
	}
}

func TestGetDefaultConfig_HasRequiredFields(t *testing.T) {
	cfg := GetDefaultConfig()

	// Check all required sections are present
	if cfg.Logging.Level == "" {
		t.Error("Default config missing logging level")
	}
	if cfg.Gateway.Listen == "" {
		t.Error("Default config missing listen address")
	}
	if cfg.Auth.PasswordBackend == "" {
		t.Error("Default config missing password backend")
	}
	if cfg.API.Port == 0 {
		t.Error("Default config missing API port")
	}
	if cfg.Bridge.XpraCommand == "" {
		t.Error("Default config missing xpra command")
	}
}
