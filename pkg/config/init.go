package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// configFileHeader is prepended to generated configuration files.
// Durations render as nanosecond integers when saved; the loader also
// accepts duration strings like "30s" and sizes like "4Ki".
const configFileHeader = `# xgate Configuration File
#
# Generated by 'xgate config init'. Every key can be overridden with an
# XGATE_-prefixed environment variable, e.g. XGATE_LOGGING_LEVEL=DEBUG.
#
# The api.jwt.secret below was generated for this installation. Keep it
# private; anyone holding it can mint control API tokens.
`

// InitConfig writes a default configuration file to the default location
// ($XDG_CONFIG_HOME/xgate/config.yaml).
//
// Without force an existing file is left untouched and an error is returned.
// Returns the path the file was written to.
func InitConfig(force bool) (string, error) {
	configPath := GetDefaultConfigPath()
	if err := InitConfigToPath(configPath, force); err != nil {
		return "", err
	}
	return configPath, nil
}

// InitConfigToPath writes a default configuration file to an explicit path,
// creating parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}

	cfg := GetDefaultConfig()

	// Each installation gets its own API signing secret so a default config
	// is never remotely forgeable.
	secret, err := generateJWTSecret()
	if err != nil {
		return fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	cfg.API.JWT.Secret = secret

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := append([]byte(configFileHeader+"\n"), data...)
	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateJWTSecret produces a random URL-safe secret for the control API.
// 32 bytes of entropy encode to 43 characters, comfortably above the
// 32-character minimum the token service enforces.
func generateJWTSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
