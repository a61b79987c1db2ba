package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/xgate/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the xgate configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  xgate config validate

  # Validate specific config file
  xgate config validate --config /etc/xgate/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	// Load and validate configuration
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	// Determine path for display
	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	// Additional validation checks
	var warnings []string

	if !cfg.API.HasJWTSecret() {
		warnings = append(warnings, "API secret not configured - control API logins will fail")
	}

	if cfg.Gateway.Upstream == "" {
		warnings = append(warnings, "gateway.upstream not configured - sessions are served by spawned servers only")
	}

	if cfg.Auth.AllowNone {
		warnings = append(warnings, "auth.allow_none is enabled - any username is accepted without credentials")
	}

	// Print results
	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Listen address:   %s\n", cfg.Gateway.Listen)
	fmt.Printf("  Password backend: %s\n", cfg.Auth.PasswordBackend)
	fmt.Printf("  API port:         %d\n", cfg.API.Port)
	fmt.Printf("  Log level:        %s\n", cfg.Logging.Level)

	return nil
}
