package config

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/xgate/internal/cli/output"
	"github.com/marmos91/xgate/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the current xgate configuration.

The output reflects defaults, the configuration file and XGATE_* environment
variables, in ascending precedence. By default outputs YAML format.

Examples:
  # Show effective config as YAML
  xgate config show

  # Show as JSON
  xgate config show --output json

  # Show specific config file
  xgate config show --config /etc/xgate/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	// Load configuration
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	// Parse output format
	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	// Print configuration
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, cfg)
	default:
		return output.PrintYAML(os.Stdout, cfg)
	}
}
