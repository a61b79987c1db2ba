package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/xgate/pkg/api"
	"github.com/marmos91/xgate/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample xgate configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/xgate/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  xgate config init

  # Initialize with custom path
  xgate config init --config /etc/xgate/config.yaml

  # Force overwrite existing config
  xgate config init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configFile, _ := cmd.Flags().GetString("config")

	var configPath string
	var err error

	if configFile != "" {
		// Use custom path
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		// Use default path
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Generate host keys with: xgate keys generate")
	fmt.Println("  3. Start the gateway with: xgate start")
	fmt.Println("\nSecurity note:")
	fmt.Println("  A random API signing secret has been generated for development use.")
	fmt.Println("  For production, generate a secure secret and use an environment variable:")
	fmt.Println("    # Generates a 64-character hex string (32 bytes of entropy)")
	fmt.Printf("    export %s=$(openssl rand -hex 32)\n", api.EnvAPISecret)

	return nil
}
