// Package commands implements the CLI commands for the xgate SSH session
// gateway.
package commands

import (
	"github.com/spf13/cobra"

	configcmd "github.com/marmos91/xgate/cmd/xgate/commands/config"
)

// Build-time variables set by main
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "xgate",
	Short: "xgate - SSH session gateway",
	Long: `xgate is an SSH-facing gateway for remote display sessions.

It terminates the SSH handshake, authenticates clients against a pluggable
set of backends (user file, PAM, Kerberos), interprets the requested exec
command and either splices the connection onto an already running session
server or spawns a fresh one on demand.

Start the gateway with 'xgate start', then point clients at it the same way
they would connect to a plain SSH host.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/xgate/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(configcmd.Cmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command (used by subcommand packages).
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetConfigFile returns the config file path specified via --config flag.
func GetConfigFile() string {
	return cfgFile
}
