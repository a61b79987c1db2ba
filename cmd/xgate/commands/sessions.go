package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/xgate/internal/cli/output"
	"github.com/marmos91/xgate/internal/cli/timeutil"
	"github.com/marmos91/xgate/pkg/api"
	"github.com/marmos91/xgate/pkg/api/auth"
	"github.com/marmos91/xgate/pkg/apiclient"
	"github.com/marmos91/xgate/pkg/config"
)

var (
	sessionsOutput  string
	sessionsAPIPort int
	sessionsToken   string
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List active SSH sessions",
	Long: `List the sessions currently tracked by a running gateway.

The session table is queried over the control API. Unless --token is given,
this command signs its own short-lived token with the configured API secret,
so it only works against a gateway running with the same secret.

Examples:
  # List sessions of the local gateway
  xgate sessions

  # Query a gateway on a different API port
  xgate sessions --api-port 9080

  # Output as JSON
  xgate sessions -o json`,
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsAPIPort, "api-port", 0, "Control API port (default: from configuration)")
	sessionsCmd.Flags().StringVar(&sessionsToken, "token", "", "Bearer token (default: signed locally with the API secret)")
	sessionsCmd.Flags().StringVarP(&sessionsOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runSessions(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(sessionsOutput)
	if err != nil {
		return err
	}

	token := sessionsToken
	if token == "" {
		token, err = mintSessionToken()
		if err != nil {
			return err
		}
	}

	baseURL := fmt.Sprintf("http://localhost:%d", resolveAPIPort(sessionsAPIPort))
	client := apiclient.New(baseURL).WithToken(token)

	list, err := client.Sessions()
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.IsAuthError() {
			return fmt.Errorf("control API rejected the token: %s\n\nThe gateway must be running with the same API secret this command signs with", apiErr.Error())
		}
		return fmt.Errorf("failed to query %s: %w\n\nIs the gateway running with the control API enabled?", baseURL, err)
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, list.Sessions)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, list.Sessions)
	default:
		printSessionsTable(list)
	}

	return nil
}

// mintSessionToken signs a short-lived API token with the configured secret.
func mintSessionToken() (string, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	secret := cfg.API.GetJWTSecret()
	if secret == "" {
		return "", fmt.Errorf("no API secret configured\n\nSet the %s environment variable or 'api.jwt.secret' in config", api.EnvAPISecret)
	}

	svc, err := auth.NewTokenService(auth.Config{
		Secret:        secret,
		TokenDuration: time.Minute,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build token service: %w", err)
	}

	token, err := svc.Generate("xgate-cli")
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token.AccessToken, nil
}

func printSessionsTable(list *apiclient.SessionList) {
	if list.Count == 0 {
		fmt.Println("No active sessions")
		return
	}

	table := output.NewTableData("ID", "USER", "REMOTE", "OUTCOME", "MODE", "STARTED")
	for _, s := range list.Sessions {
		mode := s.Mode
		if mode == "" {
			mode = "-"
		}
		table.AddRow(s.ID, s.User, s.RemoteAddr, s.Outcome, mode, s.StartedAt.Local().Format(timeutil.LocalTimeFormat))
	}
	output.PrintTable(os.Stdout, table)

	fmt.Printf("\n%d active session(s)\n", list.Count)
}
