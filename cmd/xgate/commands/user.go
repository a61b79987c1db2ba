package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/marmos91/xgate/internal/cli/output"
	"github.com/marmos91/xgate/internal/cli/prompt"
	"github.com/marmos91/xgate/pkg/config"
	"github.com/marmos91/xgate/pkg/identity"
)

var (
	userPassword   string
	userAddForce   bool
	userRemForce   bool
	userListOutput string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage gateway users",
	Long: `Manage the user file consumed by the file password backend.

The user file holds one username:bcrypt-hash entry per line. The gateway
re-reads it when it changes, so additions and removals take effect without
a restart.`,
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add a user",
	Long: `Add a user to the user file.

Prompts for a password unless --password is given or one is piped on stdin.

Examples:
  # Add a user interactively
  xgate user add alice

  # Add a user non-interactively
  echo "s3cret-pass" | xgate user add alice`,
	Args: cobra.ExactArgs(1),
	RunE: runUserAdd,
}

var userRemoveCmd = &cobra.Command{
	Use:     "remove <username>",
	Aliases: []string{"delete"},
	Short:   "Remove a user",
	Args:    cobra.ExactArgs(1),
	RunE:    runUserRemove,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE:  runUserList,
}

var userVerifyCmd = &cobra.Command{
	Use:   "verify <username>",
	Short: "Verify a user's credentials",
	Long: `Check a username/password pair against the user file.

Useful for debugging authentication failures without an SSH client.`,
	Args: cobra.ExactArgs(1),
	RunE: runUserVerify,
}

func init() {
	userAddCmd.Flags().StringVarP(&userPassword, "password", "p", "", "Password (prompted when omitted)")
	userAddCmd.Flags().BoolVar(&userAddForce, "force", false, "Replace the password if the user already exists")

	userRemoveCmd.Flags().BoolVarP(&userRemForce, "force", "f", false, "Skip confirmation prompt")

	userListCmd.Flags().StringVarP(&userListOutput, "output", "o", "table", "Output format (table|json|yaml)")

	userVerifyCmd.Flags().StringVarP(&userPassword, "password", "p", "", "Password (prompted when omitted)")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userRemoveCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userVerifyCmd)
}

// openUserStore loads the configuration and opens the configured user file.
func openUserStore() (*identity.FileStore, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg.CreateIdentityStore()
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	username := args[0]

	store, err := openUserStore()
	if err != nil {
		return err
	}

	if _, err := store.Lookup(username); err == nil && !userAddForce {
		return fmt.Errorf("%w: %q (use --force to replace the password)", identity.ErrDuplicateUser, username)
	}

	password := userPassword
	if password == "" {
		password, err = readPassword(true)
		if err != nil {
			if prompt.IsAborted(err) {
				fmt.Println("Aborted.")
				return nil
			}
			return err
		}
	}

	if err := identity.ValidatePassword(password); err != nil {
		return fmt.Errorf("invalid password: %w", err)
	}

	hash, err := identity.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := store.Set(username, hash); err != nil {
		return fmt.Errorf("failed to save user file: %w", err)
	}

	fmt.Printf("✓ User %q added to %s\n", username, store.Path())
	return nil
}

func runUserRemove(cmd *cobra.Command, args []string) error {
	username := args[0]

	store, err := openUserStore()
	if err != nil {
		return err
	}

	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Remove user %q", username), userRemForce)
	if err != nil {
		if prompt.IsAborted(err) {
			fmt.Println("Aborted.")
			return nil
		}
		return err
	}
	if !ok {
		fmt.Println("Aborted.")
		return nil
	}

	if err := store.Remove(username); err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return fmt.Errorf("user %q not found", username)
		}
		return fmt.Errorf("failed to save user file: %w", err)
	}

	fmt.Printf("✓ User %q removed\n", username)
	return nil
}

// userInfo is one user in machine-readable list output. Hashes stay out of
// the output, only the bcrypt cost is reported.
type userInfo struct {
	Username string `json:"username" yaml:"username"`
	HashCost int    `json:"hash_cost" yaml:"hash_cost"`
}

func runUserList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(userListOutput)
	if err != nil {
		return err
	}

	store, err := openUserStore()
	if err != nil {
		return err
	}

	users := store.List()
	if len(users) == 0 && format == output.FormatTable {
		fmt.Println("No users configured")
		return nil
	}

	infos := make([]userInfo, 0, len(users))
	for _, u := range users {
		cost, err := bcrypt.Cost([]byte(u.PasswordHash))
		if err != nil {
			cost = 0
		}
		infos = append(infos, userInfo{Username: u.Username, HashCost: cost})
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, infos)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, infos)
	default:
		table := output.NewTableData("USERNAME", "HASH")
		for _, info := range infos {
			hash := "-"
			if info.HashCost > 0 {
				hash = fmt.Sprintf("bcrypt/%d", info.HashCost)
			}
			table.AddRow(info.Username, hash)
		}
		output.PrintTable(os.Stdout, table)
	}

	return nil
}

func runUserVerify(cmd *cobra.Command, args []string) error {
	username := args[0]

	store, err := openUserStore()
	if err != nil {
		return err
	}

	password := userPassword
	if password == "" {
		password, err = readPassword(false)
		if err != nil {
			if prompt.IsAborted(err) {
				fmt.Println("Aborted.")
				return nil
			}
			return err
		}
	}

	if err := store.Authenticate(username, password); err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return fmt.Errorf("authentication failed for %q", username)
		}
		return err
	}

	fmt.Printf("✓ Credentials OK for %q\n", username)
	return nil
}

// readPassword reads a password interactively, or from stdin when piped.
// With confirm set the interactive path asks twice.
func readPassword(confirm bool) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		if confirm {
			return prompt.NewPassword(identity.MinPasswordLength)
		}
		return prompt.Password("Password")
	}

	// Piped input: read a single line
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil && password == "" {
		return "", fmt.Errorf("failed to read password from stdin: %w", err)
	}
	return strings.TrimRight(password, "\r\n"), nil
}
