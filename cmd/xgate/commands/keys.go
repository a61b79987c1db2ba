package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"

	"github.com/marmos91/xgate/internal/cli/output"
	"github.com/marmos91/xgate/pkg/config"
	"github.com/marmos91/xgate/pkg/hostkeys"
)

var (
	keysListOutput string
	keysGenDir     string
	keysGenTypes   []string
	keysGenForce   bool
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage SSH host keys",
	Long: `Manage the SSH host keys the gateway presents during the handshake.

Host keys follow the OpenSSH naming convention ssh_host_<type>_key and are
discovered in the configured search directories.`,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered host keys",
	Long: `List the host keys the gateway would load with the current configuration.

Examples:
  # List host keys
  xgate keys list

  # Output as JSON
  xgate keys list -o json`,
	RunE: runKeysList,
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate host keys",
	Long: `Generate SSH host keys in the first configured search directory.

By default an ed25519 and an rsa key are generated. Existing keys are left
alone unless --force is given.

Examples:
  # Generate default key types
  xgate keys generate

  # Generate only an ed25519 key into a specific directory
  xgate keys generate --type ed25519 --dir /etc/xgate/keys`,
	RunE: runKeysGenerate,
}

func init() {
	keysListCmd.Flags().StringVarP(&keysListOutput, "output", "o", "table", "Output format (table|json|yaml)")

	keysGenerateCmd.Flags().StringVar(&keysGenDir, "dir", "", "Directory to write keys to (default: first configured key directory)")
	keysGenerateCmd.Flags().StringSliceVar(&keysGenTypes, "type", hostkeys.DefaultGenerateTypes, "Key types to generate (ed25519, ecdsa, rsa)")
	keysGenerateCmd.Flags().BoolVar(&keysGenForce, "force", false, "Overwrite existing keys")

	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysGenerateCmd)
}

// keyInfo is one host key in machine-readable list output.
type keyInfo struct {
	Type        string `json:"type" yaml:"type"`
	Algorithm   string `json:"algorithm" yaml:"algorithm"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	Path        string `json:"path" yaml:"path"`
}

func runKeysList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(keysListOutput)
	if err != nil {
		return err
	}

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := hostkeys.Load(cfg.Gateway.HostKey, cfg.Gateway.HostKeyDirs)
	if err != nil {
		if errors.Is(err, hostkeys.ErrNoHostKeys) {
			fmt.Println("No host keys found.")
			fmt.Println("\nGenerate one with 'xgate keys generate'")
			return nil
		}
		return err
	}

	keys := make([]keyInfo, 0, len(store.Entries()))
	for _, entry := range store.Entries() {
		keys = append(keys, keyInfo{
			Type:        entry.Type,
			Algorithm:   entry.Signer.PublicKey().Type(),
			Fingerprint: ssh.FingerprintSHA256(entry.Signer.PublicKey()),
			Path:        entry.Path,
		})
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, keys)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, keys)
	default:
		table := output.NewTableData("TYPE", "ALGORITHM", "FINGERPRINT", "PATH")
		for _, k := range keys {
			table.AddRow(k.Type, k.Algorithm, k.Fingerprint, k.Path)
		}
		output.PrintTable(os.Stdout, table)
	}

	return nil
}

func runKeysGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dir := keysGenDir
	if dir == "" {
		switch {
		case len(cfg.Gateway.HostKeyDirs) > 0:
			dir = cfg.Gateway.HostKeyDirs[0]
		case cfg.Gateway.HostKey != "":
			dir = filepath.Dir(cfg.Gateway.HostKey)
		default:
			return fmt.Errorf("no host key directory configured, pass --dir")
		}
	}

	for _, keyType := range keysGenTypes {
		entry, err := hostkeys.GenerateKey(dir, keyType, keysGenForce)
		if err != nil {
			if errors.Is(err, hostkeys.ErrKeyExists) {
				fmt.Printf("Host key already exists, skipping: %s (use --force to overwrite)\n", filepath.Join(dir, "ssh_host_"+keyType+"_key"))
				continue
			}
			return err
		}
		fmt.Printf("Generated %s host key: %s\n", entry.Type, entry.Path)
		fmt.Printf("  Fingerprint: %s\n", ssh.FingerprintSHA256(entry.Signer.PublicKey()))
	}

	return nil
}
