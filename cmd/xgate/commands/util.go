package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/marmos91/xgate/internal/logger"
	"github.com/marmos91/xgate/pkg/config"
)

// InitLogger initializes the global logger from configuration.
func InitLogger(cfg *config.Config) error {
	logConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(logConfig); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// GetDefaultStateDir returns the platform state directory for runtime files
// such as the PID file and the daemon log.
func GetDefaultStateDir() string {
	if runtime.GOOS == "windows" {
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "xgate")
		}
		return filepath.Join(os.TempDir(), "xgate")
	}

	if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
		return filepath.Join(stateHome, "xgate")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "xgate")
	}
	return filepath.Join(home, ".local", "state", "xgate")
}

// GetDefaultPidFile returns the default PID file location.
func GetDefaultPidFile() string {
	return filepath.Join(GetDefaultStateDir(), "xgate.pid")
}

// GetDefaultLogFile returns the default daemon log file location.
func GetDefaultLogFile() string {
	return filepath.Join(GetDefaultStateDir(), "xgate.log")
}

// isProcessRunning reads a PID file and probes whether the process is alive.
// Returns the PID and true when the process exists.
func isProcessRunning(pidPath string) (int, bool) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, false
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil || pid <= 0 {
		return 0, false
	}

	return pid, processAlive(pid)
}
