//go:build windows

package commands

import "fmt"

// startDaemon is not supported on Windows.
func startDaemon() error {
	return fmt.Errorf("daemon mode is not supported on Windows, run 'xgate start' under a service manager instead")
}
