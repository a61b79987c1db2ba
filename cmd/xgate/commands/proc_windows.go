//go:build windows

package commands

import "os"

// processAlive checks whether a process handle can be opened for the PID.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = process.Release()
	return true
}
