//go:build !windows

package commands

import (
	"errors"

	"golang.org/x/sys/unix"
)

// processAlive probes a PID with a null signal. EPERM still means the
// process exists, it just belongs to another user.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
