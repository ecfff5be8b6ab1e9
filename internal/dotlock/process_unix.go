//go:build unix

package dotlock

import (
	"errors"

	"golang.org/x/sys/unix"
)

// processAlive reports whether pid names a running process on this host.
// A process we may not signal still exists.
func processAlive(pid int) bool {
	if pid <= 0 {
		return true
	}

	err := unix.Kill(pid, 0)

	return err == nil || errors.Is(err, unix.EPERM)
}
