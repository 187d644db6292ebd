//go:build linux

package runner

import (
	"errors"

	"golang.org/x/sys/unix"
)

// waitExited blocks until the child has exited but leaves it unreaped, so its
// pid stays reserved until Wait collects it. It reports false if it could not
// wait.
func waitExited(pid int) bool {
	var info unix.Siginfo
	for {
		err := unix.Waitid(unix.P_PID, pid, &info, unix.WEXITED|unix.WNOWAIT, nil)
		if err == nil {
			return true
		}
		if !errors.Is(err, unix.EINTR) {
			return false
		}
	}
}
