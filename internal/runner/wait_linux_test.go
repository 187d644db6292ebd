//go:build linux

package runner

import (
	"errors"
	"os/exec"
	"testing"

	"golang.org/x/sys/unix"
)

func TestWaitExited_LeavesChildUnreaped(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "exit 3")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if !waitExited(cmd.Process.Pid) {
		t.Fatal("waitExited() = false")
	}

	// Still a zombie, so the pid is not free for reuse.
	if err := unix.Kill(cmd.Process.Pid, 0); err != nil {
		t.Errorf("pid released before Wait: %v", err)
	}

	var exitErr *exec.ExitError
	if err := cmd.Wait(); !errors.As(err, &exitErr) || exitErr.ExitCode() != 3 {
		t.Errorf("Wait() = %v, want exit status 3", err)
	}
}
