//go:build unix

package runner

import (
	"errors"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup puts the shell in its own process group so that whatever
// it runs is signalled together with it.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate asks the child's process group to exit. It does not wait.
func (p *process) terminate() error {
	return p.signal(unix.SIGTERM)
}

// kill forcibly stops the child's process group.
func (p *process) kill() error {
	return p.signal(unix.SIGKILL)
}

// signal sends sig to the child's process group unless the child has
// already been reaped.
func (p *process) signal(sig unix.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reaped {
		return nil
	}
	return signalGroup(p.pid(), sig)
}

func signalGroup(pid int, sig unix.Signal) error {
	err := unix.Kill(-pid, sig)
	if errors.Is(err, unix.ESRCH) {
		// Group is gone; fall back to the leader in case it never got one.
		err = unix.Kill(pid, sig)
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
	}
	return err
}

// exitCode reports 128+signal for children terminated by a signal, matching
// what a shell would report.
func exitCode(exitErr *exec.ExitError) (int, string) {
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if ok && status.Signaled() {
		sig := status.Signal()
		return 128 + int(sig), unix.SignalName(sig)
	}
	return exitErr.ExitCode(), ""
}
