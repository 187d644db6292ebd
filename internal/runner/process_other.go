//go:build !unix

package runner

import (
	"errors"
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

func (p *process) terminate() error {
	return p.kill()
}

func (p *process) kill() error {
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func exitCode(exitErr *exec.ExitError) (int, string) {
	return exitErr.ExitCode(), ""
}
