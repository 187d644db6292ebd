package runner

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// readBufferSize is the maximum size of a single chunk handed to the loop.
const readBufferSize = 32 * 1024

// process owns the child and the read end of its combined output pipe for
// one invocation. It is created by spawn and released exactly once.
type process struct {
	cmd    *exec.Cmd
	pipe   *os.File
	chunks chan string
	exited chan struct{}
	done   chan struct{}

	// waitErr is written by the wait goroutine before exited is closed.
	waitErr error

	// mu orders signals against reaping. Once reaped is set the pid may be
	// reused, so nothing more is sent to it.
	mu     sync.Mutex
	reaped bool
}

// spawn starts the shell with stdout and stderr sharing one pipe.
// On error nothing is left open.
func spawn(shell string, args []string, dir string) (*process, error) {
	if dir != "" {
		expanded, err := expandHome(dir)
		if err != nil {
			return nil, err
		}
		dir = expanded
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(shell, args...)
	cmd.Dir = dir
	cmd.Stdout = pw
	cmd.Stderr = pw
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, err
	}

	// The child holds its own copy; ours must go so EOF arrives when the
	// child (and anything it forked) is done writing.
	_ = pw.Close()

	p := &process{
		cmd:    cmd,
		pipe:   pr,
		chunks: make(chan string),
		exited: make(chan struct{}),
		done:   make(chan struct{}),
	}

	go p.pump()
	go p.wait()

	return p, nil
}

// pump reads the pipe and hands decoded text to the loop in arrival order.
// The UTF-8 decoder keeps a partial multi-byte sequence until the rest of it
// arrives. chunks is closed at end of stream or when the pipe is closed.
func (p *process) pump() {
	defer close(p.chunks)

	r := transform.NewReader(p.pipe, unicode.UTF8.NewDecoder())
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case p.chunks <- string(buf[:n]):
			case <-p.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// wait reaps the child. Where the platform can wait without reaping, the
// child is marked reaped while it is still a zombie, so a concurrent signal
// never reaches a recycled pid.
func (p *process) wait() {
	if waitExited(p.pid()) {
		p.markReaped()
	}
	p.waitErr = p.cmd.Wait()
	p.markReaped()
	close(p.exited)
}

func (p *process) markReaped() {
	p.mu.Lock()
	p.reaped = true
	p.mu.Unlock()
}

// pid returns the child's process ID.
func (p *process) pid() int {
	return p.cmd.Process.Pid
}

// release closes the read end of the pipe and stops the pump. The wait
// goroutine keeps running until the child is reaped.
func (p *process) release() {
	close(p.done)
	_ = p.pipe.Close()
}

// exitStatus converts the result of Wait into an exit code and, when the
// child was killed by a signal, the signal name.
func (p *process) exitStatus() (int, string) {
	if p.waitErr == nil {
		return 0, ""
	}
	var exitErr *exec.ExitError
	if errors.As(p.waitErr, &exitErr) {
		return exitCode(exitErr)
	}
	return -1, ""
}

// expandHome replaces a leading "~" in dir with the user's home directory.
func expandHome(dir string) (string, error) {
	if dir != "~" && !strings.HasPrefix(dir, "~/") {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(dir, "~")), nil
}
