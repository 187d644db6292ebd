// Package runner runs shell command lines as cancellable child processes and
// captures their combined stdout and stderr.
//
// A Runner holds only configuration. Each call to Run owns its own child,
// pipe and output buffer, so one Runner may serve any number of concurrent
// invocations.
package runner

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Defaults used by New.
const (
	DefaultShell        = "/bin/sh"
	DefaultDrainTimeout = 5 * time.Second
	DefaultKillGrace    = 5 * time.Second
)

// Request describes one invocation.
type Request struct {
	// CommandLine is handed verbatim to the shell with -c, so globbing,
	// pipes and ~ expansion all apply. Quoting is the caller's job.
	CommandLine string

	// Dir is the working directory. Empty means inherit. A leading ~/ is
	// expanded to the home directory.
	Dir string

	// Tee, when set, receives each chunk of output as it is captured.
	Tee io.Writer
}

// Recorder observes every terminal outcome.
type Recorder interface {
	ObserveRun(status Status, elapsed time.Duration, outputBytes int)
}

// Runner starts shell commands.
type Runner struct {
	shell        string
	login        bool
	drainTimeout time.Duration
	killGrace    time.Duration
	logger       *slog.Logger
	recorder     Recorder
}

// Option configures a Runner.
type Option func(*Runner)

// WithShell sets the shell executable.
func WithShell(path string) Option {
	return func(r *Runner) {
		r.shell = path
	}
}

// WithLogin controls whether the shell is started as a login shell (-l),
// which loads the user's profile (PATH, aliases).
func WithLogin(login bool) Option {
	return func(r *Runner) {
		r.login = login
	}
}

// WithDrainTimeout bounds the final read after the child exits. It only
// matters when something the child started still holds the pipe open.
func WithDrainTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.drainTimeout = d
	}
}

// WithKillGrace sets how long a canceled child may take to exit after
// SIGTERM before it is sent SIGKILL.
func WithKillGrace(d time.Duration) Option {
	return func(r *Runner) {
		r.killGrace = d
	}
}

// WithLogger sets the logger used for debug-level lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithRecorder sets a Recorder that is told about every finished run.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		shell:        DefaultShell,
		login:        true,
		drainTimeout: DefaultDrainTimeout,
		killGrace:    DefaultKillGrace,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r
}

// args builds the shell argument list for a command line.
func (r *Runner) args(commandLine string) []string {
	if r.login {
		return []string{"-l", "-c", commandLine}
	}
	return []string{"-c", commandLine}
}

// Run executes req and blocks until it resolves.
//
// It returns the combined output and a nil error when the command exits 0.
// Otherwise the returned string is empty and the error carries the output:
// *ExitError for a non-zero exit (full output), *CanceledError when ctx was
// done first (output read so far) or *SpawnError when the shell never
// started (no output).
func (r *Runner) Run(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	output, err := r.run(ctx, req)
	if r.recorder != nil {
		outcome := OutcomeOf(output, err)
		r.recorder.ObserveRun(outcome.Status, time.Since(start), len(outcome.Output))
	}
	return output, err
}

func (r *Runner) run(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &CanceledError{CommandLine: req.CommandLine, Err: err, Cause: context.Cause(ctx)}
	}

	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)

	p, err := spawn(r.shell, r.args(req.CommandLine), req.Dir)
	if err != nil {
		logger.Debug("spawn failed", "shell", r.shell, "dir", req.Dir, "error", err)
		return "", &SpawnError{CommandLine: req.CommandLine, Err: err}
	}
	defer p.release()

	logger.Debug("process started", "pid", p.pid(), "shell", r.shell, "dir", req.Dir)

	var out strings.Builder
	appendChunk := func(chunk string) {
		out.WriteString(chunk)
		if req.Tee != nil {
			_, _ = io.WriteString(req.Tee, chunk)
		}
	}

	chunks := p.chunks
	for {
		if ctx.Err() != nil {
			return r.cancel(ctx, logger, p, req, out.String())
		}

		select {
		case <-ctx.Done():
			return r.cancel(ctx, logger, p, req, out.String())

		case chunk, ok := <-chunks:
			if !ok {
				// Pipe hit EOF before the child was reaped.
				chunks = nil
				continue
			}
			appendChunk(chunk)

		case <-p.exited:
			r.drain(logger, chunks, appendChunk)
			return r.resolve(logger, p, req, out.String())
		}
	}
}

// drain consumes what is left in the pipe after the child has exited.
func (r *Runner) drain(logger *slog.Logger, chunks <-chan string, appendChunk func(string)) {
	if chunks == nil {
		return
	}

	timer := time.NewTimer(r.drainTimeout)
	defer timer.Stop()

	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			appendChunk(chunk)
		case <-timer.C:
			logger.Debug("output drain timed out, pipe still held open", "timeout", r.drainTimeout)
			return
		}
	}
}

// resolve maps the child's exit status to the run result.
func (r *Runner) resolve(logger *slog.Logger, p *process, req Request, output string) (string, error) {
	code, signal := p.exitStatus()
	logger.Debug("process exited", "pid", p.pid(), "exit_code", code, "signal", signal, "output_bytes", len(output))

	if code == 0 {
		return output, nil
	}
	return "", &ExitError{
		CommandLine: req.CommandLine,
		Code:        code,
		Signal:      signal,
		Output:      output,
	}
}

// cancel signals the child and resolves without waiting for it to die.
func (r *Runner) cancel(ctx context.Context, logger *slog.Logger, p *process, req Request, output string) (string, error) {
	select {
	case <-p.exited:
		// Already reaped; the pid may belong to someone else by now.
	default:
		if err := p.terminate(); err != nil {
			logger.Debug("terminate failed", "pid", p.pid(), "error", err)
		}
		go r.escalate(logger, p)
	}

	logger.Debug("run canceled", "pid", p.pid(), "output_bytes", len(output))
	return "", &CanceledError{
		CommandLine: req.CommandLine,
		Output:      output,
		Err:         ctx.Err(),
		Cause:       context.Cause(ctx),
	}
}

// escalate kills the child if it is still alive after the grace period.
func (r *Runner) escalate(logger *slog.Logger, p *process) {
	timer := time.NewTimer(r.killGrace)
	defer timer.Stop()

	select {
	case <-p.exited:
	case <-timer.C:
		logger.Debug("process ignored SIGTERM, killing", "pid", p.pid(), "grace", r.killGrace)
		if err := p.kill(); err != nil {
			logger.Debug("kill failed", "pid", p.pid(), "error", err)
		}
	}
}
