// Package fanout runs several commands at once and reports each outcome as
// it completes.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/npratt/shellrun/internal/runner"
)

// ErrCanceledBySibling is the cancellation cause recorded on jobs stopped
// because another job failed under fail-fast.
var ErrCanceledBySibling = errors.New("canceled after another job failed")

// ErrCanceledByCaller is the cause recorded by Cancel and CancelAll.
var ErrCanceledByCaller = errors.New("canceled by caller")

// Executor runs a single request. *runner.Runner satisfies it.
type Executor interface {
	Run(ctx context.Context, req runner.Request) (string, error)
}

// Job is one named command to run.
type Job struct {
	Name    string
	Request runner.Request
}

// Result is the resolved outcome of a Job.
type Result struct {
	Name    string
	Outcome runner.Outcome
	Elapsed time.Duration
}

// Group launches jobs concurrently and tracks the outstanding ones so they
// can be canceled individually or together.
type Group struct {
	exec     Executor
	failFast bool
	logger   *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelCauseFunc
}

// Option configures a Group.
type Option func(*Group)

// WithFailFast cancels every other outstanding job once one job resolves
// with anything but success.
func WithFailFast(enabled bool) Option {
	return func(g *Group) {
		g.failFast = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Group) {
		g.logger = logger
	}
}

// New creates a Group that runs jobs with exec.
func New(exec Executor, opts ...Option) *Group {
	g := &Group{
		exec:    exec,
		cancels: make(map[string]context.CancelCauseFunc),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return g
}

// Start launches every job and returns a channel that yields one Result per
// job in completion order. The channel is closed after the last Result.
//
// Each job runs under its own context derived from ctx, so canceling ctx
// cancels them all. Jobs must have unique, non-empty names that are not
// already outstanding in this Group; otherwise nothing is started.
func (g *Group) Start(ctx context.Context, jobs []Job) (<-chan Result, error) {
	contexts, err := g.register(ctx, jobs)
	if err != nil {
		return nil, err
	}

	g.logger.Debug("fan-out started", "jobs", len(jobs), "fail_fast", g.failFast)

	// Buffered so a job never blocks on a consumer that stopped reading.
	results := make(chan Result, len(jobs))
	var wg conc.WaitGroup
	for i, job := range jobs {
		jobCtx := contexts[i]
		wg.Go(func() {
			results <- g.runJob(jobCtx, job)
		})
	}

	go func() {
		defer close(results)
		if r := wg.WaitAndRecover(); r != nil {
			g.logger.Error("fan-out job panicked", "panic", r.String())
		}
	}()

	return results, nil
}

// register validates job names and creates one cancellable context per job,
// in job order.
func (g *Group) register(ctx context.Context, jobs []Job) ([]context.Context, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	seen := make(map[string]bool, len(jobs))
	for i, job := range jobs {
		if job.Name == "" {
			return nil, fmt.Errorf("job %d: name is required", i)
		}
		if seen[job.Name] {
			return nil, fmt.Errorf("duplicate job name %q", job.Name)
		}
		if _, running := g.cancels[job.Name]; running {
			return nil, fmt.Errorf("job %q is already running", job.Name)
		}
		seen[job.Name] = true
	}

	contexts := make([]context.Context, len(jobs))
	for i, job := range jobs {
		jobCtx, cancel := context.WithCancelCause(ctx)
		g.cancels[job.Name] = cancel
		contexts[i] = jobCtx
	}
	return contexts, nil
}

// runJob executes one job and retires its cancel func.
func (g *Group) runJob(ctx context.Context, job Job) Result {
	defer g.finish(job.Name)

	start := time.Now()
	output, err := g.exec.Run(ctx, job.Request)
	result := Result{
		Name:    job.Name,
		Outcome: runner.OutcomeOf(output, err),
		Elapsed: time.Since(start),
	}

	g.logger.Debug("fan-out job resolved",
		"job", job.Name,
		"status", result.Outcome.Status.String(),
		"exit_code", result.Outcome.ExitCode,
		"elapsed", result.Elapsed)

	if g.failFast && !result.Outcome.OK() && result.Outcome.Status != runner.StatusCanceled {
		g.cancelOthers(job.Name)
	}
	return result
}

// finish releases the job's context and forgets it.
func (g *Group) finish(name string) {
	g.mu.Lock()
	cancel, ok := g.cancels[name]
	delete(g.cancels, name)
	g.mu.Unlock()

	if ok {
		cancel(nil)
	}
}

func (g *Group) cancelOthers(failed string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for name, cancel := range g.cancels {
		if name == failed {
			continue
		}
		g.logger.Debug("canceling sibling", "job", name, "failed_job", failed)
		cancel(ErrCanceledBySibling)
	}
}

// Cancel cancels the named outstanding job. It reports whether such a job
// was found. Other jobs are unaffected.
func (g *Group) Cancel(name string) bool {
	g.mu.Lock()
	cancel, ok := g.cancels[name]
	g.mu.Unlock()

	if ok {
		cancel(ErrCanceledByCaller)
	}
	return ok
}

// CancelAll cancels every outstanding job.
func (g *Group) CancelAll() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, cancel := range g.cancels {
		cancel(ErrCanceledByCaller)
	}
}

// Outstanding returns the number of jobs that have not resolved yet.
func (g *Group) Outstanding() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.cancels)
}

// Collect reads results until the channel is closed.
func Collect(results <-chan Result) []Result {
	var all []Result
	for r := range results {
		all = append(all, r)
	}
	return all
}
