package runner

import (
	"context"
	"errors"
	"fmt"
)

// Status classifies how a run ended.
type Status int

const (
	// StatusSucceeded means the command exited with status 0.
	StatusSucceeded Status = iota
	// StatusFailed means the command ran and exited non-zero.
	StatusFailed
	// StatusCanceled means cancellation was observed before the command exited.
	StatusCanceled
	// StatusSpawnFailed means the shell could not be started at all.
	StatusSpawnFailed
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	case StatusSpawnFailed:
		return "spawn_failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ExitError is returned when the command ran to completion with a non-zero
// exit status. Output holds everything the command wrote.
type ExitError struct {
	CommandLine string
	Code        int
	Signal      string // set when the child was terminated by a signal
	Output      string
}

func (e *ExitError) Error() string {
	if e.Signal != "" {
		return fmt.Sprintf("command did not complete successfully\nexit status: %d (%s)\noutput: %s", e.Code, e.Signal, e.Output)
	}
	return fmt.Sprintf("command did not complete successfully\nexit status: %d\noutput: %s", e.Code, e.Output)
}

// CanceledError is returned when the run was canceled before the command
// exited. Output holds only what had been read up to that point.
//
// Err is the context's own error (context.Canceled or
// context.DeadlineExceeded). Cause is what context.Cause reported, which
// differs from Err when the context was canceled with a cause.
type CanceledError struct {
	CommandLine string
	Output      string
	Err         error
	Cause       error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("command canceled\noutput: %s", e.Output)
}

// Unwrap exposes both the context error and the cancellation cause, so
// errors.Is matches context.Canceled as well as a custom cause.
func (e *CanceledError) Unwrap() []error {
	err := e.Err
	if err == nil {
		err = context.Canceled
	}
	if e.Cause == nil || e.Cause == err {
		return []error{err}
	}
	return []error{err, e.Cause}
}

// SpawnError is returned when the shell process could not be started.
// No output is ever available.
type SpawnError struct {
	CommandLine string
	Err         error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("command could not be started: %v", e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Outcome is the sum-type view of a run result.
type Outcome struct {
	Status   Status
	ExitCode int
	Output   string
	Err      error
}

// OutcomeOf classifies the result of Run.
func OutcomeOf(output string, err error) Outcome {
	if err == nil {
		return Outcome{Status: StatusSucceeded, Output: output}
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return Outcome{Status: StatusFailed, ExitCode: exitErr.Code, Output: exitErr.Output, Err: err}
	}

	var canceledErr *CanceledError
	if errors.As(err, &canceledErr) {
		return Outcome{Status: StatusCanceled, Output: canceledErr.Output, Err: err}
	}

	// Anything else (including *SpawnError) carries no output.
	return Outcome{Status: StatusSpawnFailed, ExitCode: -1, Err: err}
}

// Message returns the text a user should see for this outcome.
func (o Outcome) Message() string {
	if o.Status == StatusSucceeded {
		return o.Output
	}
	if o.Err == nil {
		return o.Status.String()
	}
	return o.Err.Error()
}

// OK reports whether the command succeeded.
func (o Outcome) OK() bool {
	return o.Status == StatusSucceeded
}
