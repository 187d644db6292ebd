package runner

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestOutcomeOf(t *testing.T) {
	spawnErr := &SpawnError{CommandLine: "x", Err: errors.New("exec: not found")}

	tests := []struct {
		name       string
		output     string
		err        error
		wantStatus Status
		wantCode   int
		wantOutput string
	}{
		{
			name:       "success",
			output:     "hello\n",
			wantStatus: StatusSucceeded,
			wantOutput: "hello\n",
		},
		{
			name:       "failure",
			err:        &ExitError{CommandLine: "x", Code: 7, Output: "partial"},
			wantStatus: StatusFailed,
			wantCode:   7,
			wantOutput: "partial",
		},
		{
			name:       "canceled",
			err:        &CanceledError{CommandLine: "x", Output: "so far"},
			wantStatus: StatusCanceled,
			wantOutput: "so far",
		},
		{
			name:       "spawn failure",
			err:        spawnErr,
			wantStatus: StatusSpawnFailed,
			wantCode:   -1,
		},
		{
			name:       "wrapped failure",
			err:        errors.Join(errors.New("archive"), &ExitError{Code: 65, Output: "build failed"}),
			wantStatus: StatusFailed,
			wantCode:   65,
			wantOutput: "build failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OutcomeOf(tt.output, tt.err)
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %v, want %v", got.Status, tt.wantStatus)
			}
			if got.ExitCode != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d", got.ExitCode, tt.wantCode)
			}
			if got.Output != tt.wantOutput {
				t.Errorf("Output = %q, want %q", got.Output, tt.wantOutput)
			}
			if got.OK() != (tt.wantStatus == StatusSucceeded) {
				t.Errorf("OK() = %v for status %v", got.OK(), got.Status)
			}
		})
	}
}

func TestOutcome_Message(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		want    []string
	}{
		{
			name:    "success prints output",
			outcome: OutcomeOf("hello\n", nil),
			want:    []string{"hello\n"},
		},
		{
			name:    "failure includes code and output",
			outcome: OutcomeOf("", &ExitError{Code: 7, Output: "boom"}),
			want:    []string{"did not complete successfully", "exit status: 7", "output: boom"},
		},
		{
			name:    "signal named",
			outcome: OutcomeOf("", &ExitError{Code: 143, Signal: "SIGTERM"}),
			want:    []string{"exit status: 143 (SIGTERM)"},
		},
		{
			name:    "canceled includes partial output",
			outcome: OutcomeOf("", &CanceledError{Output: "64 bytes from"}),
			want:    []string{"canceled", "output: 64 bytes from"},
		},
		{
			name:    "spawn failure",
			outcome: OutcomeOf("", &SpawnError{Err: errors.New("permission denied")}),
			want:    []string{"could not be started", "permission denied"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.outcome.Message()
			for _, want := range tt.want {
				if !strings.Contains(msg, want) {
					t.Errorf("Message() = %q, want to contain %q", msg, want)
				}
			}
		})
	}
}

func TestCanceledError_Unwrap(t *testing.T) {
	errStopped := errors.New("stopped by operator")

	tests := []struct {
		name  string
		err   *CanceledError
		match []error
	}{
		{
			name:  "zero value",
			err:   &CanceledError{},
			match: []error{context.Canceled},
		},
		{
			name:  "deadline",
			err:   &CanceledError{Err: context.DeadlineExceeded, Cause: context.DeadlineExceeded},
			match: []error{context.DeadlineExceeded},
		},
		{
			name:  "custom cause",
			err:   &CanceledError{Err: context.Canceled, Cause: errStopped},
			match: []error{context.Canceled, errStopped},
		},
		{
			name:  "cause without context error",
			err:   &CanceledError{Cause: errStopped},
			match: []error{context.Canceled, errStopped},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, target := range tt.match {
				if !errors.Is(tt.err, target) {
					t.Errorf("errors.Is(err, %v) = false", target)
				}
			}
		})
	}
}

func TestSpawnError_Unwrap(t *testing.T) {
	inner := errors.New("no such file")
	err := &SpawnError{Err: inner}
	if !errors.Is(err, inner) {
		t.Error("SpawnError should unwrap to the start error")
	}
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusSucceeded, "succeeded"},
		{StatusFailed, "failed"},
		{StatusCanceled, "canceled"},
		{StatusSpawnFailed, "spawn_failed"},
		{Status(42), "unknown(42)"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", int(tt.status), got, tt.want)
		}
	}
}
