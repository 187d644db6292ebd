// Package testutil provides test infrastructure for unit and integration testing.
// It includes mocks and helpers that other packages use for testing.
package testutil

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/npratt/shellrun/internal/runner"
)

// RunCall records an invocation for assertion purposes.
type RunCall struct {
	CommandLine string
	Dir         string
}

// DynamicResponseFunc is called to generate dynamic responses for requests.
// If handled is false, the normal response lookup is used.
type DynamicResponseFunc func(ctx context.Context, req runner.Request) (output string, err error, handled bool)

// MockRunner returns canned results keyed by command line.
// It records all calls for later assertion.
//
// Command lines registered with SetBlocking do not resolve until their
// context is done; they then return a *runner.CanceledError carrying any
// configured output, like the real runner.
type MockRunner struct {
	mu              sync.Mutex
	Responses       map[string]string
	Errors          map[string]error
	Blocking        map[string]bool
	Calls           []RunCall
	DynamicResponse DynamicResponseFunc

	started chan RunCall
}

// NewMockRunner creates a MockRunner with initialized maps.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		Responses: make(map[string]string),
		Errors:    make(map[string]error),
		Blocking:  make(map[string]bool),
		Calls:     nil,
		started:   make(chan RunCall, 64),
	}
}

// Run records the call, writes any configured output to req.Tee and returns
// the canned result. Errors take precedence over responses; exact matches
// take precedence over prefix matches.
func (m *MockRunner) Run(ctx context.Context, req runner.Request) (string, error) {
	call := RunCall{CommandLine: req.CommandLine, Dir: req.Dir}

	m.mu.Lock()
	m.Calls = append(m.Calls, call)
	dynamic := m.DynamicResponse
	blocking := m.lookupBlocking(req.CommandLine)
	output, err, found := m.lookup(req.CommandLine)
	m.mu.Unlock()

	select {
	case m.started <- call:
	default:
	}

	if dynamic != nil {
		if out, derr, handled := dynamic(ctx, req); handled {
			return out, derr
		}
	}

	if blocking {
		tee(req.Tee, output)
		<-ctx.Done()
		return "", &runner.CanceledError{
			CommandLine: req.CommandLine,
			Output:      output,
			Err:         ctx.Err(),
			Cause:       context.Cause(ctx),
		}
	}

	if ctx.Err() != nil {
		return "", &runner.CanceledError{CommandLine: req.CommandLine, Err: ctx.Err(), Cause: context.Cause(ctx)}
	}

	if !found {
		return "", &runner.SpawnError{
			CommandLine: req.CommandLine,
			Err:         fmt.Errorf("unexpected command: %s", req.CommandLine),
		}
	}

	if err != nil {
		return "", err
	}
	tee(req.Tee, output)
	return output, nil
}

// lookup finds the canned result for a command line. Callers hold m.mu.
func (m *MockRunner) lookup(commandLine string) (string, error, bool) {
	if err, ok := m.Errors[commandLine]; ok {
		return "", err, true
	}
	if resp, ok := m.Responses[commandLine]; ok {
		return resp, nil, true
	}

	for k, err := range m.Errors {
		if strings.HasPrefix(commandLine, k) {
			return "", err, true
		}
	}
	for k, resp := range m.Responses {
		if strings.HasPrefix(commandLine, k) {
			return resp, nil, true
		}
	}
	return "", nil, false
}

func (m *MockRunner) lookupBlocking(commandLine string) bool {
	if m.Blocking[commandLine] {
		return true
	}
	for k, block := range m.Blocking {
		if block && strings.HasPrefix(commandLine, k) {
			return true
		}
	}
	return false
}

func tee(w io.Writer, output string) {
	if w != nil && output != "" {
		_, _ = io.WriteString(w, output)
	}
}

// SetResponse configures a successful result for a command line.
func (m *MockRunner) SetResponse(commandLine, output string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[commandLine] = output
}

// SetError configures an error result for a command line.
func (m *MockRunner) SetError(commandLine string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[commandLine] = err
}

// SetExit configures a non-zero exit for a command line.
func (m *MockRunner) SetExit(commandLine string, code int, output string) {
	m.SetError(commandLine, &runner.ExitError{CommandLine: commandLine, Code: code, Output: output})
}

// SetBlocking makes a command line run until its context is canceled. The
// partial output is written to the request's Tee on start.
func (m *MockRunner) SetBlocking(commandLine, partialOutput string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Blocking[commandLine] = true
	m.Responses[commandLine] = partialOutput
}

// Started returns a channel that receives each call as it begins. Calls are
// dropped if nobody is receiving and the buffer is full.
func (m *MockRunner) Started() <-chan RunCall {
	return m.started
}

// GetCalls returns a copy of all recorded calls.
func (m *MockRunner) GetCalls() []RunCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]RunCall, len(m.Calls))
	copy(result, m.Calls)
	return result
}

// Reset clears all recorded calls.
func (m *MockRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}
