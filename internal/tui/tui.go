// Package tui provides a button panel for running shell commands using
// bubbletea.
package tui

import (
	"context"
	"io"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/shellrun/internal/buildtarget"
	"github.com/npratt/shellrun/internal/fanout"
)

// Command is a button that runs one command line.
type Command struct {
	Name        string
	CommandLine string
	Dir         string
}

// TUI is the terminal button panel.
type TUI struct {
	exec     fanout.Executor
	commands []Command
	targets  []buildtarget.Target
	failFast bool
	logger   *slog.Logger
}

// Option configures the TUI.
type Option func(*TUI)

// New creates a TUI that runs commands with exec.
func New(exec fanout.Executor, opts ...Option) *TUI {
	t := &TUI{exec: exec}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return t
}

// WithCommands sets the command buttons, in display order.
func WithCommands(commands ...Command) Option {
	return func(t *TUI) {
		t.commands = append(t.commands, commands...)
	}
}

// WithTargets adds archive and export buttons that fan out over targets.
func WithTargets(targets ...buildtarget.Target) Option {
	return func(t *TUI) {
		t.targets = append(t.targets, targets...)
	}
}

// WithFailFast cancels the remaining targets once one fails.
func WithFailFast(enabled bool) Option {
	return func(t *TUI) {
		t.failFast = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *TUI) {
		t.logger = logger
	}
}

// Run starts the TUI and blocks until it exits. Canceling ctx cancels any
// running command and quits.
func (t *TUI) Run(ctx context.Context) error {
	m := newModel(ctx, t.exec, t.commands, t.targets, t.failFast, t.logger)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
