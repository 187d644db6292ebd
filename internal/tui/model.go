package tui

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/shellrun/internal/buildtarget"
	"github.com/npratt/shellrun/internal/fanout"
)

// buttonKind identifies what pressing a button does.
type buttonKind int

const (
	// buttonCommand runs a single command.
	buttonCommand buttonKind = iota
	// buttonArchive archives every target at once.
	buttonArchive
	// buttonExport exports every target at once.
	buttonExport
	// buttonCancel cancels whatever is running.
	buttonCancel
)

// button is one entry in the button row.
type button struct {
	Label   string
	Kind    buttonKind
	Command Command
}

// outputBuffer is how many output chunks may queue before the live view
// starts dropping them. The final outcome always carries the full output.
const outputBuffer = 256

// model is the bubbletea model for the TUI.
type model struct {
	ctx      context.Context
	exec     fanout.Executor
	targets  []buildtarget.Target
	failFast bool
	logger   *slog.Logger

	buttons     []button
	focus       int
	resumeFocus int

	// Run state. seq increments per run so late messages from an earlier
	// run are recognised and ignored.
	processing bool
	seq        int
	running    string
	cancel     context.CancelFunc
	group      *fanout.Group
	outputCh   chan outputMsg
	jobs       int
	jobsOK     int

	// Display
	output   string
	message  string
	failed   bool
	spinner  spinner.Model
	viewport viewport.Model
	width    int
	height   int
}

// newModel creates a model with one button per command, archive and export
// buttons when there are targets, and a cancel button.
func newModel(
	ctx context.Context,
	exec fanout.Executor,
	commands []Command,
	targets []buildtarget.Target,
	failFast bool,
	logger *slog.Logger,
) model {
	var buttons []button
	for _, c := range commands {
		buttons = append(buttons, button{Label: c.Name, Kind: buttonCommand, Command: c})
	}
	if len(targets) > 0 {
		buttons = append(buttons,
			button{Label: "archive", Kind: buttonArchive},
			button{Label: "export", Kind: buttonExport},
		)
	}
	buttons = append(buttons, button{Label: "cancel", Kind: buttonCancel})

	return model{
		ctx:      ctx,
		exec:     exec,
		targets:  targets,
		failFast: failFast,
		logger:   logger,
		buttons:  buttons,
		outputCh: make(chan outputMsg, outputBuffer),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.Spinner)),
		viewport: viewport.New(0, 0),
	}
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return waitForOutput(m.outputCh)
}

// enabled reports whether the button at i can be pressed right now.
func (m model) enabled(i int) bool {
	if m.buttons[i].Kind == buttonCancel {
		return m.processing
	}
	return !m.processing
}

