package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/shellrun/internal/fanout"
	"github.com/npratt/shellrun/internal/runner"
)

const (
	// maxOutputLines is the maximum number of output lines kept for display.
	maxOutputLines = 2000
	// trimOutputLines is the number of lines removed when the buffer is full.
	trimOutputLines = 200
	// chromeLines is the number of rows taken by everything but the output.
	chromeLines = 9
)

// outputMsg carries a chunk of live output from run seq.
type outputMsg struct {
	seq   int
	chunk string
}

// runDoneMsg reports that a single command resolved.
type runDoneMsg struct {
	seq     int
	outcome runner.Outcome
}

// fanoutResultMsg reports one resolved job of a fan-out.
type fanoutResultMsg struct {
	seq    int
	result fanout.Result
	ch     <-chan fanout.Result
}

// fanoutDoneMsg reports that every job of a fan-out resolved.
type fanoutDoneMsg struct {
	seq int
}

// outputWriter forwards captured output to the model. Chunks are dropped
// rather than stalling the command when the model falls behind.
type outputWriter struct {
	seq int
	ch  chan<- outputMsg
}

func (w outputWriter) Write(p []byte) (int, error) {
	select {
	case w.ch <- outputMsg{seq: w.seq, chunk: string(p)}:
	default:
	}
	return len(p), nil
}

// waitForOutput creates a command that waits for the next output chunk.
func waitForOutput(ch <-chan outputMsg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// waitForResult creates a command that waits for the next fan-out result.
// Returns fanoutDoneMsg once the channel is closed.
func waitForResult(seq int, ch <-chan fanout.Result) tea.Cmd {
	return func() tea.Msg {
		result, ok := <-ch
		if !ok {
			return fanoutDoneMsg{seq: seq}
		}
		return fanoutResultMsg{seq: seq, result: result, ch: ch}
	}
}

// Update implements tea.Model. It handles all message types and updates the model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = safeWidth(m.width - 4)
		m.viewport.Height = max(m.height-chromeLines, 3)
		m.refreshViewport()
		return m, nil

	case outputMsg:
		if msg.seq == m.seq && m.processing {
			m.appendOutput(msg.chunk)
		}
		return m, waitForOutput(m.outputCh)

	case runDoneMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.finishRun()
		m.output = msg.outcome.Message()
		m.message = fmt.Sprintf("%s: %s", m.running, statusLabel(msg.outcome))
		m.failed = !msg.outcome.OK()
		m.refreshViewport()
		m.logger.Debug("command resolved", "command", m.running, "status", msg.outcome.Status.String())
		return m, nil

	case fanoutResultMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.recordResult(msg.result)
		return m, waitForResult(msg.seq, msg.ch)

	case fanoutDoneMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.finishRun()
		m.group = nil
		m.message = fmt.Sprintf("%s: %d of %d targets succeeded", m.running, m.jobsOK, m.jobs)
		m.failed = m.jobsOK != m.jobs
		return m, nil

	case spinner.TickMsg:
		if !m.processing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
}

// handleKey processes keyboard input and returns the updated model and command.
func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.cancelRun()
		return m, tea.Quit

	case "left", "shift+tab":
		m.moveFocus(-1)
		return m, nil

	case "right", "tab":
		m.moveFocus(1)
		return m, nil

	case "c", "esc":
		m.cancelRun()
		return m, nil

	case "enter", " ":
		return m.press(m.focus)

	case "up", "down", "pgup", "pgdown", "home", "end":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

// moveFocus moves focus by delta, wrapping around the button row.
func (m *model) moveFocus(delta int) {
	n := len(m.buttons)
	m.focus = ((m.focus+delta)%n + n) % n
}

// press activates the button at i if it is enabled.
func (m model) press(i int) (tea.Model, tea.Cmd) {
	if i < 0 || i >= len(m.buttons) || !m.enabled(i) {
		return m, nil
	}

	b := m.buttons[i]
	switch b.Kind {
	case buttonCommand:
		return m.startCommand(b.Command)
	case buttonArchive, buttonExport:
		return m.startFanOut(b.Kind)
	case buttonCancel:
		m.cancelRun()
	}
	return m, nil
}

// startCommand runs a single command in the background.
func (m model) startCommand(c Command) (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(m.ctx)
	m.beginRun(c.CommandLine)
	m.cancel = cancel

	seq := m.seq
	exec := m.exec
	req := runner.Request{
		CommandLine: c.CommandLine,
		Dir:         c.Dir,
		Tee:         outputWriter{seq: seq, ch: m.outputCh},
	}
	m.logger.Debug("running command", "command", c.CommandLine, "dir", c.Dir)

	run := func() tea.Msg {
		output, err := exec.Run(ctx, req)
		return runDoneMsg{seq: seq, outcome: runner.OutcomeOf(output, err)}
	}
	return m, tea.Batch(run, m.spinner.Tick)
}

// startFanOut archives or exports every target concurrently.
func (m model) startFanOut(kind buttonKind) (tea.Model, tea.Cmd) {
	action := "archive"
	if kind == buttonExport {
		action = "export"
	}

	jobs := make([]fanout.Job, 0, len(m.targets))
	for _, t := range m.targets {
		commandLine := t.ArchiveCommand()
		if kind == buttonExport {
			commandLine = t.ExportCommand()
		}
		jobs = append(jobs, fanout.Job{
			Name:    t.DisplayName(),
			Request: runner.Request{CommandLine: commandLine},
		})
	}

	group := fanout.New(m.exec, fanout.WithFailFast(m.failFast), fanout.WithLogger(m.logger))
	ch, err := group.Start(m.ctx, jobs)
	if err != nil {
		m.message = fmt.Sprintf("%s: %v", action, err)
		m.failed = true
		return m, nil
	}

	m.beginRun(action)
	m.group = group
	m.jobs = len(jobs)
	m.jobsOK = 0
	m.logger.Debug("fan-out started", "action", action, "targets", len(jobs))

	return m, tea.Batch(waitForResult(m.seq, ch), m.spinner.Tick)
}

// beginRun resets display state for a new run and moves focus to cancel.
func (m *model) beginRun(label string) {
	m.seq++
	m.processing = true
	m.running = label
	m.output = ""
	m.message = ""
	m.failed = false
	m.resumeFocus = m.focus
	m.focus = len(m.buttons) - 1
	m.refreshViewport()
}

// finishRun releases the run context and restores focus.
func (m *model) finishRun() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.processing = false
	m.focus = m.resumeFocus
}

// cancelRun cancels the running command or every outstanding fan-out job.
// The run still resolves through the usual done message.
func (m model) cancelRun() {
	if !m.processing {
		return
	}
	if m.cancel != nil {
		m.cancel()
	}
	if m.group != nil {
		m.group.CancelAll()
	}
}

// recordResult appends a fan-out result to the output pane.
func (m *model) recordResult(r fanout.Result) {
	if r.Outcome.OK() {
		m.jobsOK++
	}
	line := fmt.Sprintf("%s: %s (%s)\n", r.Name, statusLabel(r.Outcome), r.Elapsed.Round(time.Millisecond))
	if !r.Outcome.OK() {
		line += indent(r.Outcome.Message()) + "\n"
	}
	m.appendOutput(line)
}

// appendOutput adds text to the output pane, trimming old lines.
func (m *model) appendOutput(s string) {
	m.output += s
	if strings.Count(m.output, "\n") > maxOutputLines {
		lines := strings.SplitAfter(m.output, "\n")
		m.output = strings.Join(lines[trimOutputLines:], "")
	}
	m.refreshViewport()
}

func (m *model) refreshViewport() {
	m.viewport.SetContent(m.output)
	m.viewport.GotoBottom()
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n  ")
}
