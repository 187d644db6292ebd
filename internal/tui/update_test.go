package tui

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/shellrun/internal/buildtarget"
	"github.com/npratt/shellrun/internal/fanout"
	"github.com/npratt/shellrun/internal/runner"
	"github.com/npratt/shellrun/internal/testutil"
)

var sampleCommands = []Command{
	{Name: "echo", CommandLine: "echo ~/Desktop"},
	{Name: "ping", CommandLine: "ping example.com"},
	{Name: "ls", CommandLine: "ls -l ~/Desktop"},
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestModel(exec fanout.Executor, targets ...buildtarget.Target) model {
	return newModel(context.Background(), exec, sampleCommands, targets, false, discardLogger())
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// collectMsgs runs cmd and any batched commands and returns their messages.
func collectMsgs(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var msgs []tea.Msg
		for _, c := range batch {
			msgs = append(msgs, collectMsgs(c)...)
		}
		return msgs
	}
	return []tea.Msg{msg}
}

func TestNewModel_Buttons(t *testing.T) {
	tests := []struct {
		name    string
		targets []buildtarget.Target
		want    []string
	}{
		{
			name: "commands only",
			want: []string{"echo", "ping", "ls", "cancel"},
		},
		{
			name:    "with targets",
			targets: testutil.SampleTargets(),
			want:    []string{"echo", "ping", "ls", "archive", "export", "cancel"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(testutil.NewMockRunner(), tt.targets...)
			var got []string
			for _, b := range m.buttons {
				got = append(got, b.Label)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("buttons = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandleKey_Quit(t *testing.T) {
	for _, k := range []string{"q", "ctrl+c"} {
		t.Run(k, func(t *testing.T) {
			m := newTestModel(testutil.NewMockRunner())
			_, cmd := m.handleKey(key(k))
			if cmd == nil {
				t.Fatal("should return tea.Quit command")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Error("command should produce tea.QuitMsg")
			}
		})
	}
}

func TestHandleKey_FocusWraps(t *testing.T) {
	m := newTestModel(testutil.NewMockRunner())

	newM, _ := m.handleKey(key("left"))
	m = newM.(model)
	if m.focus != len(m.buttons)-1 {
		t.Errorf("focus after left from 0 = %d, want %d", m.focus, len(m.buttons)-1)
	}

	newM, _ = m.handleKey(key("tab"))
	m = newM.(model)
	if m.focus != 0 {
		t.Errorf("focus after tab from last = %d, want 0", m.focus)
	}

	newM, _ = m.handleKey(key("right"))
	m = newM.(model)
	if m.focus != 1 {
		t.Errorf("focus after right = %d, want 1", m.focus)
	}
}

func TestPress_RunsCommandAndResolves(t *testing.T) {
	mock := testutil.NewMockRunner()
	mock.SetResponse("echo ~/Desktop", "/Users/dev/Desktop\n")
	m := newTestModel(mock)

	newM, cmd := m.handleKey(key("enter"))
	m = newM.(model)

	if !m.processing {
		t.Fatal("model should be processing after pressing a command")
	}
	if m.focus != len(m.buttons)-1 {
		t.Errorf("focus = %d, want cancel button", m.focus)
	}
	for i, b := range m.buttons {
		wantEnabled := b.Kind == buttonCancel
		if m.enabled(i) != wantEnabled {
			t.Errorf("button %s enabled = %v while processing", b.Label, m.enabled(i))
		}
	}

	var done *runDoneMsg
	for _, msg := range collectMsgs(cmd) {
		if d, ok := msg.(runDoneMsg); ok {
			done = &d
		}
	}
	if done == nil {
		t.Fatal("no runDoneMsg produced")
	}

	newM, _ = m.Update(*done)
	m = newM.(model)

	if m.processing {
		t.Error("model should not be processing after resolution")
	}
	if m.output != "/Users/dev/Desktop\n" {
		t.Errorf("output = %q", m.output)
	}
	if m.failed || !strings.Contains(m.message, "succeeded") {
		t.Errorf("message = %q, failed = %v", m.message, m.failed)
	}
	if m.focus != 0 {
		t.Errorf("focus = %d, want restored to 0", m.focus)
	}
	testutil.AssertCalled(t, mock, "echo ~/Desktop")
}

func TestPress_DisabledWhileProcessing(t *testing.T) {
	mock := testutil.NewMockRunner()
	m := newTestModel(mock)
	m.processing = true

	newM, cmd := m.press(0)
	if cmd != nil {
		t.Error("pressing a disabled button should not start anything")
	}
	if len(mock.GetCalls()) != 0 {
		t.Error("no command should run")
	}
	_ = newM
}

func TestPress_CancelDisabledWhenIdle(t *testing.T) {
	m := newTestModel(testutil.NewMockRunner())
	newM, cmd := m.press(len(m.buttons) - 1)
	if cmd != nil || newM.(model).processing {
		t.Error("cancel should do nothing when idle")
	}
}

func TestUpdate_FailureShowsMessage(t *testing.T) {
	m := newTestModel(testutil.NewMockRunner())
	m.seq = 3
	m.processing = true
	m.running = "ls -l ~/Desktop"

	outcome := runner.OutcomeOf("", &runner.ExitError{Code: 1, Output: "ls: No such file or directory\n"})
	newM, _ := m.Update(runDoneMsg{seq: 3, outcome: outcome})
	m = newM.(model)

	if !m.failed {
		t.Error("failed should be set")
	}
	if !strings.Contains(m.output, "exit status: 1") || !strings.Contains(m.output, "No such file") {
		t.Errorf("output = %q", m.output)
	}
}

func TestUpdate_IgnoresStaleMessages(t *testing.T) {
	m := newTestModel(testutil.NewMockRunner())
	m.seq = 2
	m.processing = true
	m.output = "current\n"

	newM, _ := m.Update(outputMsg{seq: 1, chunk: "stale\n"})
	m = newM.(model)
	if m.output != "current\n" {
		t.Errorf("stale chunk appended: %q", m.output)
	}

	newM, _ = m.Update(runDoneMsg{seq: 1, outcome: runner.OutcomeOf("old", nil)})
	m = newM.(model)
	if !m.processing {
		t.Error("stale done message should not end the current run")
	}

	newM, _ = m.Update(outputMsg{seq: 2, chunk: "more\n"})
	m = newM.(model)
	if m.output != "current\nmore\n" {
		t.Errorf("output = %q", m.output)
	}
}

func TestUpdate_FanOutSummary(t *testing.T) {
	m := newTestModel(testutil.NewMockRunner(), testutil.SampleTargets()...)
	m.seq = 1
	m.processing = true
	m.running = "archive"
	m.jobs = 2

	ch := make(chan fanout.Result)
	newM, _ := m.Update(fanoutResultMsg{seq: 1, ch: ch, result: fanout.Result{
		Name:    "app",
		Outcome: runner.OutcomeOf(testutil.SampleArchiveOutput, nil),
	}})
	m = newM.(model)
	newM, _ = m.Update(fanoutResultMsg{seq: 1, ch: ch, result: fanout.Result{
		Name:    "helper",
		Outcome: runner.OutcomeOf("", &runner.ExitError{Code: 65, Output: testutil.SampleArchiveFailure}),
	}})
	m = newM.(model)
	newM, _ = m.Update(fanoutDoneMsg{seq: 1})
	m = newM.(model)

	if m.processing {
		t.Error("should not be processing after fan-out done")
	}
	if m.message != "archive: 1 of 2 targets succeeded" {
		t.Errorf("message = %q", m.message)
	}
	if !m.failed {
		t.Error("partial success should be shown as failure")
	}
	for _, want := range []string{"app: succeeded", "helper: failed", "exit status: 65"} {
		if !strings.Contains(m.output, want) {
			t.Errorf("output missing %q:\n%s", want, m.output)
		}
	}
}

func TestOutputWriter_DropsWhenFull(t *testing.T) {
	ch := make(chan outputMsg, 1)
	w := outputWriter{seq: 1, ch: ch}

	for i := 0; i < 3; i++ {
		n, err := w.Write([]byte("x"))
		if n != 1 || err != nil {
			t.Fatalf("Write() = %d, %v", n, err)
		}
	}
	if len(ch) != 1 {
		t.Errorf("queued = %d, want 1", len(ch))
	}
}

func TestAppendOutput_Trims(t *testing.T) {
	m := newTestModel(testutil.NewMockRunner())
	for i := 0; i <= maxOutputLines; i++ {
		m.appendOutput("line\n")
	}
	if got := strings.Count(m.output, "\n"); got != maxOutputLines+1-trimOutputLines {
		t.Errorf("lines = %d, want %d", got, maxOutputLines+1-trimOutputLines)
	}
}

func TestView_States(t *testing.T) {
	m := newTestModel(testutil.NewMockRunner())
	if got := m.View(); got != "Loading..." {
		t.Errorf("View() before size = %q", got)
	}

	newM, _ := m.Update(tea.WindowSizeMsg{Width: 20, Height: 5})
	if !strings.Contains(newM.View(), "too small") {
		t.Error("small terminal should show resize hint")
	}

	newM, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	view := newM.View()
	for _, want := range []string{"shellrun", "echo", "ping", "cancel", "ready"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestCancelRun_CancelsContext(t *testing.T) {
	mock := testutil.NewMockRunner()
	mock.SetBlocking("ping example.com", "PING example.com\n")
	m := newTestModel(mock)
	m.focus = 1

	newM, cmd := m.handleKey(key("enter"))
	m = newM.(model)

	msgs := make(chan []tea.Msg, 1)
	go func() { msgs <- collectMsgs(cmd) }()

	select {
	case <-mock.Started():
	case <-time.After(2 * time.Second):
		t.Fatal("command never started")
	}

	newM, _ = m.handleKey(key("c"))
	m = newM.(model)

	select {
	case got := <-msgs:
		var done *runDoneMsg
		for _, msg := range got {
			if d, ok := msg.(runDoneMsg); ok {
				done = &d
			}
		}
		if done == nil || done.outcome.Status != runner.StatusCanceled {
			t.Fatalf("done = %+v, want canceled", done)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not resolve the run")
	}
}
