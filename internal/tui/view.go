package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/npratt/shellrun/internal/runner"
)

const (
	minWidth  = 40
	minHeight = 12
)

// View implements tea.Model. This renders the full TUI display.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.width < minWidth || m.height < minHeight {
		return m.renderTooSmall()
	}

	sections := []string{
		styles.Title.Render("shellrun"),
		m.renderButtons(),
		m.renderStatus(),
		m.renderDivider(),
		m.viewport.View(),
		m.renderDivider(),
		m.renderFooter(),
	}

	rendered := styles.Container.
		Width(safeWidth(m.width - 2)).
		Render(strings.Join(sections, "\n"))

	return lipgloss.Place(m.width, m.height, lipgloss.Left, lipgloss.Top, rendered)
}

// renderButtons renders the button row with focus and disabled states.
func (m model) renderButtons() string {
	rendered := make([]string, 0, len(m.buttons))
	for i, b := range m.buttons {
		style := styles.Button
		switch {
		case !m.enabled(i):
			style = styles.ButtonDisabled
		case i == m.focus:
			style = styles.ButtonFocused
		}
		if i == m.focus && !m.enabled(i) {
			style = style.Underline(true)
		}
		rendered = append(rendered, style.Render(b.Label))
	}
	return lipgloss.NewStyle().Width(safeWidth(m.width - 4)).Render(strings.Join(rendered, " "))
}

// renderStatus renders the spinner while running, else the last result.
func (m model) renderStatus() string {
	switch {
	case m.processing:
		return m.spinner.View() + " " + styles.Running.Render("running "+m.running)
	case m.message == "":
		return styles.Footer.Render("ready")
	case m.failed:
		return styles.Error.Render(m.message)
	default:
		return styles.Success.Render(m.message)
	}
}

func (m model) renderDivider() string {
	return styles.Divider.Render(strings.Repeat("─", safeWidth(m.width-4)))
}

func (m model) renderFooter() string {
	return styles.Footer.Render("←/→ move  enter run  c cancel  ↑/↓ scroll  q quit")
}

func (m model) renderTooSmall() string {
	return "Terminal too small. Resize to at least 40x12."
}

// statusLabel is the short word shown for an outcome.
func statusLabel(o runner.Outcome) string {
	switch o.Status {
	case runner.StatusSucceeded:
		return "succeeded"
	case runner.StatusFailed:
		return "failed"
	case runner.StatusCanceled:
		return "canceled"
	default:
		return "could not start"
	}
}

// safeWidth clamps a computed width to at least 1.
func safeWidth(w int) int {
	if w < 1 {
		return 1
	}
	return w
}
