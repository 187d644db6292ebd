package tui

import "github.com/charmbracelet/lipgloss"

// styles contains all lipgloss styles used by the TUI.
var styles = struct {
	// Layout styles
	Container lipgloss.Style
	Divider   lipgloss.Style
	Title     lipgloss.Style

	// Buttons
	Button         lipgloss.Style
	ButtonFocused  lipgloss.Style
	ButtonDisabled lipgloss.Style

	// Status line
	Spinner lipgloss.Style
	Running lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style

	// Footer style
	Footer lipgloss.Style
}{
	Container: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")),

	Divider: lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")),

	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("212")),

	Button: lipgloss.NewStyle().
		Padding(0, 1).
		Foreground(lipgloss.Color("252")).
		Background(lipgloss.Color("237")),

	ButtonFocused: lipgloss.NewStyle().
		Padding(0, 1).
		Bold(true).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("63")), // Bright blue for focused

	ButtonDisabled: lipgloss.NewStyle().
		Padding(0, 1).
		Foreground(lipgloss.Color("240")).
		Background(lipgloss.Color("235")),

	Spinner: lipgloss.NewStyle().
		Foreground(lipgloss.Color("82")),

	Running: lipgloss.NewStyle().
		Foreground(lipgloss.Color("220")),

	Success: lipgloss.NewStyle().
		Foreground(lipgloss.Color("114")),

	Error: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")),

	Footer: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),
}
