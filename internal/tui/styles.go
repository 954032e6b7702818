// Package tui holds the terminal views used by the leadsynapse CLI.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // timestamps, metadata

	agentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("13")) // magenta

	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")) // blue

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	divider = dimStyle.Render(strings.Repeat("━", 60))
)

// statusStyle colors a run status.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "complete":
		return successStyle
	case "failed":
		return errorStyle
	default:
		return warnStyle
	}
}
