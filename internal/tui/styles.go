package tui

import "github.com/charmbracelet/lipgloss"

// Color palette, adapted from the teacher's pkg/tui/styles.go minimal theme.
var (
	accentColor  = lipgloss.Color("#7aa2f7")
	mutedColor   = lipgloss.Color("#545454")
	successColor = lipgloss.Color("#73daca")
	errorColor   = lipgloss.Color("#f7768e")
	textColor    = lipgloss.Color("#e0e0e0")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true).
			Padding(0, 1)

	summaryStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Padding(0, 1)

	passStyle = lipgloss.NewStyle().Foreground(successColor)
	failStyle = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	skipStyle = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(1, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 1)
)
