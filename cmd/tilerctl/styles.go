package main

import "github.com/charmbracelet/lipgloss"

var (
	// Color palette
	primaryColor   = lipgloss.Color("#7D56F4")
	secondaryColor = lipgloss.Color("#00D7FF")
	successColor   = lipgloss.Color("#04B575")
	mutedColor     = lipgloss.Color("#666666")
	borderColor    = lipgloss.Color("#383838")

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	decisionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(successColor)

	// Packing map styles
	lumaStyle   = lipgloss.NewStyle().Foreground(primaryColor)
	chromaStyle = lipgloss.NewStyle().Foreground(secondaryColor)
	freeStyle   = lipgloss.NewStyle().Foreground(mutedColor)

	mapStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)
)

// render applies style unless colors are disabled
func render(style lipgloss.Style, text string) string {
	if noColor {
		return text
	}
	return style.Render(text)
}
