// Package watch implements the live gateway console TUI behind
// `porter watch`. It tails the admin API's SSE feed and health probe.
package watch

import "github.com/charmbracelet/lipgloss"

// Theme centralizes all styling for the watch TUI.
type Theme struct {
	SevInfo     lipgloss.Style
	SevWarning  lipgloss.Style
	SevCritical lipgloss.Style

	ConnUp   lipgloss.Style
	ConnDown lipgloss.Style

	Border lipgloss.Style
	Title  lipgloss.Style
	Dim    lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		SevInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		SevWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
		SevCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),

		ConnUp:   lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		ConnDown: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Dim: lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
}

func (t Theme) severity(sev string) lipgloss.Style {
	switch sev {
	case "critical", "error":
		return t.SevCritical
	case "warning":
		return t.SevWarning
	default:
		return t.SevInfo
	}
}
