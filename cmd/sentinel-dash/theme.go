package main

import (
	"github.com/charmbracelet/lipgloss"

	"sentinel/pkg/reconcile"
)

// Theme defines the colors of the sentinel console.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Muted     lipgloss.Color
}

// DefaultTheme returns the default theme for sentinel-dash.
func DefaultTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("12"),  // Blue
		Secondary: lipgloss.Color("14"),  // Cyan
		Success:   lipgloss.Color("10"),  // Green
		Warning:   lipgloss.Color("11"),  // Yellow
		Error:     lipgloss.Color("9"),   // Red
		Muted:     lipgloss.Color("240"), // Gray
	}
}

// StatusColor returns the indicator color for a UI status.
func (t Theme) StatusColor(s reconcile.UIStatus) lipgloss.Color {
	switch s {
	case reconcile.Monitoring, reconcile.Approved:
		return t.Success
	case reconcile.Analyzing:
		return t.Warning
	case reconcile.Blocked:
		return t.Error
	default:
		return t.Primary
	}
}

// Styles holds the lipgloss styles derived from a Theme.
type Styles struct {
	Title        lipgloss.Style
	Badge        lipgloss.Style
	SectionTitle lipgloss.Style
	Score        lipgloss.Style
	Transcript   lipgloss.Style
	FeedHead     lipgloss.Style
	FeedLine     lipgloss.Style
	Hint         lipgloss.Style
	Online       lipgloss.Style
	Offline      lipgloss.Style
	Muted        lipgloss.Style

	HelpTitle   lipgloss.Style
	HelpKey     lipgloss.Style
	HelpDesc    lipgloss.Style
	HelpContent lipgloss.Style
	HelpFooter  lipgloss.Style
}

// NewStyles builds the dashboard styles for t.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:        lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Badge:        lipgloss.NewStyle().Bold(true).Padding(0, 1),
		SectionTitle: lipgloss.NewStyle().Bold(true).Foreground(t.Muted),
		Score:        lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		Transcript:   lipgloss.NewStyle().Italic(true).Foreground(t.Secondary),
		FeedHead:     lipgloss.NewStyle().Foreground(t.Primary),
		FeedLine:     lipgloss.NewStyle().Foreground(t.Muted),
		Hint:         lipgloss.NewStyle().Foreground(t.Warning),
		Online:       lipgloss.NewStyle().Foreground(t.Success),
		Offline:      lipgloss.NewStyle().Foreground(t.Error),
		Muted:        lipgloss.NewStyle().Foreground(t.Muted),

		HelpTitle: lipgloss.NewStyle().Bold(true).Foreground(t.Primary).MarginBottom(1),
		HelpKey:   lipgloss.NewStyle().Foreground(t.Secondary),
		HelpDesc:  lipgloss.NewStyle(),
		HelpContent: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(0, 1),
		HelpFooter: lipgloss.NewStyle().Foreground(t.Muted).MarginTop(1),
	}
}
