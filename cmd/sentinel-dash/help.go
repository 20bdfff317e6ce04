package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// helpBinding represents a key binding with its description.
type helpBinding struct {
	key  string
	desc string
}

// getHelpBindings returns the console key bindings.
func getHelpBindings() []helpBinding {
	return []helpBinding{
		{"t", "Trigger the configured action"},
		{"r", "Reset the session to IDLE"},
		{"j/k or ↑/↓", "Scroll the log feed"},
		{"pgup/pgdown", "Page the log feed"},
		{"?", "Toggle help"},
		{"q or ctrl+c", "Quit"},
	}
}

// renderHelpOverlay renders the help overlay panel.
func (m Model) renderHelpOverlay() string {
	title := m.styles.HelpTitle.Render("Help - Sentinel Console")
	content := m.renderHelpContent()
	footer := m.styles.HelpFooter.Render("Press ? or Esc to close")

	return lipgloss.JoinVertical(lipgloss.Left, title, content, footer)
}

// renderHelpContent renders the key bindings list.
func (m Model) renderHelpContent() string {
	var b strings.Builder
	keyStyle := m.styles.HelpKey.Width(16)

	for _, binding := range getHelpBindings() {
		key := keyStyle.Render(binding.key)
		desc := m.styles.HelpDesc.Render(binding.desc)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Left, key, desc))
		b.WriteString("\n")
	}

	return m.styles.HelpContent.Render(strings.TrimSuffix(b.String(), "\n"))
}
