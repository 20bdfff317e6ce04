package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sentinel/pkg/protocol"
	"sentinel/pkg/reconcile"
	"sentinel/pkg/watch"
)

// console is the part of a watch.Session the dashboard drives.
type console interface {
	Updates() <-chan watch.View
	Submit(ctx context.Context, req protocol.ExecuteRequest) (protocol.ExecuteResponse, error)
	Reset(ctx context.Context)
}

// viewMsg carries the newest presentation state from the session.
type viewMsg watch.View

// sessionClosedMsg is sent once the session's update channel is closed.
type sessionClosedMsg struct{}

// triggerDoneMsg reports the outcome of a manual trigger.
type triggerDoneMsg struct{ err error }

// headline is the status indicator text for each UI status.
var headline = map[reconcile.UIStatus]string{
	reconcile.Idle:       "SYSTEM MONITORING",
	reconcile.Monitoring: "AGENT ACTIVE",
	reconcile.Analyzing:  "ANALYZING INTENT...",
	reconcile.Blocked:    "INTERVENTION REQUIRED",
	reconcile.Approved:   "ACTION AUTHORIZED",
}

// busyHint is shown when the operator triggers while a cycle is in progress.
const busyHint = "cycle in progress, sending anyway"

// Model is the Bubble Tea model for the sentinel console.
type Model struct {
	ctx      context.Context
	console  console
	updates  <-chan watch.View
	request  protocol.ExecuteRequest
	operator string

	view watch.View

	styles  Styles
	theme   Theme
	spinner spinner.Model
	feed    viewport.Model

	showHelp bool
	hint     string
	width    int
	height   int
}

// newModel creates a Model showing an IDLE session until the first View arrives.
func newModel(ctx context.Context, c console, req protocol.ExecuteRequest, operator string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Points

	theme := DefaultTheme()
	sp.Style = lipgloss.NewStyle().Foreground(theme.Warning)

	return Model{
		ctx:      ctx,
		console:  c,
		updates:  c.Updates(),
		request:  req,
		operator: operator,
		view:     watch.View{State: reconcile.New()},
		styles:   NewStyles(theme),
		theme:    theme,
		spinner:  sp,
		feed:     viewport.New(0, 0),
	}
}

// waitForView blocks until the session publishes a View.
func waitForView(updates <-chan watch.View) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-updates
		if !ok {
			return sessionClosedMsg{}
		}
		return viewMsg(v)
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForView(m.updates))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeFeed()
		return m, nil

	case viewMsg:
		m.view = watch.View(msg)
		m.feed.SetContent(m.renderFeed())
		return m, waitForView(m.updates)

	case sessionClosedMsg:
		return m, tea.Quit

	case triggerDoneMsg:
		if msg.err != nil {
			m.hint = "trigger failed: " + msg.err.Error()
		} else if m.hint == busyHint {
			m.hint = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" || key == "q" {
		return m, tea.Quit
	}

	if m.showHelp {
		if key == "?" || key == "esc" {
			m.showHelp = false
		}
		return m, nil
	}

	switch key {
	case "?":
		m.showHelp = true
		return m, nil
	case "t":
		m.hint = ""
		if m.view.State.Status != reconcile.Idle {
			m.hint = busyHint
		}
		return m, m.triggerCmd()
	case "r":
		m.hint = ""
		return m, m.resetCmd()
	}

	var cmd tea.Cmd
	m.feed, cmd = m.feed.Update(msg)
	return m, cmd
}

// triggerCmd sends the configured action. It is never gated on the status.
func (m Model) triggerCmd() tea.Cmd {
	ctx, c, req := m.ctx, m.console, m.request
	return func() tea.Msg {
		_, err := c.Submit(ctx, req)
		return triggerDoneMsg{err: err}
	}
}

func (m Model) resetCmd() tea.Cmd {
	ctx, c := m.ctx, m.console
	return func() tea.Msg {
		c.Reset(ctx)
		return nil
	}
}

// chromeHeight is the number of lines around the feed viewport.
const chromeHeight = 9

func (m *Model) resizeFeed() {
	m.feed.Width = max(m.width-2, 0)
	m.feed.Height = max(m.height-chromeHeight, 3)
	m.feed.SetContent(m.renderFeed())
}

// View implements tea.Model.
func (m Model) View() string {
	if m.showHelp {
		return m.renderHelpOverlay()
	}

	sections := []string{
		m.renderHeader(),
		m.renderIndicator(),
		m.renderMetrics(),
		m.styles.SectionTitle.Render("LOG FEED"),
		m.feed.View(),
		m.renderStatusBar(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	status := m.view.State.Status
	badge := m.styles.Badge.
		Foreground(lipgloss.Color("0")).
		Background(m.theme.StatusColor(status)).
		Render(string(status))
	return lipgloss.JoinHorizontal(lipgloss.Left, m.styles.Title.Render("SENTINEL "), badge)
}

// renderIndicator renders the status headline, animated while the agent is active.
func (m Model) renderIndicator() string {
	status := m.view.State.Status
	text, ok := headline[status]
	if !ok {
		text = string(status)
	}
	line := lipgloss.NewStyle().Bold(true).Foreground(m.theme.StatusColor(status)).Render(text)
	if status == reconcile.Monitoring || status == reconcile.Analyzing {
		line = m.spinner.View() + " " + line
	}
	return line
}

// renderMetrics renders the risk score and the operator call panel.
func (m Model) renderMetrics() string {
	st := m.view.State
	var lines []string

	if st.Status != reconcile.Idle && st.RiskScore != nil {
		lines = append(lines, m.styles.SectionTitle.Render("RISK SCORE ")+
			m.styles.Score.Render(fmt.Sprintf("%d/100", *st.RiskScore)))
	}

	if st.Status == reconcile.Blocked {
		call := "OPERATOR CALL"
		if m.operator != "" {
			call += " " + m.operator
		}
		lines = append(lines, m.styles.Hint.Render(call))
		if st.Transcript != "" {
			lines = append(lines, m.styles.Transcript.Render(fmt.Sprintf("%q", st.Transcript)))
		}
	}

	return strings.Join(lines, "\n")
}

// renderFeed renders the log feed, newest line first.
func (m Model) renderFeed() string {
	lines := m.view.State.Feed.Lines()
	if len(lines) == 0 {
		return m.styles.Muted.Render("No activity yet. Press t to trigger the configured action.")
	}

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		if i == 0 {
			b.WriteString(m.styles.FeedHead.Render(line))
			continue
		}
		b.WriteString(m.styles.FeedLine.Render(line))
	}
	return b.String()
}

// renderStatusBar renders backend connectivity, reset mode and the last hint.
func (m Model) renderStatusBar() string {
	var backend string
	switch {
	case m.view.Connected():
		backend = m.styles.Online.Render("backend: online")
	case m.view.LastPoll.IsZero():
		backend = m.styles.Muted.Render("backend: connecting")
	default:
		backend = m.styles.Offline.Render("backend: offline")
	}

	parts := []string{
		backend,
		m.styles.Muted.Render(" | reset: " + string(m.view.Policy.Mode)),
	}
	if id := m.view.SessionID; id != "" {
		parts = append(parts, m.styles.Muted.Render(" | session: "+shortID(id)))
	}
	if m.hint != "" {
		parts = append(parts, " | ", m.styles.Hint.Render(m.hint))
	}
	parts = append(parts, m.styles.Muted.Render(" | ? help"))

	return lipgloss.JoinHorizontal(lipgloss.Left, parts...)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
