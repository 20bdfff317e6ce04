package reconcile

import (
	"fmt"

	"sentinel/pkg/protocol"
)

// Trigger says when a table entry fires.
type Trigger int

const (
	// Edge entries fire only on the tick where the UI status or the backend
	// status actually changes.
	Edge Trigger = iota
	// Level entries fire on every tick the condition holds; the feed's
	// duplicate suppression keeps them from stacking.
	Level
)

func (t Trigger) String() string {
	if t == Level {
		return "level"
	}
	return "edge"
}

// Operator-facing log lines.
const (
	LineDetected   = "INCOMING AGENT REQUEST DETECTED"
	LineCall       = "Call initiated via Telnyx..."
	LineQnA        = "Q&A MODE: administrator requested details"
	LineListening  = "Listening for voice input..."
	LineHardBlock  = "HARD BLOCK: action declined by administrator"
	LineApproved   = "VOICE AUTH VERIFIED: action approved"
	LineAnalyzing  = "Risk engine analyzing intent..."
	LineMonitoring = "Agent activity detected"
	LineInit       = "Initializing Sentinel Platform..."

	// TranscriptGranted replaces the transcript once an action is approved.
	TranscriptGranted = "ACCESS GRANTED"
)

// VerdictLine formats the risk verdict shown when an action is blocked.
func VerdictLine(score int) string {
	return fmt.Sprintf("AI Verdict: High Risk (%d/100)", score)
}

// ReasonLine formats the analysis shown when an action is blocked.
func ReasonLine(analysis string) string { return "Reason: " + analysis }

// PolicyLine formats the analysis shown when an action is declined.
func PolicyLine(analysis string) string { return "Policy: " + analysis }

// DigitLine formats a keypad press.
func DigitLine(digit string) string { return "digit pressed: " + digit }

// QuestionLine formats a voice question transcript.
func QuestionLine(q string) string { return "Admin asked: " + q }

// AnswerLine formats a voice answer transcript.
func AnswerLine(a string) string { return "Sentinel answered: " + a }

// transitionKey indexes the table.
type transitionKey struct {
	from UIStatus
	on   protocol.Status
}

// transition is one declared row of the state machine.
type transition struct {
	to      UIStatus
	trigger Trigger

	// lines builds the burst to push, oldest first. st already carries the
	// field rules of the current tick (risk score, transcript).
	lines func(st State, snap protocol.Snapshot) []string

	// transcript, when set, overrides the transcript after the move.
	transcript string

	// terminal transitions arm the reset timer under an auto-reset policy;
	// the others cancel a pending one.
	terminal bool
}

// transitions is the state machine. A missing key means the snapshot's
// status does not move the UI from that state.
var transitions = buildTransitions()

func buildTransitions() map[transitionKey]transition {
	t := make(map[transitionKey]transition)
	add := func(on protocol.Status, tr transition, from ...UIStatus) {
		for _, f := range from {
			t[transitionKey{from: f, on: on}] = tr
		}
	}

	add(protocol.StatusMonitoring, transition{
		to: Monitoring, trigger: Edge, lines: constLines(LineMonitoring),
	}, Idle)

	add(protocol.StatusAnalyzing, transition{
		to: Analyzing, trigger: Edge, lines: constLines(LineAnalyzing),
	}, Idle, Monitoring, Blocked, Approved)

	add(protocol.StatusBlockedAwaitingAuth, transition{
		to: Blocked, trigger: Edge, lines: blockedLines,
	}, Idle, Monitoring, Analyzing, Approved)

	add(protocol.StatusQnA, transition{
		to: Blocked, trigger: Level, lines: constLines(LineQnA, LineListening),
	}, Idle, Monitoring, Analyzing, Blocked, Approved)

	add(protocol.StatusDeclined, transition{
		to: Blocked, trigger: Edge, lines: declinedLines, terminal: true,
	}, Monitoring, Analyzing, Blocked, Approved)

	add(protocol.StatusApproved, transition{
		to: Approved, trigger: Edge, lines: constLines(LineApproved),
		transcript: TranscriptGranted, terminal: true,
	}, Monitoring, Analyzing, Blocked)

	return t
}

// lookup returns the table entry for (from, on).
func lookup(from UIStatus, on protocol.Status) (transition, bool) {
	tr, ok := transitions[transitionKey{from: from, on: on}]
	return tr, ok
}

// fires reports whether tr applies on this tick.
func (tr transition) fires(st State, on protocol.Status) bool {
	if tr.trigger == Level {
		return true
	}
	return tr.to != st.Status || on != st.Remote
}

func constLines(lines ...string) func(State, protocol.Snapshot) []string {
	return func(State, protocol.Snapshot) []string { return lines }
}

func blockedLines(st State, snap protocol.Snapshot) []string {
	lines := []string{LineDetected}
	if st.RiskScore != nil {
		lines = append(lines, VerdictLine(*st.RiskScore))
	}
	if a := snap.AnalysisText(); a != "" {
		lines = append(lines, ReasonLine(a))
	}
	return append(lines, LineCall)
}

func declinedLines(_ State, snap protocol.Snapshot) []string {
	lines := []string{LineHardBlock}
	if a := snap.AnalysisText(); a != "" {
		lines = append(lines, PolicyLine(a))
	}
	return lines
}
