package reconcile

import "sentinel/pkg/protocol"

// UIStatus is the coarse status that drives the console's status indicator.
type UIStatus string

// UI statuses. IDLE is initial; there is no terminal status because the
// machine is reset (by timer or by a new cycle) rather than finished.
const (
	Idle       UIStatus = "IDLE"
	Monitoring UIStatus = "MONITORING"
	Analyzing  UIStatus = "ANALYZING"
	Blocked    UIStatus = "BLOCKED"
	Approved   UIStatus = "APPROVED"
)

// State is the console's local state. Only this package changes Status.
type State struct {
	Status     UIStatus
	RiskScore  *int
	Transcript string
	Feed       Feed

	// Last values that produced a log line; used for deduplication only.
	SeenDigit    *string
	SeenQuestion *string
	SeenAnswer   *string

	// Remote is the backend status of the last applied snapshot. Edge-triggered
	// rules compare against it.
	Remote protocol.Status

	// ResetArmed is true while an auto-reset timer requested by this state is pending.
	ResetArmed bool

	last    fingerprint
	residue residue
}

// New returns the state a session starts with: IDLE and an empty feed.
func New() State {
	return State{Status: Idle}
}

// fingerprint identifies the decision cycle a snapshot belongs to.
type fingerprint struct {
	status   protocol.Status
	score    int
	hasScore bool
	analysis string
}

func fingerprintOf(snap protocol.Snapshot) fingerprint {
	fp := fingerprint{status: snap.Status, analysis: snap.AnalysisText()}
	if snap.RiskScore != nil {
		fp.score, fp.hasScore = *snap.RiskScore, true
	}
	return fp
}

// residue records backend data left over from a cycle this session did not
// witness (seen at startup, or still reported after an auto-reset), so that it
// is not replayed into the feed as if it were new.
type residue struct {
	// active is set while snapshots matching cycle only feed the digit and
	// voice rules.
	active bool
	cycle  fingerprint

	digit    *string
	question *string
	answer   *string
}

// stale reports whether v is still the leftover value recorded in *slot. A
// different value means the backend moved on, so the slot is cleared.
func stale(slot **string, v *string) bool {
	if *slot == nil {
		return false
	}
	if **slot == *v {
		return true
	}
	*slot = nil
	return false
}

func clone(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}
