package protocol

import (
	"encoding/json"
	"fmt"
)

// Status is the workflow phase reported by the backend risk engine.
type Status string

// Backend workflow phases.
const (
	StatusIdle                Status = "IDLE"
	StatusMonitoring          Status = "MONITORING"
	StatusAnalyzing           Status = "ANALYZING"
	StatusBlockedAwaitingAuth Status = "BLOCKED_AWAITING_AUTH"
	StatusQnA                 Status = "QNA_MODE"
	StatusApproved            Status = "APPROVED"
	StatusDeclined            Status = "DECLINED"
)

// Known reports whether s is one of the statuses the backend is documented to send.
func (s Status) Known() bool {
	switch s {
	case StatusIdle, StatusMonitoring, StatusAnalyzing, StatusBlockedAwaitingAuth,
		StatusQnA, StatusApproved, StatusDeclined:
		return true
	}
	return false
}

// Terminal reports whether s ends a decision cycle.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusDeclined
}

// Snapshot is one poll response from the status endpoint.
//
// Every field except Status is optional. A missing key and an explicit JSON
// null both decode to nil, which the reconciler treats as "field absent".
type Snapshot struct {
	Status       Status          `json:"status"`
	RiskScore    *int            `json:"risk_score,omitempty"`
	Analysis     *string         `json:"analysis,omitempty"`
	LastDigit    *string         `json:"last_digit,omitempty"`
	LastQuestion *string         `json:"last_question,omitempty"`
	LastAnswer   *string         `json:"last_answer,omitempty"`
	LastAction   *string         `json:"last_action,omitempty"`  // display only
	LastPayload  json.RawMessage `json:"last_payload,omitempty"` // display only
}

// AnalysisText returns the analysis or "" when absent.
func (s Snapshot) AnalysisText() string {
	if s.Analysis == nil {
		return ""
	}
	return *s.Analysis
}

// ParseSnapshot decodes a status endpoint body.
func ParseSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if snap.RiskScore != nil && (*snap.RiskScore < 0 || *snap.RiskScore > 100) {
		return Snapshot{}, fmt.Errorf("%w: risk_score %d out of range", ErrMalformedSnapshot, *snap.RiskScore)
	}
	return snap, nil
}

// ExecuteRequest is the body of a command submitted to the execute endpoint.
type ExecuteRequest struct {
	AgentID   string         `json:"agent_id"`
	Action    string         `json:"action"`
	Payload   map[string]any `json:"payload"`
	Reasoning string         `json:"reasoning"`
}

// Validate checks the fields the backend requires.
func (r ExecuteRequest) Validate() error {
	if r.AgentID == "" {
		return fmt.Errorf("execute request: agent_id is required")
	}
	if r.Action == "" {
		return fmt.Errorf("execute request: action is required")
	}
	return nil
}

// ExecuteResponse is the backend's reply to an execute call. It is decoded
// best-effort for the CLI; the console never depends on it.
type ExecuteResponse struct {
	Status    string  `json:"status,omitempty"`
	RiskScore *int    `json:"risk_score,omitempty"`
	Analysis  *string `json:"analysis,omitempty"`
}

// Int returns a pointer to v. Used for building snapshots.
func Int(v int) *int { return &v }

// String returns a pointer to v. Used for building snapshots.
func String(v string) *string { return &v }
