package reconcile

import (
	"fmt"

	"sentinel/pkg/protocol"
)

// SubmitLine formats the feed line for a submitted action.
func SubmitLine(req protocol.ExecuteRequest) string {
	return fmt.Sprintf("Submitting %s for agent %s", req.Action, req.AgentID)
}

// FailureLine formats the feed line for an execute call that failed.
func FailureLine(err error) string {
	return "Execute request failed: " + err.Error()
}

// Submit records that the operator issued a new action. It is allowed from
// every state; the state machine imposes no gate on commands.
//
// Snapshots fetched before the submit are the caller's to discard; every
// snapshot applied afterwards is reconciled normally, even one identical to
// the last.
func Submit(st State, req protocol.ExecuteRequest) (State, []Effect) {
	var effects []Effect

	st.residue.active = false

	if st.ResetArmed {
		st.ResetArmed = false
		effects = append(effects, CancelReset{})
	}

	var appended []string
	st.Feed, appended = st.Feed.PushBurst(LineInit, SubmitLine(req))
	for _, line := range appended {
		effects = append(effects, LogEffect{Line: line})
	}

	if from := st.Status; from != Monitoring {
		st.Status = Monitoring
		effects = append(effects, TransitionEffect{From: from, To: Monitoring})
	}
	return st, effects
}

// CommandFailed notes a rejected execute call in the feed. The status is left
// alone: the backend never saw the action, so whatever it reports next wins.
func CommandFailed(st State, err error) (State, []Effect) {
	line := FailureLine(err)
	var ok bool
	if st.Feed, ok = st.Feed.Push(line); ok {
		return st, []Effect{LogEffect{Line: line}}
	}
	return st, nil
}

// Reset clears the session back to IDLE. Risk score, transcript, feed and
// the seen* fields are all dropped at once.
//
// The last backend cycle is remembered as residue so that the snapshot still
// being served after the reset is not replayed into the fresh feed.
func Reset(st State) (State, []Effect) {
	next := New()
	next.last = st.last
	next.residue = residue{
		active:   true,
		cycle:    st.last,
		digit:    st.SeenDigit,
		question: st.SeenQuestion,
		answer:   st.SeenAnswer,
	}

	if st.Status == Idle {
		return next, nil
	}
	return next, []Effect{TransitionEffect{From: st.Status, To: Idle}}
}
