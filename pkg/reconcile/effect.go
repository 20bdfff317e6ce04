package reconcile

import (
	"time"

	"sentinel/pkg/protocol"
)

// Effect is a side effect requested by the reconciler. The session loop
// executes effects in order after installing the new State.
type Effect interface {
	effect()
}

// LogEffect reports a line that was appended to the feed.
type LogEffect struct {
	Line string
}

// TransitionEffect reports a UIStatus change and the backend status that caused it.
// Cause is empty for transitions driven by a command or a reset.
type TransitionEffect struct {
	From  UIStatus
	To    UIStatus
	Cause protocol.Status
}

// ArmReset asks for the single-shot reset timer to be (re)started.
type ArmReset struct {
	After time.Duration
}

// CancelReset asks for the pending reset timer, if any, to be stopped.
type CancelReset struct{}

func (LogEffect) effect()        {}
func (TransitionEffect) effect() {}
func (ArmReset) effect()         {}
func (CancelReset) effect()      {}
