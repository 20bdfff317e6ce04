package watch

import (
	"context"
	"fmt"
	"time"

	"sentinel/pkg/protocol"
	"sentinel/pkg/reconcile"
)

// message is anything the Run goroutine applies.
type message interface{ message() }

type fetchResult struct {
	seq  uint64
	snap protocol.Snapshot
	err  error
}

type submitMsg struct{ req protocol.ExecuteRequest }

type commandFailedMsg struct{ err error }

type resetFiredMsg struct{ gen uint64 }

type resetMsg struct{}

type policyMsg struct{ policy reconcile.Policy }

func (fetchResult) message()      {}
func (submitMsg) message()        {}
func (commandFailedMsg) message() {}
func (resetFiredMsg) message()    {}
func (resetMsg) message()         {}
func (policyMsg) message()        {}

func (s *Session) handle(ctx context.Context, m message) {
	switch m := m.(type) {
	case fetchResult:
		s.applyFetch(ctx, m)

	case submitMsg:
		s.logger.Info("action submitted", "agent_id", m.req.AgentID, "action", m.req.Action, "status", s.state.Status)
		// Fetches already in flight describe the cycle before this action.
		s.fence = s.seq
		next, effects := reconcile.Submit(s.state, m.req)
		s.apply(ctx, next, effects)

	case commandFailedMsg:
		s.logger.Warn("execute failed", "error", m.err)
		next, effects := reconcile.CommandFailed(s.state, m.err)
		s.apply(ctx, next, effects)

	case resetFiredMsg:
		if m.gen != s.gen || !s.state.ResetArmed {
			s.logger.Debug("ignoring superseded reset timer", "gen", m.gen, "current", s.gen)
			return
		}
		s.timer = nil
		s.reset(ctx, "auto-reset")

	case resetMsg:
		s.stopTimer()
		s.reset(ctx, "manual reset")

	case policyMsg:
		s.logger.Info("reset policy changed", "mode", m.policy.Mode, "delay", m.policy.Delay)
		if m.policy.Mode != reconcile.ModeAutoReset && s.state.ResetArmed {
			s.stopTimer()
			s.state.ResetArmed = false
		}
		s.policy = m.policy
		s.publish()
	}
}

func (s *Session) applyFetch(ctx context.Context, m fetchResult) {
	s.inst.Poll(ctx, m.err)
	if m.seq <= s.applied {
		s.inst.Stale(ctx)
		s.logger.Debug("dropping stale fetch result", "seq", m.seq, "applied", s.applied)
		return
	}
	if m.seq <= s.fence {
		s.inst.Stale(ctx)
		s.logger.Debug("dropping fetch issued before submit", "seq", m.seq, "fence", s.fence)
		return
	}
	s.applied = m.seq
	s.lastPoll = time.Now()

	if m.err != nil {
		// Polling is best effort; the next tick retries at the same cadence.
		s.logger.Debug("poll failed", "seq", m.seq, "error", m.err)
		s.pollErr = m.err
		s.publish()
		return
	}
	s.pollErr = nil
	if !m.snap.Status.Known() {
		s.logger.Debug("unknown backend status", "status", m.snap.Status)
	}

	next, effects := reconcile.Reconcile(s.state, m.snap, s.policy)
	s.apply(ctx, next, effects)
}

func (s *Session) reset(ctx context.Context, cause string) {
	next, effects := reconcile.Reset(s.state)
	s.logger.Info("session reset", "cause", cause, "from", s.state.Status)
	s.state = next
	s.record(ctx, protocol.EntryReset, cause)
	s.apply(ctx, next, effects)
}

// apply installs next and carries out its effects in order.
func (s *Session) apply(ctx context.Context, next reconcile.State, effects []reconcile.Effect) {
	s.state = next
	for _, e := range effects {
		switch e := e.(type) {
		case reconcile.LogEffect:
			s.inst.LogLine(ctx)
			s.record(ctx, protocol.EntryLog, e.Line)

		case reconcile.TransitionEffect:
			s.inst.Transition(ctx, string(e.From), string(e.To))
			s.logger.Info("status changed", "from", e.From, "to", e.To, "cause", e.Cause)
			s.record(ctx, protocol.EntryTransition, transitionText(e))

		case reconcile.ArmReset:
			s.armTimer(ctx, e.After)

		case reconcile.CancelReset:
			s.stopTimer()
		}
	}
	s.publish()
}

func transitionText(e reconcile.TransitionEffect) string {
	if e.Cause == "" {
		return fmt.Sprintf("%s -> %s", e.From, e.To)
	}
	return fmt.Sprintf("%s -> %s (%s)", e.From, e.To, e.Cause)
}

func (s *Session) record(ctx context.Context, kind, text string) {
	for _, r := range s.recorders {
		if err := r.Record(ctx, kind, string(s.state.Status), text); err != nil {
			s.logger.Warn("recorder failed", "kind", kind, "error", err)
		}
	}
}

// armTimer replaces any pending reset timer. Only a firing that carries the
// current generation resets the session.
func (s *Session) armTimer(ctx context.Context, after time.Duration) {
	s.stopTimer()
	gen := s.gen
	s.timer = time.AfterFunc(after, func() {
		s.send(ctx, resetFiredMsg{gen: gen})
	})
	s.logger.Debug("auto-reset armed", "after", after, "gen", gen)
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

// publish offers the current View, replacing an undelivered older one.
func (s *Session) publish() {
	v := View{
		SessionID: s.id,
		State:     s.state,
		Policy:    s.policy,
		PollErr:   s.pollErr,
		LastPoll:  s.lastPoll,
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- v
}
