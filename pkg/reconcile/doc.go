// Package reconcile turns polled backend snapshots into the console's local
// UI state.
//
// Reconcile is a pure function over (State, protocol.Snapshot): it returns the
// next State and the list of effects the caller must carry out (arm or cancel
// the reset timer, forward log lines to the journal). The status rules live in
// an explicit transition table keyed by (current UIStatus, incoming status)
// so that edge-triggered and level-triggered rules can be audited and tested
// without a poll loop.
package reconcile
