// Package watch runs a console session: it polls the backend, feeds each
// snapshot through the reconciler, executes the resulting effects and
// publishes the presentation state.
//
// Every state change happens on the goroutine running Session.Run. Fetches,
// commands and timer firings only send messages to it, so snapshot results,
// operator commands and resets are applied one at a time in arrival order.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sentinel/pkg/protocol"
	"sentinel/pkg/reconcile"
	"sentinel/pkg/telemetry"
)

// DefaultInterval is the poll cadence when Options.Interval is zero.
const DefaultInterval = time.Second

// queueSize bounds the message queue feeding the session goroutine.
const queueSize = 64

// Fetcher reads the backend's current snapshot.
type Fetcher interface {
	FetchStatus(ctx context.Context) (protocol.Snapshot, error)
}

// Submitter sends an action to the backend.
type Submitter interface {
	Execute(ctx context.Context, req protocol.ExecuteRequest) (protocol.ExecuteResponse, error)
}

// Recorder receives every feed line, transition and reset in order. kind is
// one of protocol.EntryLog, EntryTransition or EntryReset.
type Recorder interface {
	Record(ctx context.Context, kind, uiStatus, text string) error
}

// Options configures a Session.
type Options struct {
	Fetcher     Fetcher
	Submitter   Submitter
	Interval    time.Duration
	Policy      reconcile.Policy
	Recorders   []Recorder
	Instruments *telemetry.Instruments
	Logger      *slog.Logger

	// SessionID identifies the session in views and the journal. A UUID is
	// generated when empty.
	SessionID string
}

// View is an immutable copy of the presentation state.
type View struct {
	SessionID string
	State     reconcile.State
	Policy    reconcile.Policy

	// PollErr is the error of the newest fetch, nil once a fetch succeeds.
	PollErr error
	// LastPoll is when the newest fetch result was applied; zero before the first.
	LastPoll time.Time
}

// Connected reports whether the newest poll reached the backend.
func (v View) Connected() bool {
	return !v.LastPoll.IsZero() && v.PollErr == nil
}

// Session owns one console's State.
type Session struct {
	id        string
	fetcher   Fetcher
	submitter Submitter
	interval  time.Duration
	recorders []Recorder
	inst      *telemetry.Instruments
	logger    *slog.Logger

	msgs    chan message
	updates chan View
	done    chan struct{}
	once    sync.Once

	// Owned by the Run goroutine.
	state    reconcile.State
	policy   reconcile.Policy
	seq      uint64 // last fetch issued
	applied  uint64 // newest fetch applied
	fence    uint64 // last fetch issued before the newest submit
	timer    *time.Timer
	gen      uint64 // reset timer generation
	pollErr  error
	lastPoll time.Time
}

// New builds a Session in the IDLE state. Run must be called to start it.
func New(opts Options) (*Session, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("watch: a Fetcher is required")
	}
	if opts.Submitter == nil {
		return nil, errors.New("watch: a Submitter is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Policy.Mode == "" {
		opts.Policy = reconcile.DefaultPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}

	return &Session{
		id:        opts.SessionID,
		fetcher:   opts.Fetcher,
		submitter: opts.Submitter,
		interval:  opts.Interval,
		recorders: opts.Recorders,
		inst:      opts.Instruments,
		logger:    opts.Logger.With("component", "watch", "session", opts.SessionID),
		msgs:      make(chan message, queueSize),
		updates:   make(chan View, 1),
		done:      make(chan struct{}),
		state:     reconcile.New(),
		policy:    opts.Policy,
	}, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Updates delivers the newest View after every change. Only the latest
// undelivered View is kept. The channel is closed when Run returns.
func (s *Session) Updates() <-chan View { return s.updates }

// Run polls at the configured interval and applies messages until ctx is
// done. The first fetch is issued immediately. Run returns nil on a clean
// shutdown; it must be called at most once.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.shutdown()

	s.logger.Info("session started", "interval", s.interval, "reset_mode", s.policy.Mode)
	s.publish()
	s.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session stopped")
			return nil
		case <-ticker.C:
			s.poll(ctx)
		case m := <-s.msgs:
			s.handle(ctx, m)
		}
	}
}

func (s *Session) shutdown() {
	s.stopTimer()
	s.once.Do(func() {
		close(s.done)
		close(s.updates)
	})
}

// Submit records a new action in the session and sends it to the backend.
// The request is sent whatever the current status is. A failed call is noted
// in the feed and returned as a *protocol.CommandError.
func (s *Session) Submit(ctx context.Context, req protocol.ExecuteRequest) (protocol.ExecuteResponse, error) {
	if !s.send(ctx, submitMsg{req: req}) {
		return protocol.ExecuteResponse{}, fmt.Errorf("submit %s: session not running", req.Action)
	}

	resp, err := s.submitter.Execute(ctx, req)
	if err != nil {
		var ce *protocol.CommandError
		if !errors.As(err, &ce) {
			ce = &protocol.CommandError{Action: req.Action, Err: err}
		}
		s.send(ctx, commandFailedMsg{err: ce})
		return protocol.ExecuteResponse{}, ce
	}
	return resp, nil
}

// Reset clears the session back to IDLE immediately.
func (s *Session) Reset(ctx context.Context) {
	s.send(ctx, resetMsg{})
}

// SetPolicy replaces the reset policy. Switching to persist cancels a pending
// auto-reset; switching to auto does not arm one for a cycle that already ended.
func (s *Session) SetPolicy(ctx context.Context, p reconcile.Policy) {
	s.send(ctx, policyMsg{policy: p})
}

// send queues m for the Run goroutine. It reports false if the session has
// stopped or ctx is done first.
func (s *Session) send(ctx context.Context, m message) bool {
	select {
	case s.msgs <- m:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// poll starts one fetch. Overlapping fetches are allowed; their results carry
// a sequence number so only the newest is applied.
func (s *Session) poll(ctx context.Context) {
	s.seq++
	seq := s.seq
	go func() {
		snap, err := s.fetcher.FetchStatus(ctx)
		s.send(ctx, fetchResult{seq: seq, snap: snap, err: err})
	}()
}
