// Package simulator is an in-process stand-in for the risk-engine backend.
//
// It serves the same HTTP surface the console polls and posts to, scores
// actions with CEL rules instead of a language model, and takes the
// operator's keypad presses and voice transcripts from webhook calls rather
// than a live phone line.
package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"sentinel/pkg/protocol"
)

// DefaultThreshold is the score above which an action waits for the operator.
const DefaultThreshold = 50

// Fallback verdict when the rules cannot be evaluated.
const (
	fallbackScore    = 95
	fallbackAnalysis = "Risk engine offline - defaulting to high risk"
)

// Initial analysis reported while nothing is in flight.
const readyAnalysis = "System Ready"

// Keypad digits understood on the approval call.
const (
	DigitApprove = "1"
	DigitDetails = "2"
	DigitDecline = "3"
)

// Options configures a Simulator.
type Options struct {
	Rules         []Rule        // nil means DefaultRules
	Threshold     int           // zero means DefaultThreshold
	AnalysisDelay time.Duration // time spent in ANALYZING before the verdict
	OperatorPhone string        // only logged; no call is placed
	Logger        *slog.Logger
}

// Simulator holds the backend's single global workflow state.
type Simulator struct {
	engine    *Engine
	threshold int
	delay     time.Duration
	phone     string
	logger    *slog.Logger

	mu    sync.Mutex
	state protocol.Snapshot
}

// New builds a Simulator in the IDLE state.
func New(opts Options) (*Simulator, error) {
	rules := opts.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	engine, err := NewEngine(rules)
	if err != nil {
		return nil, err
	}
	if opts.Threshold == 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Simulator{
		engine:    engine,
		threshold: opts.Threshold,
		delay:     opts.AnalysisDelay,
		phone:     opts.OperatorPhone,
		logger:    opts.Logger.With("component", "simulator"),
		state:     idleState(),
	}, nil
}

func idleState() protocol.Snapshot {
	return protocol.Snapshot{
		Status:    protocol.StatusIdle,
		RiskScore: protocol.Int(0),
		Analysis:  protocol.String(readyAnalysis),
	}
}

// Snapshot returns a copy of the current state.
func (s *Simulator) Snapshot() protocol.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reset returns the simulator to IDLE, clearing every field.
func (s *Simulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = idleState()
}

// Execute scores req and moves the workflow to BLOCKED_AWAITING_AUTH or
// APPROVED. It blocks for the configured analysis delay.
func (s *Simulator) Execute(ctx context.Context, req protocol.ExecuteRequest) (protocol.ExecuteResponse, error) {
	if err := req.Validate(); err != nil {
		return protocol.ExecuteResponse{}, err
	}

	s.mu.Lock()
	s.state.Status = protocol.StatusAnalyzing
	s.mu.Unlock()

	if s.delay > 0 {
		t := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return protocol.ExecuteResponse{}, ctx.Err()
		case <-t.C:
		}
	}

	verdict, err := s.engine.Evaluate(req.Action, req.Payload)
	if err != nil {
		s.logger.Warn("risk rules failed", "action", req.Action, "error", err)
		verdict = Verdict{Score: fallbackScore, Analysis: fallbackAnalysis}
	}

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return protocol.ExecuteResponse{}, fmt.Errorf("encode payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.RiskScore = protocol.Int(verdict.Score)
	s.state.Analysis = protocol.String(verdict.Analysis)
	s.state.LastAction = protocol.String(req.Action)
	s.state.LastPayload = payload

	if verdict.Score > s.threshold {
		s.state.Status = protocol.StatusBlockedAwaitingAuth
		s.logger.Info("action blocked, calling operator",
			"action", req.Action, "risk_score", verdict.Score, "rule", verdict.Rule, "phone", s.phone)
		return protocol.ExecuteResponse{
			Status:    string(protocol.StatusBlockedAwaitingAuth),
			RiskScore: protocol.Int(verdict.Score),
			Analysis:  protocol.String(verdict.Analysis),
		}, nil
	}

	s.state.Status = protocol.StatusApproved
	s.logger.Info("action approved", "action", req.Action, "risk_score", verdict.Score)
	return protocol.ExecuteResponse{Status: "EXECUTED", RiskScore: protocol.Int(verdict.Score)}, nil
}

// PressDigit records a keypad press on the approval call.
// Digits other than 1, 2 and 3 are recorded but change nothing else.
func (s *Simulator) PressDigit(digit string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastDigit = protocol.String(digit)
	switch digit {
	case DigitApprove:
		s.state.Status = protocol.StatusApproved
	case DigitDetails:
		s.state.Status = protocol.StatusQnA
	case DigitDecline:
		s.state.Status = protocol.StatusDeclined
	}
	s.logger.Info("digit pressed", "digit", digit, "status", s.state.Status)
}

// Converse records one voice question and the answer given to it.
func (s *Simulator) Converse(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if question != "" {
		s.state.LastQuestion = protocol.String(question)
	}
	if answer != "" {
		s.state.LastAnswer = protocol.String(answer)
	}
}

// Handler returns the HTTP routes.
func (s *Simulator) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(protocol.StatusPath, s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc(protocol.ExecutePath, s.handleExecute).Methods(http.MethodPost)
	r.HandleFunc(protocol.WebhookPath, s.handleWebhook).Methods(http.MethodPost)
	r.HandleFunc(protocol.QnAPath, s.handleQnA).Methods(http.MethodPost)
	r.HandleFunc(protocol.ResetPath, s.handleReset).Methods(http.MethodPost)
	return r
}

// ListenAndServe serves Handler on addr until ctx is cancelled.
// ready, when non-nil, receives the bound address once listening.
func (s *Simulator) ListenAndServe(ctx context.Context, addr string, ready chan<- string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("simulator listening", "addr", ln.Addr().String())
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
