package reconcile

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"sentinel/pkg/protocol"
)

// apply runs snaps through Reconcile starting from st and returns the final
// state plus every effect emitted along the way.
func apply(st State, policy Policy, snaps ...protocol.Snapshot) (State, []Effect) {
	var all []Effect
	for _, snap := range snaps {
		var effects []Effect
		st, effects = Reconcile(st, snap, policy)
		all = append(all, effects...)
	}
	return st, all
}

func countLine(st State, line string) int {
	n := 0
	for _, l := range st.Feed.Lines() {
		if l == line {
			n++
		}
	}
	return n
}

func blockedSnapshot() protocol.Snapshot {
	return protocol.Snapshot{
		Status:    protocol.StatusBlockedAwaitingAuth,
		RiskScore: protocol.Int(92),
		Analysis:  protocol.String("suspicious vendor"),
	}
}

func TestReconcile_BlockedBurstFromIdle(t *testing.T) {
	st, effects := Reconcile(New(), blockedSnapshot(), DefaultPolicy())

	if st.Status != Blocked {
		t.Fatalf("Status = %s, want BLOCKED", st.Status)
	}
	if st.RiskScore == nil || *st.RiskScore != 92 {
		t.Fatalf("RiskScore = %v, want 92", st.RiskScore)
	}
	if st.Transcript != "suspicious vendor" {
		t.Errorf("Transcript = %q, want analysis text", st.Transcript)
	}

	want := []string{LineCall, ReasonLine("suspicious vendor"), VerdictLine(92), LineDetected}
	if got := st.Feed.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("feed = %v\nwant %v", got, want)
	}

	var sawTransition bool
	for _, e := range effects {
		if tr, ok := e.(TransitionEffect); ok {
			sawTransition = tr.From == Idle && tr.To == Blocked && tr.Cause == protocol.StatusBlockedAwaitingAuth
		}
	}
	if !sawTransition {
		t.Errorf("effects %v missing IDLE->BLOCKED transition", effects)
	}
}

func TestReconcile_BlockedBurstSkipsUnknownFields(t *testing.T) {
	st, _ := Reconcile(New(), protocol.Snapshot{Status: protocol.StatusBlockedAwaitingAuth}, DefaultPolicy())

	want := []string{LineCall, LineDetected}
	if got := st.Feed.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("feed = %v, want %v", got, want)
	}
}

func TestReconcile_BlockedIsEdgeTriggered(t *testing.T) {
	snap := blockedSnapshot()
	st, _ := apply(New(), DefaultPolicy(), snap, snap, snap)

	if n := countLine(st, LineDetected); n != 1 {
		t.Errorf("detection logged %d times, want 1", n)
	}
}

func TestReconcile_DigitLoggedOnce(t *testing.T) {
	snap := blockedSnapshot()
	snap.LastDigit = protocol.String("1")

	st, _ := apply(New(), DefaultPolicy(), snap, snap)

	if n := countLine(st, DigitLine("1")); n != 1 {
		t.Errorf("digit line logged %d times, want 1", n)
	}
	if st.SeenDigit == nil || *st.SeenDigit != "1" {
		t.Errorf("SeenDigit = %v, want 1", st.SeenDigit)
	}

	snap.LastDigit = protocol.String("2")
	st, _ = apply(st, DefaultPolicy(), snap)
	if n := countLine(st, DigitLine("2")); n != 1 {
		t.Errorf("new digit logged %d times, want 1", n)
	}
}

func TestReconcile_ApprovedLoggedOnce(t *testing.T) {
	approved := protocol.Snapshot{Status: protocol.StatusApproved, RiskScore: protocol.Int(92)}
	lead := map[string]protocol.Snapshot{
		"from awaiting auth": blockedSnapshot(),
		"from q&a":           {Status: protocol.StatusQnA},
		"from declined":      {Status: protocol.StatusDeclined},
	}

	for name, first := range lead {
		t.Run(name, func(t *testing.T) {
			st, _ := apply(New(), DefaultPolicy(), blockedSnapshot(), first)
			st, _ = apply(st, DefaultPolicy(), approved, approved, approved, approved, approved)

			if st.Status != Approved {
				t.Fatalf("Status = %s, want APPROVED", st.Status)
			}
			if n := countLine(st, LineApproved); n != 1 {
				t.Errorf("approval logged %d times, want 1", n)
			}
			if st.Transcript != TranscriptGranted {
				t.Errorf("Transcript = %q, want %q", st.Transcript, TranscriptGranted)
			}
		})
	}
}

func TestReconcile_PersistPolicyDoesNotArmReset(t *testing.T) {
	_, effects := apply(New(), DefaultPolicy(), blockedSnapshot(), protocol.Snapshot{Status: protocol.StatusApproved})
	for _, e := range effects {
		if _, ok := e.(ArmReset); ok {
			t.Fatalf("persist policy emitted %v", e)
		}
	}
}

func TestReconcile_AutoResetClearsEverything(t *testing.T) {
	policy := AutoReset(5 * time.Second)
	snap := blockedSnapshot()
	snap.LastDigit = protocol.String("1")
	snap.LastQuestion = protocol.String("why is this risky?")
	snap.LastAnswer = protocol.String("unknown vendor")

	st, _ := apply(New(), policy, snap)
	approved := snap
	approved.Status = protocol.StatusApproved
	st, effects := Reconcile(st, approved, policy)

	var armed *ArmReset
	for _, e := range effects {
		if a, ok := e.(ArmReset); ok {
			armed = &a
		}
	}
	if armed == nil || armed.After != 5*time.Second {
		t.Fatalf("effects %v missing ArmReset{5s}", effects)
	}
	if !st.ResetArmed {
		t.Error("ResetArmed should be set after arming")
	}

	st, effects = Reset(st)
	if st.Status != Idle {
		t.Errorf("Status = %s, want IDLE", st.Status)
	}
	if st.RiskScore != nil || st.Transcript != "" || st.Feed.Len() != 0 {
		t.Errorf("reset left data behind: score=%v transcript=%q feed=%v", st.RiskScore, st.Transcript, st.Feed.Lines())
	}
	if st.SeenDigit != nil || st.SeenQuestion != nil || st.SeenAnswer != nil {
		t.Error("reset left seen* fields behind")
	}
	if len(effects) != 1 {
		t.Errorf("Reset effects = %v, want one transition", effects)
	}

	// The backend keeps serving the finished cycle; nothing may be replayed.
	st, effects = apply(st, policy, approved, approved)
	if st.Status != Idle || st.Feed.Len() != 0 || len(effects) != 0 {
		t.Errorf("residue replayed: status=%s feed=%v effects=%v", st.Status, st.Feed.Lines(), effects)
	}
}

func TestReconcile_NewBlockCancelsArmedReset(t *testing.T) {
	policy := AutoReset(5 * time.Second)
	st, _ := apply(New(), policy, blockedSnapshot(), protocol.Snapshot{Status: protocol.StatusApproved, RiskScore: protocol.Int(10)})

	next := blockedSnapshot()
	next.Analysis = protocol.String("second attempt")
	st, effects := Reconcile(st, next, policy)

	var cancelled bool
	for _, e := range effects {
		if _, ok := e.(CancelReset); ok {
			cancelled = true
		}
	}
	if !cancelled {
		t.Errorf("effects %v missing CancelReset", effects)
	}
	if st.ResetArmed {
		t.Error("ResetArmed should be cleared")
	}
	if st.Status != Blocked {
		t.Errorf("Status = %s, want BLOCKED", st.Status)
	}
}

func TestReconcile_DeclinedHardBlock(t *testing.T) {
	declined := protocol.Snapshot{
		Status:   protocol.StatusDeclined,
		Analysis: protocol.String("vendor not on allow list"),
	}

	st, _ := apply(New(), DefaultPolicy(), blockedSnapshot(), declined, declined, declined)

	if st.Status != Blocked {
		t.Fatalf("Status = %s, want BLOCKED", st.Status)
	}
	if n := countLine(st, LineHardBlock); n != 1 {
		t.Errorf("hard block logged %d times, want 1", n)
	}
	if got := st.Feed.Head(); got != PolicyLine("vendor not on allow list") {
		t.Errorf("newest line = %q, want policy reason", got)
	}

	_, effects := apply(New(), AutoReset(time.Second), blockedSnapshot(), declined)
	var armed bool
	for _, e := range effects {
		_, armed = e.(ArmReset)
		if armed {
			break
		}
	}
	if !armed {
		t.Error("auto-reset policy should arm the timer on DECLINED")
	}
}

func TestReconcile_QnAListeningDoesNotStack(t *testing.T) {
	qna := protocol.Snapshot{Status: protocol.StatusQnA}
	st, _ := apply(New(), DefaultPolicy(), blockedSnapshot(), qna, qna, qna)

	if st.Status != Blocked {
		t.Fatalf("Status = %s, want BLOCKED", st.Status)
	}
	if n := countLine(st, LineListening); n != 1 {
		t.Errorf("listening logged %d times while nothing else happened, want 1", n)
	}

	withQuestion := qna
	withQuestion.LastQuestion = protocol.String("what vendor is this?")
	st, _ = apply(st, DefaultPolicy(), withQuestion, withQuestion)

	// A new burst after the question is expected; back-to-back repeats are not.
	if n := countLine(st, LineListening); n != 2 {
		t.Errorf("listening logged %d times, want 2", n)
	}
	if n := countLine(st, QuestionLine("what vendor is this?")); n != 1 {
		t.Errorf("question logged %d times, want 1", n)
	}
}

func TestReconcile_QuestionAndAnswerInAnyState(t *testing.T) {
	snap := protocol.Snapshot{
		Status:       protocol.StatusAnalyzing,
		LastQuestion: protocol.String("is this vendor known?"),
		LastAnswer:   protocol.String("no history on file"),
	}
	st, effects := apply(New(), DefaultPolicy(), snap, snap)

	want := []string{AnswerLine("no history on file"), QuestionLine("is this vendor known?"), LineAnalyzing}
	if got := st.Feed.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("feed = %v, want %v", got, want)
	}

	logs := 0
	for _, e := range effects {
		if _, ok := e.(LogEffect); ok {
			logs++
		}
	}
	if logs != 3 {
		t.Errorf("LogEffects = %d, want 3", logs)
	}
}

func TestReconcile_RiskScoreLastWriteWins(t *testing.T) {
	st, _ := apply(New(), DefaultPolicy(),
		protocol.Snapshot{Status: protocol.StatusAnalyzing, RiskScore: protocol.Int(80)},
		protocol.Snapshot{Status: protocol.StatusAnalyzing, RiskScore: protocol.Int(20)},
		protocol.Snapshot{Status: protocol.StatusAnalyzing},
	)
	if st.RiskScore == nil || *st.RiskScore != 20 {
		t.Errorf("RiskScore = %v, want 20", st.RiskScore)
	}
}

func TestReconcile_IdleAnalysisIgnored(t *testing.T) {
	st, _ := Submit(New(), protocol.ExecuteRequest{AgentID: "demo_ui", Action: "PAY_INVOICE"})
	st, _ = Reconcile(st, protocol.Snapshot{Status: protocol.StatusIdle, Analysis: protocol.String("System Ready")}, DefaultPolicy())

	if st.Transcript != "" {
		t.Errorf("Transcript = %q, want empty while backend is IDLE", st.Transcript)
	}
	if st.Status != Monitoring {
		t.Errorf("Status = %s, want MONITORING", st.Status)
	}
}

func TestReconcile_DoesNotMutateInput(t *testing.T) {
	before, _ := Reconcile(New(), blockedSnapshot(), DefaultPolicy())
	lines := before.Feed.Lines()

	snap := protocol.Snapshot{Status: protocol.StatusApproved, LastDigit: protocol.String("1")}
	after, _ := Reconcile(before, snap, DefaultPolicy())

	if before.Status != Blocked || !reflect.DeepEqual(before.Feed.Lines(), lines) || before.SeenDigit != nil {
		t.Error("Reconcile modified its input state")
	}
	if after.Status != Approved {
		t.Errorf("after.Status = %s, want APPROVED", after.Status)
	}
}

func TestReconcile_StartupResidueIsNotReplayed(t *testing.T) {
	leftover := protocol.Snapshot{
		Status:    protocol.StatusApproved,
		RiskScore: protocol.Int(95),
		Analysis:  protocol.String("old cycle"),
		LastDigit: protocol.String("1"),
	}

	st, effects := apply(New(), DefaultPolicy(), leftover, leftover)
	if st.Status != Idle || st.Feed.Len() != 0 || len(effects) != 0 || st.RiskScore != nil {
		t.Fatalf("leftover snapshot changed an idle console: %+v", st)
	}

	req := protocol.ExecuteRequest{AgentID: "demo_ui", Action: "PAY_INVOICE"}
	st, _ = Submit(st, req)
	st, _ = apply(st, DefaultPolicy(),
		protocol.Snapshot{Status: protocol.StatusAnalyzing, RiskScore: protocol.Int(95), LastDigit: protocol.String("1")},
		protocol.Snapshot{Status: protocol.StatusBlockedAwaitingAuth, RiskScore: protocol.Int(97), LastDigit: protocol.String("1")},
	)
	if st.Status != Blocked {
		t.Fatalf("Status = %s, want BLOCKED", st.Status)
	}
	if n := countLine(st, DigitLine("1")); n != 0 {
		t.Errorf("leftover digit logged %d times, want 0", n)
	}

	st, _ = apply(st, DefaultPolicy(), protocol.Snapshot{Status: protocol.StatusApproved, LastDigit: protocol.String("3")})
	if n := countLine(st, DigitLine("3")); n != 1 {
		t.Errorf("fresh digit logged %d times, want 1", n)
	}
}

func TestReconcile_IdleValuesThatChangeAreLogged(t *testing.T) {
	idle := protocol.Snapshot{Status: protocol.StatusIdle, LastQuestion: protocol.String("old question")}
	st, effects := apply(New(), DefaultPolicy(), idle, idle)
	if st.Feed.Len() != 0 || len(effects) != 0 {
		t.Fatalf("leftover question replayed: feed=%v", st.Feed.Lines())
	}

	asked := idle
	asked.LastQuestion = protocol.String("who is vendor?")
	asked.LastDigit = protocol.String("4")
	st, effects = apply(st, DefaultPolicy(), asked, asked)

	if st.Status != Idle {
		t.Errorf("Status = %s, want IDLE", st.Status)
	}
	want := []string{QuestionLine("who is vendor?"), DigitLine("4")}
	if got := st.Feed.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("feed = %v, want %v", got, want)
	}
	if len(effects) != 2 {
		t.Errorf("effects = %v, want two log lines", effects)
	}
	if st.SeenQuestion == nil || *st.SeenQuestion != "who is vendor?" {
		t.Errorf("SeenQuestion = %v", st.SeenQuestion)
	}
}

func TestReconcile_ResetKeepsServedCycleQuietButLogsNewValues(t *testing.T) {
	approved := protocol.Snapshot{Status: protocol.StatusApproved, RiskScore: protocol.Int(10), LastAnswer: protocol.String("yes")}
	st, _ := apply(New(), DefaultPolicy(), blockedSnapshot(), approved)
	st, _ = Reset(st)

	st, effects := apply(st, DefaultPolicy(), approved)
	if st.Feed.Len() != 0 || len(effects) != 0 {
		t.Fatalf("served cycle replayed after reset: feed=%v", st.Feed.Lines())
	}

	answered := approved
	answered.LastAnswer = protocol.String("the vendor is on file")
	st, _ = apply(st, DefaultPolicy(), answered)
	if st.Status != Idle {
		t.Errorf("Status = %s, want IDLE", st.Status)
	}
	if got := st.Feed.Head(); got != AnswerLine("the vendor is on file") {
		t.Errorf("newest line = %q, want the new answer", got)
	}
}

func TestSubmit_IdenticalSnapshotAfterResubmit(t *testing.T) {
	req := protocol.ExecuteRequest{AgentID: "a", Action: "PAY_INVOICE"}

	tests := []struct {
		name  string
		cycle []protocol.Snapshot
		want  UIStatus
	}{
		{
			name:  "blocked again",
			cycle: []protocol.Snapshot{blockedSnapshot()},
			want:  Blocked,
		},
		{
			name: "approved again",
			cycle: []protocol.Snapshot{
				blockedSnapshot(),
				{Status: protocol.StatusApproved, RiskScore: protocol.Int(92), Analysis: protocol.String("suspicious vendor")},
			},
			want: Approved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, _ := apply(New(), DefaultPolicy(), tt.cycle...)
			if st.Status != tt.want {
				t.Fatalf("precondition: Status = %s, want %s", st.Status, tt.want)
			}
			last := tt.cycle[len(tt.cycle)-1]

			st, _ = Submit(st, req)
			st, _ = apply(st, DefaultPolicy(), last, last, last, last, last)
			if st.Status != tt.want {
				t.Errorf("Status = %s after the backend repeated its verdict, want %s", st.Status, tt.want)
			}

			pressed := last
			pressed.LastDigit = protocol.String("9")
			st, _ = apply(st, DefaultPolicy(), pressed)
			if st.SeenDigit == nil || *st.SeenDigit != "9" {
				t.Errorf("SeenDigit = %v, want 9", st.SeenDigit)
			}
			if got := st.Feed.Head(); got != DigitLine("9") {
				t.Errorf("newest line = %q, want %q", got, DigitLine("9"))
			}
		})
	}
}

func TestSubmit_NeverGated(t *testing.T) {
	req := protocol.ExecuteRequest{AgentID: "demo_ui", Action: "PAY_INVOICE"}
	for _, from := range []UIStatus{Idle, Monitoring, Analyzing, Blocked, Approved} {
		t.Run(string(from), func(t *testing.T) {
			st := New()
			st.Status = from
			st, _ = Submit(st, req)
			if st.Status != Monitoring {
				t.Errorf("Status = %s, want MONITORING", st.Status)
			}
			want := []string{SubmitLine(req), LineInit}
			if got := st.Feed.Lines(); !reflect.DeepEqual(got, want) {
				t.Errorf("feed = %v, want %v", got, want)
			}
		})
	}
}

func TestSubmit_CancelsArmedReset(t *testing.T) {
	st, _ := apply(New(), AutoReset(time.Second), blockedSnapshot(), protocol.Snapshot{Status: protocol.StatusApproved})
	if !st.ResetArmed {
		t.Fatal("precondition: reset should be armed")
	}

	st, effects := Submit(st, protocol.ExecuteRequest{AgentID: "a", Action: "b"})
	if st.ResetArmed {
		t.Error("ResetArmed should be cleared by Submit")
	}
	if _, ok := effects[0].(CancelReset); !ok {
		t.Errorf("first effect = %T, want CancelReset", effects[0])
	}
}

func TestCommandFailed(t *testing.T) {
	st, _ := Submit(New(), protocol.ExecuteRequest{AgentID: "a", Action: "PAY_INVOICE"})
	err := &protocol.CommandError{Action: "PAY_INVOICE", Err: errors.New("connection refused")}

	st, effects := CommandFailed(st, err)
	if st.Status != Monitoring {
		t.Errorf("Status = %s, want MONITORING (unchanged)", st.Status)
	}
	if len(effects) != 1 || st.Feed.Head() != FailureLine(err) {
		t.Errorf("feed head = %q, effects = %v", st.Feed.Head(), effects)
	}

	_, effects = CommandFailed(st, err)
	if len(effects) != 0 {
		t.Error("identical failure line should be suppressed")
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModePersist, "persist": ModePersist, "auto": ModeAutoReset} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMode("sometimes"); err == nil {
		t.Error("ParseMode should reject unknown modes")
	}
}
