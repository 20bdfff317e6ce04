package reconcile

import "sentinel/pkg/protocol"

// Reconcile applies one snapshot to st and returns the next state together
// with the effects the caller must carry out. st itself is not modified.
//
// Rules run in a fixed order because later rules may override earlier ones
// within the same tick:
//  1. analysis text becomes the transcript (unless the backend is IDLE)
//  2. a new keypad digit is logged once
//  3. the risk score is overwritten
//  4. the status table (blocked, Q&A, declined, approved, ...) is consulted
//  5. new question/answer transcripts are logged once each
//
// While the console is IDLE, an IDLE, APPROVED or DECLINED snapshot belongs
// to a cycle the console never saw start. The first such snapshot is recorded
// as residue. As long as the backend keeps serving that cycle, only digit,
// question and answer values that differ from the residue are logged.
func Reconcile(st State, snap protocol.Snapshot, policy Policy) (State, []Effect) {
	fp := fingerprintOf(snap)
	p := pass{st: st, policy: policy}

	switch {
	case st.residue.active && fp == st.residue.cycle:
		p.digit(snap)
		p.voice(snap)

	case st.Status == Idle && (snap.Status == protocol.StatusIdle || snap.Status.Terminal()):
		p.st.residue = residue{
			active:   true,
			cycle:    fp,
			digit:    clone(snap.LastDigit),
			question: clone(snap.LastQuestion),
			answer:   clone(snap.LastAnswer),
		}

	default:
		p.st.residue.active = false
		p.analysis(snap)
		p.digit(snap)
		p.riskScore(snap)
		p.status(snap)
		p.voice(snap)
	}

	p.st.Remote = snap.Status
	p.st.last = fp
	return p.st, p.effects
}

// pass accumulates one reconciliation.
type pass struct {
	st      State
	policy  Policy
	effects []Effect
}

func (p *pass) log(line string) {
	var ok bool
	if p.st.Feed, ok = p.st.Feed.Push(line); ok {
		p.effects = append(p.effects, LogEffect{Line: line})
	}
}

func (p *pass) analysis(snap protocol.Snapshot) {
	if a := snap.AnalysisText(); a != "" && snap.Status != protocol.StatusIdle {
		p.st.Transcript = a
	}
}

func (p *pass) digit(snap protocol.Snapshot) {
	if p.observe(&p.st.residue.digit, &p.st.SeenDigit, snap.LastDigit) {
		p.log(DigitLine(*snap.LastDigit))
	}
}

func (p *pass) riskScore(snap protocol.Snapshot) {
	if snap.RiskScore != nil {
		score := *snap.RiskScore
		p.st.RiskScore = &score
	}
}

func (p *pass) voice(snap protocol.Snapshot) {
	if p.observe(&p.st.residue.question, &p.st.SeenQuestion, snap.LastQuestion) {
		p.log(QuestionLine(*snap.LastQuestion))
	}
	if p.observe(&p.st.residue.answer, &p.st.SeenAnswer, snap.LastAnswer) {
		p.log(AnswerLine(*snap.LastAnswer))
	}
}

// observe decides whether v is a new value for a deduplicated field. When it
// is, *seen is updated and the caller must log it: the line either lands in
// the feed or is already its newest entry.
func (p *pass) observe(leftover, seen **string, v *string) bool {
	if v == nil || stale(leftover, v) {
		return false
	}
	if *seen != nil && **seen == *v {
		return false
	}
	*seen = clone(v)
	return true
}

func (p *pass) status(snap protocol.Snapshot) {
	tr, ok := lookup(p.st.Status, snap.Status)
	if !ok || !tr.fires(p.st, snap.Status) {
		return
	}

	var appended []string
	p.st.Feed, appended = p.st.Feed.PushBurst(tr.lines(p.st, snap)...)
	for _, line := range appended {
		p.effects = append(p.effects, LogEffect{Line: line})
	}

	if from := p.st.Status; from != tr.to {
		p.st.Status = tr.to
		p.effects = append(p.effects, TransitionEffect{From: from, To: tr.to, Cause: snap.Status})
	}
	if tr.transcript != "" {
		p.st.Transcript = tr.transcript
	}

	switch {
	case tr.terminal && p.policy.autoReset():
		p.st.ResetArmed = true
		p.effects = append(p.effects, ArmReset{After: p.policy.delay()})
	case !tr.terminal && p.st.ResetArmed:
		p.st.ResetArmed = false
		p.effects = append(p.effects, CancelReset{})
	}
}
