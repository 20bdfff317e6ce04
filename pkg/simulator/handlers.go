package simulator

import (
	"encoding/json"
	"net/http"

	"sentinel/pkg/protocol"
)

// WebhookEvent is the subset of a voice-provider callback the simulator reads.
type WebhookEvent struct {
	Data struct {
		EventType string `json:"event_type"`
		Payload   struct {
			CallControlID string `json:"call_control_id"`
			Digit         string `json:"digit"`
		} `json:"payload"`
	} `json:"data"`
}

// Voice-call event types.
const (
	EventCallAnswered = "call.answered"
	EventDTMF         = "call.dtmf.received"
)

// QnARequest is the body of the Q&A endpoint.
type QnARequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

var okBody = map[string]string{"status": "ok"}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"detail": msg})
}

func (s *Simulator) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (s *Simulator) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req protocol.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp, err := s.Execute(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Simulator) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var ev WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	switch ev.Data.EventType {
	case EventCallAnswered:
		snap := s.Snapshot()
		score := 0
		if snap.RiskScore != nil {
			score = *snap.RiskScore
		}
		s.logger.Info("call answered, reading summary",
			"call", ev.Data.Payload.CallControlID,
			"risk_score", score,
			"analysis", snap.AnalysisText())
	case EventDTMF:
		s.PressDigit(ev.Data.Payload.Digit)
	default:
		s.logger.Debug("ignoring webhook event", "event_type", ev.Data.EventType)
	}
	// The voice provider only needs an acknowledgement.
	writeJSON(w, http.StatusOK, okBody)
}

func (s *Simulator) handleQnA(w http.ResponseWriter, r *http.Request) {
	var req QnARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Question == "" && req.Answer == "" {
		writeError(w, http.StatusUnprocessableEntity, "question or answer is required")
		return
	}
	s.Converse(req.Question, req.Answer)
	writeJSON(w, http.StatusOK, okBody)
}

func (s *Simulator) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.Reset()
	writeJSON(w, http.StatusOK, okBody)
}
