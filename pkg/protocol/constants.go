package protocol

// Endpoint paths and state locations shared by the console, the CLI and the simulator.
const (
	// StatusPath is polled for the current Snapshot.
	StatusPath = "/api/sentinel/status"

	// ExecutePath accepts an ExecuteRequest and starts a new evaluation cycle.
	ExecutePath = "/api/sentinel/execute"

	// QnAPath records a voice question/answer pair (simulator only).
	QnAPath = "/api/sentinel/qna"

	// ResetPath returns the simulator to IDLE.
	ResetPath = "/api/sentinel/reset"

	// WebhookPath receives voice-call events (simulator only).
	WebhookPath = "/api/telnyx/webhook"

	// DefaultBaseURL is where the backend listens unless configured otherwise.
	DefaultBaseURL = "http://localhost:8000"

	// SentinelDir is the user-level state directory (e.g., ~/.sentinel).
	SentinelDir = ".sentinel"
)
