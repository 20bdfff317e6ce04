package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sentinel/pkg/protocol"
	"sentinel/pkg/reconcile"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv(EnvHome, t.TempDir())
	for _, k := range []string{EnvURL, EnvPollInterval, EnvResetMode, EnvJournal, EnvOTLPEndpoint, EnvLogLevel} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != protocol.DefaultBaseURL {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.PollInterval.Std() != time.Second {
		t.Errorf("PollInterval = %s", cfg.PollInterval.Std())
	}
	if p := cfg.Policy(); p.Mode != reconcile.ModePersist || p.Delay != reconcile.DefaultResetDelay {
		t.Errorf("Policy = %+v", p)
	}
	if cfg.JournalPath() != "" {
		t.Error("journal should be off by default")
	}
	if !strings.HasPrefix(cfg.Log.File, Home()) {
		t.Errorf("Log.File = %q, want it under %q", cfg.Log.File, Home())
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	isolate(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("explicit missing config should fail")
	}
}

func TestLoadYAML(t *testing.T) {
	isolate(t)
	path := writeFile(t, "sentinel.yaml", `
base_url: https://risk.example.com
poll_interval: 500ms
reset:
  mode: auto
  delay: 3s
trigger:
  agent_id: finance_bot
  action: WIPE_DATABASE
  payload:
    table: users
journal:
  enabled: true
  path: /tmp/j.db
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "https://risk.example.com" || cfg.PollInterval.Std() != 500*time.Millisecond {
		t.Errorf("cfg = %+v", cfg)
	}
	if p := cfg.Policy(); p.Mode != reconcile.ModeAutoReset || p.Delay != 3*time.Second {
		t.Errorf("Policy = %+v", p)
	}
	req := cfg.Request()
	if req.AgentID != "finance_bot" || req.Action != "WIPE_DATABASE" || req.Payload["table"] != "users" {
		t.Errorf("Request = %+v", req)
	}
	if cfg.JournalPath() != "/tmp/j.db" {
		t.Errorf("JournalPath = %q", cfg.JournalPath())
	}
	// Fields not in the file keep their defaults.
	if cfg.Simulator.Threshold != 50 {
		t.Errorf("Simulator.Threshold = %d", cfg.Simulator.Threshold)
	}
}

func TestLoadTOML(t *testing.T) {
	isolate(t)
	path := writeFile(t, "sentinel.toml", `
base_url = "http://10.0.0.5:8000"
poll_interval = "2s"

[reset]
mode = "persist"

[simulator]
threshold = 30
analysis_delay = "250ms"

[[simulator.rules]]
name = "any_refund"
when = 'action == "REFUND"'
score = 70
reason = '"Refunds need a human."'
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "http://10.0.0.5:8000" || cfg.PollInterval.Std() != 2*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Simulator.Threshold != 30 || cfg.Simulator.AnalysisDelay.Std() != 250*time.Millisecond {
		t.Errorf("Simulator = %+v", cfg.Simulator)
	}
	if len(cfg.Simulator.Rules) != 1 || cfg.Simulator.Rules[0].Score != 70 {
		t.Errorf("Rules = %+v", cfg.Simulator.Rules)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name, file, content string
	}{
		{"bad yaml", "c.yaml", "base_url: [unterminated"},
		{"bad toml", "c.toml", "base_url = "},
		{"unknown extension", "c.json", `{}`},
		{"bad url", "c.yaml", "base_url: ftp://example.com"},
		{"relative url", "c.yaml", "base_url: localhost:8000"},
		{"zero interval", "c.yaml", "poll_interval: 0s"},
		{"bad duration", "c.yaml", "poll_interval: soon"},
		{"bad mode", "c.yaml", "reset:\n  mode: sometimes"},
		{"negative delay", "c.yaml", "reset:\n  delay: -1s"},
		{"bad sample rate", "c.yaml", "telemetry:\n  sample_rate: 2"},
		{"bad log level", "c.yaml", "log:\n  level: loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			if _, err := Load(writeFile(t, tt.file, tt.content)); err == nil {
				t.Error("Load should fail")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	path := writeFile(t, "c.yaml", "base_url: http://from-file:8000\n")

	t.Setenv(EnvURL, "http://from-env:9000")
	t.Setenv(EnvPollInterval, "1.5")
	t.Setenv(EnvResetMode, "auto")
	t.Setenv(EnvJournal, "/var/lib/sentinel/j.db")
	t.Setenv(EnvOTLPEndpoint, "collector:4317")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "http://from-env:9000" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.PollInterval.Std() != 1500*time.Millisecond {
		t.Errorf("PollInterval = %s", cfg.PollInterval.Std())
	}
	if cfg.Policy().Mode != reconcile.ModeAutoReset {
		t.Errorf("Mode = %q", cfg.Reset.Mode)
	}
	if cfg.JournalPath() != "/var/lib/sentinel/j.db" {
		t.Errorf("JournalPath = %q", cfg.JournalPath())
	}
	if cfg.Telemetry.Endpoint != "collector:4317" || cfg.Log.Level != "warn" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestEnvJournalSwitch(t *testing.T) {
	isolate(t)
	t.Setenv(EnvJournal, "on")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.JournalPath() != filepath.Join(Home(), "journal.db") {
		t.Errorf("JournalPath = %q", cfg.JournalPath())
	}

	t.Setenv(EnvJournal, "off")
	if cfg, _ = Load(""); cfg.JournalPath() != "" {
		t.Errorf("JournalPath = %q, want off", cfg.JournalPath())
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	isolate(t)
	cfg := Default()
	cfg.Reset.Mode = "auto"

	data, err := cfg.YAML()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "poll_interval: 1s") {
		t.Errorf("YAML output should render durations as text:\n%s", data)
	}

	loaded, err := Load(writeFile(t, "round.yaml", string(data)))
	if err != nil {
		t.Fatalf("Load(rendered): %v", err)
	}
	if loaded.Policy() != cfg.Policy() || loaded.BaseURL != cfg.BaseURL {
		t.Errorf("round trip changed config: %+v", loaded)
	}
}

func TestRequestCopiesPayload(t *testing.T) {
	cfg := Default()
	req := cfg.Request()
	req.Payload["amount"] = 1
	if cfg.Trigger.Payload["amount"] == 1 {
		t.Error("Request must not share the payload map")
	}
}
