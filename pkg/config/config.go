// Package config loads the console configuration from a YAML or TOML file
// and the SENTINEL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"sentinel/pkg/protocol"
	"sentinel/pkg/reconcile"
	"sentinel/pkg/simulator"
)

// Environment variables read by Load.
const (
	EnvHome         = "SENTINEL_HOME"
	EnvURL          = "SENTINEL_URL"
	EnvPollInterval = "SENTINEL_POLL_INTERVAL"
	EnvResetMode    = "SENTINEL_RESET_MODE"
	EnvJournal      = "SENTINEL_JOURNAL"
	EnvOTLPEndpoint = "SENTINEL_OTLP_ENDPOINT"
	EnvLogLevel     = "SENTINEL_LOG_LEVEL"
)

// DefaultPollEvery is the poll cadence when none is configured.
const DefaultPollEvery = time.Second

// Duration is a time.Duration that reads and writes as "1s", "500ms", ...
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full console configuration.
type Config struct {
	BaseURL      string          `yaml:"base_url" toml:"base_url"`
	PollInterval Duration        `yaml:"poll_interval" toml:"poll_interval"`
	Reset        ResetConfig     `yaml:"reset" toml:"reset"`
	Trigger      TriggerConfig   `yaml:"trigger" toml:"trigger"`
	Journal      JournalConfig   `yaml:"journal" toml:"journal"`
	Telemetry    TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
	Log          LogConfig       `yaml:"log" toml:"log"`
	Operator     OperatorConfig  `yaml:"operator" toml:"operator"`
	Simulator    SimulatorConfig `yaml:"simulator" toml:"simulator"`
}

// ResetConfig selects what happens after APPROVED or DECLINED.
type ResetConfig struct {
	Mode  string   `yaml:"mode" toml:"mode"` // "persist" or "auto"
	Delay Duration `yaml:"delay" toml:"delay"`
}

// TriggerConfig is the action sent by the manual trigger.
type TriggerConfig struct {
	AgentID   string         `yaml:"agent_id" toml:"agent_id"`
	Action    string         `yaml:"action" toml:"action"`
	Payload   map[string]any `yaml:"payload" toml:"payload"`
	Reasoning string         `yaml:"reasoning" toml:"reasoning"`
}

// JournalConfig enables the SQLite audit journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// TelemetryConfig configures OTLP export. An empty endpoint disables it.
type TelemetryConfig struct {
	Endpoint   string  `yaml:"endpoint" toml:"endpoint"`
	Insecure   bool    `yaml:"insecure" toml:"insecure"`
	SampleRate float64 `yaml:"sample_rate" toml:"sample_rate"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
	File  string `yaml:"file" toml:"file"` // dashboard log file; CLI commands log to stderr
}

// OperatorConfig describes the human on the approval call.
type OperatorConfig struct {
	Phone string `yaml:"phone" toml:"phone"`
}

// SimulatorConfig configures `sentinel simulate`.
type SimulatorConfig struct {
	Addr          string           `yaml:"addr" toml:"addr"`
	Threshold     int              `yaml:"threshold" toml:"threshold"`
	AnalysisDelay Duration         `yaml:"analysis_delay" toml:"analysis_delay"`
	Rules         []simulator.Rule `yaml:"rules,omitempty" toml:"rules,omitempty"`
}

// Home returns $SENTINEL_HOME, defaulting to ~/.sentinel.
func Home() string {
	if h := os.Getenv(EnvHome); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return protocol.SentinelDir
	}
	return filepath.Join(home, protocol.SentinelDir)
}

// DefaultPath returns the config file used when none is given.
func DefaultPath() string {
	return filepath.Join(Home(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() Config {
	home := Home()
	return Config{
		BaseURL:      protocol.DefaultBaseURL,
		PollInterval: Duration(DefaultPollEvery),
		Reset: ResetConfig{
			Mode:  string(reconcile.ModePersist),
			Delay: Duration(reconcile.DefaultResetDelay),
		},
		Trigger: TriggerConfig{
			AgentID:   "demo_ui",
			Action:    "PAY_INVOICE",
			Payload:   map[string]any{"amount": 10000, "vendor": "Unknown"},
			Reasoning: "Manual UI Trigger",
		},
		Journal: JournalConfig{Path: filepath.Join(home, "journal.db")},
		Telemetry: TelemetryConfig{
			SampleRate: 1.0,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(home, "dash.log"),
		},
		Simulator: SimulatorConfig{
			Addr:      "127.0.0.1:8000",
			Threshold: simulator.DefaultThreshold,
		},
	}
}

// Load reads path over the defaults and then applies environment overrides.
// A missing file is not an error when path is the default path; an explicit
// path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied
	switch {
	case err == nil:
		if err := decode(path, data, &cfg); err != nil {
			return Config{}, err
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse TOML %s: %w", path, err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse YAML %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config %s: unsupported format (want .yaml, .yml or .toml)", path)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvPollInterval); v != "" {
		d, err := parseInterval(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPollInterval, err)
		}
		c.PollInterval = Duration(d)
	}
	if v := os.Getenv(EnvResetMode); v != "" {
		c.Reset.Mode = v
	}
	if v := os.Getenv(EnvJournal); v != "" {
		switch strings.ToLower(v) {
		case "0", "false", "off":
			c.Journal.Enabled = false
		case "1", "true", "on":
			c.Journal.Enabled = true
		default:
			c.Journal.Enabled = true
			c.Journal.Path = v
		}
	}
	if v := os.Getenv(EnvOTLPEndpoint); v != "" {
		c.Telemetry.Endpoint = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	return nil
}

// parseInterval accepts a Go duration ("750ms") or a bare number of seconds ("2").
func parseInterval(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url %q: want an http(s) URL", c.BaseURL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval %s: must be positive", c.PollInterval.Std())
	}
	if _, err := reconcile.ParseMode(c.Reset.Mode); err != nil {
		return fmt.Errorf("reset.mode: %w", err)
	}
	if c.Reset.Delay < 0 {
		return fmt.Errorf("reset.delay %s: must not be negative", c.Reset.Delay.Std())
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate %v: want 0..1", c.Telemetry.SampleRate)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q: want debug, info, warn or error", c.Log.Level)
	}
	return nil
}

// Policy returns the reset policy described by c.Reset. c must be valid.
func (c Config) Policy() reconcile.Policy {
	mode, _ := reconcile.ParseMode(c.Reset.Mode)
	return reconcile.Policy{Mode: mode, Delay: c.Reset.Delay.Std()}
}

// Request returns the manual trigger's execute request.
func (c Config) Request() protocol.ExecuteRequest {
	payload := make(map[string]any, len(c.Trigger.Payload))
	for k, v := range c.Trigger.Payload {
		payload[k] = v
	}
	return protocol.ExecuteRequest{
		AgentID:   c.Trigger.AgentID,
		Action:    c.Trigger.Action,
		Payload:   payload,
		Reasoning: c.Trigger.Reasoning,
	}
}

// JournalPath returns the journal location, or "" when the journal is off.
func (c Config) JournalPath() string {
	if !c.Journal.Enabled {
		return ""
	}
	return c.Journal.Path
}

// YAML renders c the way it would be written to a config file.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
