package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sentinel/internal/appversion"
	"sentinel/pkg/config"
)

// options are the command-line overrides accepted by sentinel-dash.
type options struct {
	configPath string
	baseURL    string
	resetMode  string
	plain      bool
	noJournal  bool
}

// newRootCmd creates the sentinel-dash command.
func newRootCmd() *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:           "sentinel-dash",
		Short:         "Safety-gate console",
		Long:          "sentinel-dash polls the risk engine once a second and shows the\ncurrent decision cycle: status, risk score, call transcript and log feed.",
		Version:       fmt.Sprintf("sentinel-dash %s", appversion.String()),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(o)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			o.plain = o.plain || !isTerminal(out)
			return run(cmd.Context(), cfg, o, out)
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "config file (default $SENTINEL_HOME/config.yaml)")
	f.StringVar(&o.baseURL, "url", "", "backend base URL")
	f.StringVar(&o.resetMode, "reset", "", "reset policy after a cycle ends: persist or auto")
	f.BoolVar(&o.plain, "plain", false, "stream the log feed as text instead of the TUI")
	f.BoolVar(&o.noJournal, "no-journal", false, "do not write the audit journal")

	return cmd
}

// loadConfig reads the configuration and applies the flag overrides.
func loadConfig(o options) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := applyFlags(&cfg, o); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// applyFlags overrides cfg with the flags that were set. Flags win over the
// config file and the environment, including on hot reload.
func applyFlags(cfg *config.Config, o options) error {
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if o.resetMode != "" {
		cfg.Reset.Mode = o.resetMode
	}
	if o.noJournal {
		cfg.Journal.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}
