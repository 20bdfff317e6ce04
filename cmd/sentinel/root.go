package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"sentinel/internal/appversion"
	"sentinel/internal/logging"
	"sentinel/pkg/config"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	baseURL    string
}

// load reads the configuration and applies the persistent flag overrides.
func (g *globalOptions) load() (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if g.baseURL != "" {
		cfg.BaseURL = g.baseURL
		if err := cfg.Validate(); err != nil {
			return config.Config{}, fmt.Errorf("--url: %w", err)
		}
	}
	return cfg, nil
}

// logger returns a stderr logger at the configured level.
func logger(cmd *cobra.Command, cfg config.Config) (*slog.Logger, error) {
	return logging.New(cmd.ErrOrStderr(), cfg.Log.Level)
}

// newRootCmd creates the root sentinel command with all subcommands attached.
func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "sentinel",
		Short:         "Safety-gate console for agent actions",
		Long:          "sentinel watches a risk engine that gates agent actions behind a\nhuman phone approval. It submits actions, shows the current decision\ncycle and reads back the audit journal.",
		Version:       fmt.Sprintf("sentinel %s", appversion.Full()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "config file (default $SENTINEL_HOME/config.yaml)")
	pf.StringVar(&g.baseURL, "url", "", "backend base URL")

	cmd.AddCommand(
		newDashCmd(),
		newStatusCmd(g),
		newExecuteCmd(g),
		newHistoryCmd(g),
		newSimulateCmd(g),
		newConfigCmd(g),
	)

	return cmd
}
