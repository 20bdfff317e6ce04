package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sentinel/pkg/simulator"
)

// simulateConfig holds the flags of the simulate command.
type simulateConfig struct {
	addr      string
	threshold int
	delay     time.Duration
}

// newSimulateCmd creates the "sentinel simulate" subcommand.
func newSimulateCmd(g *globalOptions) *cobra.Command {
	var sc simulateConfig

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a local risk engine",
		Long: "Serves the status, execute, Q&A, reset and voice webhook endpoints with\n" +
			"CEL risk rules from the config file (or the built-in rules). Use it to\n" +
			"drive the console without the real backend.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			log, err := logger(cmd, cfg)
			if err != nil {
				return err
			}

			opts := simulator.Options{
				Rules:         cfg.Simulator.Rules,
				Threshold:     cfg.Simulator.Threshold,
				AnalysisDelay: cfg.Simulator.AnalysisDelay.Std(),
				OperatorPhone: cfg.Operator.Phone,
				Logger:        log,
			}
			addr := cfg.Simulator.Addr
			flags := cmd.Flags()
			if flags.Changed("addr") {
				addr = sc.addr
			}
			if flags.Changed("threshold") {
				opts.Threshold = sc.threshold
			}
			if flags.Changed("delay") {
				opts.AnalysisDelay = sc.delay
			}

			sim, err := simulator.New(opts)
			if err != nil {
				return fmt.Errorf("build simulator: %w", err)
			}

			ready := make(chan string, 1)
			errc := make(chan error, 1)
			go func() { errc <- sim.ListenAndServe(cmd.Context(), addr, ready) }()

			select {
			case bound := <-ready:
				fmt.Fprintf(cmd.OutOrStdout(), "simulator listening on http://%s\n", bound)
			case err := <-errc:
				return err
			}
			return <-errc
		},
	}

	f := cmd.Flags()
	f.StringVar(&sc.addr, "addr", "", "listen address (default from config, 127.0.0.1:8000)")
	f.IntVar(&sc.threshold, "threshold", simulator.DefaultThreshold, "risk scores above this block the action")
	f.DurationVar(&sc.delay, "delay", 0, "time spent in ANALYZING before the verdict")

	return cmd
}
