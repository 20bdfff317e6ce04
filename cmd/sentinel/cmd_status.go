package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"sentinel/pkg/client"
	"sentinel/pkg/protocol"
	"sentinel/pkg/reconcile"
)

// newStatusCmd creates the "sentinel status" subcommand.
func newStatusCmd(g *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current decision cycle",
		Long:  "Fetches one snapshot from the backend. By default the snapshot is run\nthrough the console state machine and shown the way the dashboard would\nshow it on a fresh start; --json prints the snapshot itself.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}

			snap, err := client.New(cfg.BaseURL).FetchStatus(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}

			st, _ := reconcile.Reconcile(reconcile.New(), snap, cfg.Policy())
			printState(w, snap, st)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw snapshot as JSON")

	return cmd
}

// printState writes a reconciled snapshot in the dashboard's terms.
func printState(w io.Writer, snap protocol.Snapshot, st reconcile.State) {
	fmt.Fprintf(w, "%-12s %s\n", "console:", st.Status)
	fmt.Fprintf(w, "%-12s %s\n", "backend:", snap.Status)
	if st.RiskScore != nil {
		fmt.Fprintf(w, "%-12s %d/100\n", "risk score:", *st.RiskScore)
	}
	if a := snap.AnalysisText(); a != "" {
		fmt.Fprintf(w, "%-12s %s\n", "analysis:", a)
	}
	if snap.LastAction != nil {
		fmt.Fprintf(w, "%-12s %s\n", "action:", *snap.LastAction)
	}
	if st.Transcript != "" {
		fmt.Fprintf(w, "%-12s %q\n", "transcript:", st.Transcript)
	}

	lines := st.Feed.Lines()
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "feed (newest first):")
	for _, line := range lines {
		fmt.Fprintf(w, "  %s\n", line)
	}
}
