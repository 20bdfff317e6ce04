package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sentinel/pkg/journal"
	"sentinel/pkg/protocol"
)

// historyConfig holds the flags of the history command.
type historyConfig struct {
	limit int
	kind  string
}

// newHistoryCmd creates the "sentinel history" subcommand.
func newHistoryCmd(g *globalOptions) *cobra.Command {
	var hc historyConfig

	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "Read the audit journal",
		Long:  "Without arguments, lists recorded console sessions newest first.\nWith a session id, prints that session's feed lines, transitions and resets.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			path := cfg.Journal.Path
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(w, "no journal at %s\n", path)
				return nil
			}

			j, err := journal.Open(path)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer j.Close()

			if len(args) == 0 {
				return printSessions(cmd.Context(), j, w, hc.limit)
			}
			return printEntries(cmd.Context(), j, w, journal.QueryOpts{
				SessionID: args[0],
				Kind:      hc.kind,
				Limit:     hc.limit,
			})
		},
	}

	cmd.Flags().IntVarP(&hc.limit, "limit", "n", 20, "number of sessions or entries to show (0 = all)")
	cmd.Flags().StringVar(&hc.kind, "kind", "", "only show entries of this kind (log, transition, reset)")

	return cmd
}

// printSessions lists journal sessions newest first.
func printSessions(ctx context.Context, j *journal.Journal, w io.Writer, limit int) error {
	sessions, err := j.Sessions(ctx, limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "no sessions recorded")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-19s  %7s  %s\n", "SESSION", "STARTED", "ENTRIES", "BACKEND")
	for _, s := range sessions {
		fmt.Fprintf(w, "%-36s  %-19s  %7d  %s\n",
			s.ID, s.StartedAt.Local().Format(time.DateTime), s.Entries, s.BaseURL)
	}
	return nil
}

// printEntries prints one session's entries oldest first.
func printEntries(ctx context.Context, j *journal.Journal, w io.Writer, opts journal.QueryOpts) error {
	switch opts.Kind {
	case "", protocol.EntryLog, protocol.EntryTransition, protocol.EntryReset:
	default:
		return fmt.Errorf("--kind %q: want %s, %s or %s", opts.Kind,
			protocol.EntryLog, protocol.EntryTransition, protocol.EntryReset)
	}

	entries, err := j.Entries(ctx, opts)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(w, "no entries for session %s\n", opts.SessionID)
		return nil
	}

	for _, e := range entries {
		fmt.Fprintf(w, "%s  %-10s  %-10s  %s\n",
			e.CreatedAt.Local().Format(time.TimeOnly), e.Kind, e.UIStatus, e.Text)
	}
	return nil
}
