package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// dashBinary is the dashboard executable looked up on PATH.
const dashBinary = "sentinel-dash"

// newDashCmd creates the "sentinel dash" subcommand.
func newDashCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "dash [flags]",
		Short:              "Launch interactive console",
		Long:               "Opens the sentinel-dash TUI. All arguments are passed through,\nso `sentinel dash --reset auto` runs `sentinel-dash --reset auto`.",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dashCmd := exec.CommandContext(cmd.Context(), dashBinary, args...)
			dashCmd.Stdin = os.Stdin
			dashCmd.Stdout = os.Stdout
			dashCmd.Stderr = os.Stderr

			if err := dashCmd.Run(); err != nil {
				return fmt.Errorf("run %s: %w", dashBinary, err)
			}

			return nil
		},
	}
}
