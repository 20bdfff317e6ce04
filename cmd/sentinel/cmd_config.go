package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sentinel/pkg/config"
)

// newConfigCmd creates the "sentinel config" subcommand.
func newConfigCmd(g *globalOptions) *cobra.Command {
	var showPath bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  "Prints the configuration after defaults, the config file, SENTINEL_*\nenvironment variables and flags are applied, as YAML.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showPath {
				path := g.configPath
				if path == "" {
					path = config.DefaultPath()
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			}

			cfg, err := g.load()
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return fmt.Errorf("render config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().BoolVar(&showPath, "path", false, "print the config file location instead")

	return cmd
}
