package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"sentinel/pkg/client"
)

// executeConfig holds the flags of the execute command.
type executeConfig struct {
	agent     string
	action    string
	payload   string
	reasoning string
}

// newExecuteCmd creates the "sentinel execute" subcommand.
func newExecuteCmd(g *globalOptions) *cobra.Command {
	var ec executeConfig

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Submit an action to the risk engine",
		Long:  "Sends an action to the execute endpoint. Unset flags fall back to the\ntrigger section of the config file. Exits with status 2 when the backend\nrejects the request or cannot be reached.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			log, err := logger(cmd, cfg)
			if err != nil {
				return err
			}

			req := cfg.Request()
			flags := cmd.Flags()
			if flags.Changed("agent") {
				req.AgentID = ec.agent
			}
			if flags.Changed("action") {
				req.Action = ec.action
			}
			if flags.Changed("reasoning") {
				req.Reasoning = ec.reasoning
			}
			if flags.Changed("payload") {
				payload := map[string]any{}
				if err := json.Unmarshal([]byte(ec.payload), &payload); err != nil {
					return fmt.Errorf("--payload: want a JSON object: %w", err)
				}
				req.Payload = payload
			}

			log.Debug("submitting action", "agent", req.AgentID, "action", req.Action, "url", cfg.BaseURL)
			resp, err := client.New(cfg.BaseURL).Execute(cmd.Context(), req)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch {
			case resp.RiskScore != nil && resp.Analysis != nil:
				fmt.Fprintf(w, "%s (risk %d/100): %s\n", resp.Status, *resp.RiskScore, *resp.Analysis)
			case resp.RiskScore != nil:
				fmt.Fprintf(w, "%s (risk %d/100)\n", resp.Status, *resp.RiskScore)
			case resp.Status != "":
				fmt.Fprintln(w, resp.Status)
			default:
				fmt.Fprintln(w, "submitted")
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&ec.agent, "agent", "", "agent id (default from config)")
	f.StringVar(&ec.action, "action", "", "action name, e.g. PAY_INVOICE (default from config)")
	f.StringVar(&ec.payload, "payload", "", `action payload as a JSON object, e.g. '{"amount":10000}'`)
	f.StringVar(&ec.reasoning, "reasoning", "", "why the agent wants to act (default from config)")

	return cmd
}
