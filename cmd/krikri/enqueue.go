package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jlicht/krikri/internal/domain/activity"
)

func newEnqueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue <agent>",
		Short: "Record an Activity and queue an agent run",
		Long: `Validate options against the agent's schema, record a new Activity and
push its id onto the agent's queue. Nothing is created when validation fails.

Examples:
  krikri enqueue harvest --opts '{"uri":"http://example.org/oai","metadata_prefix":"oai_dc"}'
  krikri enqueue enrich --opts '{"source_activity":"<id>","chains":["date"]}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("opts")
			opts, err := parseOpts(raw)
			if err != nil {
				return err
			}
			queueName, _ := cmd.Flags().GetString("queue")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			q, err := a.openQueue()
			if err != nil {
				return err
			}
			act, err := a.dispatcher(q).Dispatch(cmd.Context(), args[0], queueName, opts)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return printJSON(cmd, map[string]string{"activity_id": act.ID, "agent": act.Agent, "queue": act.Queue})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s on %s as activity %s\n", act.Agent, act.Queue, act.ID)
			return nil
		},
	}
	cmd.Flags().String("opts", "", "Agent options as a JSON object")
	cmd.Flags().String("queue", "", "Queue to push to (defaults to the agent's queue)")
	return cmd
}

// parseOpts decodes a JSON object of agent options. Empty input means no
// options.
func parseOpts(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var opts map[string]any
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		return nil, fmt.Errorf("--opts must be a JSON object: %w", err)
	}
	return opts, nil
}

func newActivityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activity <id>",
		Short: "Show an activity's lifecycle and failures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			act, err := a.activities.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd, act)
			}
			printActivity(cmd, act)
			return nil
		},
	}
}

func printActivity(cmd *cobra.Command, act *activity.Activity) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Activity %s\n", act.ID)
	fmt.Fprintf(out, "  agent:  %s\n", act.Agent)
	fmt.Fprintf(out, "  queue:  %s\n", act.Queue)
	fmt.Fprintf(out, "  phase:  %s\n", act.Phase())
	if len(act.Opts) > 0 {
		fmt.Fprintf(out, "  opts:   %s\n", act.Opts)
	}
	if act.Ended() {
		fmt.Fprintf(out, "  took:   %s\n", act.Duration())
	}
	if act.Error != "" {
		fmt.Fprintf(out, "  error:  %s\n", act.Error)
	}
	if len(act.Failures) > 0 {
		fmt.Fprintf(out, "  %d item failures:\n", len(act.Failures))
		for _, f := range act.Failures {
			fmt.Fprintf(out, "    %s %s: %s\n", f.EntityID, f.Field, f.Message)
		}
	}
}

func newAgentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List dispatchable agents and their options",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			defs := a.registry.Definitions()
			if jsonOutput(cmd) {
				type agentJSON struct {
					Name    string   `json:"name"`
					Aliases []string `json:"aliases,omitempty"`
					Queue   string   `json:"queue"`
					Options []string `json:"options"`
				}
				out := make([]agentJSON, 0, len(defs))
				for _, def := range defs {
					out = append(out, agentJSON{Name: def.Name, Aliases: def.Aliases, Queue: def.QueueName(), Options: def.Schema.Keys()})
				}
				return printJSON(cmd, out)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "AGENT\tQUEUE\tALIASES\tOPTIONS")
			for _, def := range defs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", def.Name, def.QueueName(), strings.Join(def.Aliases, ","), strings.Join(def.Schema.Keys(), ","))
			}
			return tw.Flush()
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// newApp runs migrations on open.
			a, err := newApp(cfg, os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()
			a.logger.Info("schema up to date", "db", cfg.DB.Path)
			return nil
		},
	}
}
