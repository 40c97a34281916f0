package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "krikri",
		Short: "Krikri - metadata harvesting and enrichment pipeline",
		Long: `krikri harvests metadata from OAI-PMH repositories, enriches it into
aggregations and records the provenance of every run as an Activity.

Agents are queued on Redis and run by workers; the MCP server exposes
dispatch and provenance lookups to MCP clients.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (overrides KRIKRI_CONFIG_PATH)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newWorkCmd(),
		newEnqueueCmd(),
		newActivityCmd(),
		newAgentsCmd(),
		newMigrateCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput(cmd) {
				printJSON(cmd, map[string]string{"version": version})
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "krikri version %s\n", version)
		},
	}
}
