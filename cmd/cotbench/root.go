package main

import (
	"github.com/spf13/cobra"
)

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "cotbench",
		Short:         "Benchmark chain-of-thought prompting strategies",
		Long:          "cotbench runs a question dataset through a set of prompting strategies,\nscores the answers with an LLM judge, and persists the results to flat\nfiles and a SQLite backup for later reporting.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "cotbench.yaml", "path to the YAML configuration file")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newRunCmd(flags),
		newSessionsCmd(flags),
		newReportCmd(flags),
		newExportCmd(flags),
		newIndexCmd(flags),
		newBatchEvaluateCmd(flags),
	)
	return cmd
}
