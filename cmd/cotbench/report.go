package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cotbench/cotbench/internal/application"
	"github.com/cotbench/cotbench/internal/backup"
)

func newReportCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "report <session-id>",
		Short: "Print per-strategy metrics for a recorded session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := application.Load(root.configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(root.verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			store, err := backup.Open(cfg.Storage.BackupDBPath, logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			results, err := store.GetSessionResults(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("loading session %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session %s (model %s, dataset %s, %d questions)\n\n",
				results.Session.SessionID, results.Session.Model,
				results.Session.Dataset, results.Session.TotalQuestions)
			printStrategyMetrics(out, results.OverallMetrics)
			return nil
		},
	}
}
