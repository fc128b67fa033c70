package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cotbench/cotbench/internal/application"
	"github.com/cotbench/cotbench/internal/backup"
)

func newSessionsCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List evaluation sessions from the backup database",
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

			sessions, err := store.GetSessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no sessions recorded")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tSTARTED\tMODEL\tDATASET\tQUESTIONS")
			for _, s := range sessions {
				started := time.Unix(int64(s.StartTime), 0).UTC().Format(time.RFC3339)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					s.SessionID, started, s.Model, s.Dataset, s.TotalQuestions)
			}
			return w.Flush()
		},
	}
}
