package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cotbench/cotbench/internal/application"
	"github.com/cotbench/cotbench/internal/backup"
)

func newExportCmd(root *rootFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a recorded session to a JSON file",
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

			path, err := store.ExportToJSON(cmd.Context(), args[0], output)
			if err != nil {
				return fmt.Errorf("exporting session %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default results/backup_<session>.json)")
	return cmd
}
