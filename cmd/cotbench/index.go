package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cotbench/cotbench/internal/application"
	"github.com/cotbench/cotbench/internal/dataset"
)

func newIndexCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the similarity index",
	}
	cmd.AddCommand(newIndexRebuildCmd(root))
	return cmd
}

func newIndexRebuildCmd(root *rootFlags) *cobra.Command {
	var datasetPath string

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Re-embed the dataset into a fresh vector index",
		Long: `Clears the persisted vector index and re-embeds every question in the
dataset. Required after changing the embedding model or dimension, since
vectors from different embedders cannot be compared.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := application.Load(root.configPath)
			if err != nil {
				return err
			}
			if datasetPath != "" {
				cfg.Storage.DatasetPath = datasetPath
			}
			logger, err := newLogger(root.verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			questions, err := dataset.LoadQuestions(cfg.Storage.DatasetPath, logger)
			if err != nil {
				return err
			}
			idx, err := openIndex(cfg, logger)
			if err != nil {
				return err
			}

			n, err := dataset.SeedIndex(cmd.Context(), idx, questions, true, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d questions\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "question file override")
	return cmd
}
