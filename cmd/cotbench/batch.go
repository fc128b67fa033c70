package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cotbench/cotbench/internal/application"
	"github.com/cotbench/cotbench/internal/backup"
	"github.com/cotbench/cotbench/internal/convlog"
	"github.com/cotbench/cotbench/internal/domain"
	"github.com/cotbench/cotbench/internal/evaluation"
)

type batchFlags struct {
	strategy     string
	sessionID    string
	resultPrefix string
}

func newBatchEvaluateCmd(root *rootFlags) *cobra.Command {
	flags := &batchFlags{}

	cmd := &cobra.Command{
		Use:   "batch-evaluate",
		Short: "Judge previously logged conversations",
		Long: `Scores conversation logs that were written without evaluation (log-only
runs or judge outages). Each scored log is stamped in place, so repeated
batch runs never double-score. Results are flushed under a fresh batch
session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatchEvaluation(cmd, root, flags)
		},
	}

	cmd.Flags().StringVar(&flags.strategy, "strategy", "", "only evaluate logs for this strategy")
	cmd.Flags().StringVar(&flags.sessionID, "session", "", "only evaluate logs from this session")
	cmd.Flags().StringVar(&flags.resultPrefix, "result-prefix", "", "prefix namespacing the log directory and result artifacts")

	return cmd
}

func runBatchEvaluation(cmd *cobra.Command, root *rootFlags, flags *batchFlags) error {
	ctx := cmd.Context()

	cfg, err := application.Load(root.configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(root.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	judgeClient, err := buildClient(cfg.Judge)
	if err != nil {
		return err
	}
	judge, err := evaluation.NewJudge(judgeClient)
	if err != nil {
		return err
	}

	start := time.Now()
	sessionID := domain.NewSessionID(start)
	aggregator, err := evaluation.NewAggregator(sessionID, judge, logger)
	if err != nil {
		return err
	}

	logs, err := convlog.NewLogger(cfg.Storage.ConversationLogDir, flags.resultPrefix, logger)
	if err != nil {
		return err
	}

	summary, err := convlog.NewBatchEvaluator(logs, aggregator, logger).Run(ctx, convlog.BatchOptions{
		Strategy:  flags.strategy,
		SessionID: flags.sessionID,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Batch session %s: %d logs evaluated, %d failed\n",
		sessionID, summary.Evaluated, summary.Failed)
	if summary.Evaluated == 0 {
		return nil
	}

	session := domain.Session{
		SessionID:      sessionID,
		ResultPrefix:   flags.resultPrefix,
		Dataset:        "batch_evaluation",
		Model:          judgeClient.Model(),
		StartTime:      domain.Timestamp(start),
		EndTime:        domain.Timestamp(time.Now()),
		TotalQuestions: summary.Evaluated,
	}

	fileStore, err := evaluation.NewFileStore(cfg.Storage.ResultsDir, logger)
	if err != nil {
		return err
	}
	backupStore, err := backup.Open(cfg.Storage.BackupDBPath, logger)
	if err != nil {
		return err
	}
	defer func() { _ = backupStore.Close() }()

	results := aggregator.Records()
	overall := aggregator.Aggregate()
	if err := fileStore.Flush(ctx, session, results, overall); err != nil {
		return err
	}
	if err := backupStore.Flush(ctx, session, results, overall); err != nil {
		return err
	}

	printStrategyMetrics(out, overall)
	return nil
}
