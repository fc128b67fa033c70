package main

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cotbench/cotbench/infrastructure/middleware"
	"github.com/cotbench/cotbench/internal/application"
	"github.com/cotbench/cotbench/internal/backup"
	"github.com/cotbench/cotbench/internal/convlog"
	"github.com/cotbench/cotbench/internal/dataset"
	"github.com/cotbench/cotbench/internal/domain"
	"github.com/cotbench/cotbench/internal/evaluation"
	"github.com/cotbench/cotbench/internal/orchestrator"
	"github.com/cotbench/cotbench/internal/ports"
	"github.com/cotbench/cotbench/internal/vecindex"
)

type runFlags struct {
	strategies   []string
	questions    []string
	maxQuestions int
	concurrency  int
	logOnly      bool
	forceRebuild bool
	resultPrefix string
	datasetPath  string
}

func newRunCmd(root *rootFlags) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the evaluation suite",
		Long: `Runs every question in the dataset through the selected prompting
strategies, judges the answers, and flushes the results to the results
directory and the SQLite backup.`,
		Example: `  # Full run with config defaults
  cotbench run

  # Only the retrieval-based strategies, eight workers
  cotbench run --strategies few_shot,auto_cot,combined --concurrency 8

  # Generate and log conversations without judging them
  cotbench run --log-only`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluation(cmd, root, flags)
		},
	}

	cmd.Flags().StringSliceVar(&flags.strategies, "strategies", nil, "comma-separated strategy names to run (default all)")
	cmd.Flags().StringSliceVar(&flags.questions, "questions", nil, "comma-separated question IDs to run (default all)")
	cmd.Flags().IntVar(&flags.maxQuestions, "max-questions", 0, "truncate the dataset to its first N questions")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "worker pool size; below 2 runs sequentially")
	cmd.Flags().BoolVar(&flags.logOnly, "log-only", false, "log conversations without judging or persisting results")
	cmd.Flags().BoolVar(&flags.forceRebuild, "force-rebuild", false, "rebuild the vector index from the dataset before running")
	cmd.Flags().StringVar(&flags.resultPrefix, "result-prefix", "", "prefix namespacing this run's result artifacts")
	cmd.Flags().StringVar(&flags.datasetPath, "dataset", "", "question file override")

	return cmd
}

func runEvaluation(cmd *cobra.Command, root *rootFlags, flags *runFlags) error {
	ctx := cmd.Context()

	cfg, err := application.Load(root.configPath)
	if err != nil {
		return err
	}
	if flags.datasetPath != "" {
		cfg.Storage.DatasetPath = flags.datasetPath
	}
	if flags.concurrency == 0 {
		flags.concurrency = cfg.Run.Concurrency
	}
	if len(flags.strategies) == 0 {
		flags.strategies = cfg.Run.Strategies
	}
	if flags.maxQuestions == 0 {
		flags.maxQuestions = cfg.Run.MaxQuestions
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
	seeded, err := dataset.SeedIndex(ctx, idx, questions, flags.forceRebuild, logger)
	if err != nil {
		return fmt.Errorf("seeding vector index: %w", err)
	}
	if seeded > 0 {
		logger.Info("vector index seeded", zap.Int("questions", seeded))
	}
	retriever := vecindex.NewRetriever(idx, logger)

	clients, err := buildClients(cfg)
	if err != nil {
		return err
	}
	strats, err := buildStrategies(clients, retriever, cfg.Run.FewShotExamples, logger)
	if err != nil {
		return err
	}

	judge, err := evaluation.NewJudge(clients.judge)
	if err != nil {
		return err
	}
	sessionID := domain.NewSessionID(time.Now())
	aggregator, err := evaluation.NewAggregator(sessionID, judge, logger)
	if err != nil {
		return err
	}

	convLogger, err := convlog.NewLogger(cfg.Storage.ConversationLogDir, flags.resultPrefix, logger)
	if err != nil {
		return err
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

	orch, err := orchestrator.New(clients.answer, strats, aggregator,
		orchestrator.WithLogger(logger),
		orchestrator.WithConversationSink(convLogger),
		orchestrator.WithResultSinks(fileStore, backupStore),
		orchestrator.WithMetrics(middleware.NewPrometheusMetrics(prometheus.DefaultRegisterer)),
	)
	if err != nil {
		return err
	}

	summary, err := orch.Run(ctx, questions, orchestrator.Options{
		StrategyFilter: flags.strategies,
		QuestionFilter: flags.questions,
		MaxQuestions:   flags.maxQuestions,
		Concurrency:    flags.concurrency,
		LogOnly:        flags.logOnly,
		ResultPrefix:   flags.resultPrefix,
		Dataset:        cfg.Storage.DatasetPath,
	})
	if err != nil {
		return err
	}

	if !flags.logOnly {
		saveStrategyMetadata(cmd, backupStore, strats, aggregator, summary.Session.SessionID, cfg.Run.FewShotExamples, logger)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session %s: %d tasks succeeded, %d failed\n",
		summary.Session.SessionID, summary.Succeeded, summary.Failed)
	if !flags.logOnly {
		printStrategyMetrics(out, aggregator.Aggregate())
	}
	return nil
}

// saveStrategyMetadata records each executed strategy's descriptor alongside
// the session. Failures are logged, not fatal: metadata is advisory.
func saveStrategyMetadata(cmd *cobra.Command, store *backup.Store, strats []ports.Strategy, aggregator ports.ResultAggregator, sessionID string, fewShotK int, logger *zap.Logger) {
	executed := aggregator.Records()
	for _, s := range strats {
		if _, ok := executed[s.Name()]; !ok {
			continue
		}
		description := ""
		if d, ok := s.(interface{ Description() string }); ok {
			description = d.Description()
		}
		params := map[string]any{"few_shot_examples": fewShotK}
		if err := store.SaveStrategyMetadata(cmd.Context(), sessionID, s.Name(), s.Name(), description, params); err != nil {
			logger.Warn("failed to save strategy metadata",
				zap.String("strategy", s.Name()),
				zap.Error(err))
		}
	}
}
