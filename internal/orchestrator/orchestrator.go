// Package orchestrator drives evaluation runs: it walks the Cartesian
// product of questions and prompting strategies, executes each pair as an
// isolated task, and hands the accumulated results to the configured sinks
// when the run completes.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cotbench/cotbench/internal/domain"
	"github.com/cotbench/cotbench/internal/ports"
)

// Options configures a single run.
type Options struct {
	// StrategyFilter restricts the run to the named strategies. Unknown
	// names are ignored without error; an empty filter selects every
	// registered strategy.
	StrategyFilter []string

	// QuestionFilter restricts the run to the named question IDs. Unknown
	// IDs are ignored without error; an empty filter selects every question.
	QuestionFilter []string

	// MaxQuestions truncates the filtered question list to its first N
	// entries when positive.
	MaxQuestions int

	// Concurrency bounds the worker pool. Values below 2 select strictly
	// sequential execution: every strategy finishes for question i before
	// question i+1 starts.
	Concurrency int

	// LogOnly skips evaluation: responses are generated and logged to the
	// conversation sink but never judged or aggregated.
	LogOnly bool

	// ResultPrefix namespaces this run's result artifacts.
	ResultPrefix string

	// Dataset names the question set, for the session descriptor only.
	Dataset string
}

// Summary reports the outcome of a run. Failed counts tasks that errored or
// panicked; their absence from the results is the only trace they leave
// beyond logs.
type Summary struct {
	Session   domain.Session
	Succeeded int
	Failed    int
}

// Orchestrator executes evaluation runs. Tasks are fail-open: one bad
// (question, strategy) pair is logged and counted, never allowed to abort
// the remaining work.
type Orchestrator struct {
	client     ports.LLMClient
	strategies []ports.Strategy
	aggregator ports.ResultAggregator
	convSink   ports.ConversationSink
	sinks      []ports.ResultSink
	metrics    ports.RunMetrics
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// New wires an orchestrator. The conversation sink, result sinks, and
// metrics are optional; client, strategies, and aggregator are not.
func New(client ports.LLMClient, strategies []ports.Strategy, aggregator ports.ResultAggregator, opts ...Option) (*Orchestrator, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client cannot be nil")
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("at least one strategy is required")
	}
	if aggregator == nil {
		return nil, fmt.Errorf("aggregator cannot be nil")
	}

	o := &Orchestrator{
		client:     client,
		strategies: strategies,
		aggregator: aggregator,
		logger:     zap.NewNop(),
		tracer:     otel.Tracer("orchestrator"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the run logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithConversationSink enables raw exchange logging.
func WithConversationSink(sink ports.ConversationSink) Option {
	return func(o *Orchestrator) { o.convSink = sink }
}

// WithResultSinks sets the sinks flushed at the end of a run.
func WithResultSinks(sinks ...ports.ResultSink) Option {
	return func(o *Orchestrator) { o.sinks = sinks }
}

// WithMetrics enables task outcome metrics.
func WithMetrics(m ports.RunMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Run executes the question x strategy product and flushes results to the
// sinks. Task failures are absorbed into the summary; the returned error
// covers run-level problems only (no work selected, sink flush failure,
// context cancellation).
func (o *Orchestrator) Run(ctx context.Context, questions []domain.Question, opts Options) (Summary, error) {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Run")
	defer span.End()

	strategies := o.selectStrategies(opts.StrategyFilter)
	if len(strategies) == 0 {
		return Summary{}, fmt.Errorf("no strategies selected by filter %v", opts.StrategyFilter)
	}
	questions = selectQuestions(questions, opts.QuestionFilter)
	if opts.MaxQuestions > 0 && opts.MaxQuestions < len(questions) {
		questions = questions[:opts.MaxQuestions]
	}
	if len(questions) == 0 {
		return Summary{}, fmt.Errorf("no questions to evaluate")
	}

	start := o.now()
	sessionID := o.aggregator.SessionID()
	if sessionID == "" {
		sessionID = domain.NewSessionID(start)
	}
	session := domain.Session{
		SessionID:      sessionID,
		ResultPrefix:   opts.ResultPrefix,
		Dataset:        opts.Dataset,
		Model:          o.client.Model(),
		StartTime:      domain.Timestamp(start),
		TotalQuestions: len(questions),
	}

	o.logger.Info("starting evaluation run",
		zap.String("session_id", session.SessionID),
		zap.Int("questions", len(questions)),
		zap.Int("strategies", len(strategies)),
		zap.Int("concurrency", opts.Concurrency),
		zap.Bool("log_only", opts.LogOnly))
	span.SetAttributes(
		attribute.String("run.session_id", session.SessionID),
		attribute.Int("run.questions", len(questions)),
		attribute.Int("run.strategies", len(strategies)))

	var succeeded, failed atomic.Int64
	execute := func(ctx context.Context, q domain.Question, s ports.Strategy) {
		if err := o.runTask(ctx, q, s, session.SessionID, opts.LogOnly); err != nil {
			failed.Add(1)
			if o.metrics != nil {
				o.metrics.TaskFailed(s.Name())
			}
			o.logger.Error("task failed",
				zap.String("question_id", q.ID),
				zap.String("strategy", s.Name()),
				zap.Error(err))
			return
		}
		succeeded.Add(1)
		if o.metrics != nil {
			o.metrics.TaskSucceeded(s.Name())
		}
	}

	if opts.Concurrency > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Concurrency)
		for _, q := range questions {
			for _, s := range strategies {
				q, s := q, s
				g.Go(func() error {
					execute(gctx, q, s)
					return nil
				})
			}
		}
		// Tasks never return errors; Wait only observes cancellation.
		if err := g.Wait(); err != nil {
			return Summary{}, err
		}
	} else {
		for _, q := range questions {
			for _, s := range strategies {
				if err := ctx.Err(); err != nil {
					return Summary{}, err
				}
				execute(ctx, q, s)
			}
		}
	}

	session.EndTime = domain.Timestamp(o.now())
	summary := Summary{
		Session:   session,
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
	}

	if !opts.LogOnly {
		if err := o.flush(ctx, session); err != nil {
			return summary, err
		}
	}

	o.logger.Info("evaluation run complete",
		zap.String("session_id", session.SessionID),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// runTask executes one (question, strategy) pair end to end. A panic
// anywhere in the pipeline is converted to an error so a misbehaving
// strategy degrades to a single failed task.
func (o *Orchestrator) runTask(ctx context.Context, q domain.Question, s ports.Strategy, sessionID string, logOnly bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	ctx, span := o.tracer.Start(ctx, "Orchestrator.runTask",
		trace.WithAttributes(
			attribute.String("task.question_id", q.ID),
			attribute.String("task.strategy", s.Name())))
	defer span.End()

	started := o.now()
	defer func() {
		if o.metrics != nil {
			o.metrics.ObserveTaskDuration(s.Name(), o.now().Sub(started))
		}
		if err != nil {
			span.RecordError(err)
		}
	}()

	prompt, err := s.GeneratePrompt(ctx, q.Text)
	if err != nil {
		return fmt.Errorf("generating prompt: %w", err)
	}

	raw, err := o.client.Complete(ctx, prompt, ports.GenerateOptions{})
	if err != nil {
		return fmt.Errorf("model completion: %w", err)
	}

	resp := s.ProcessResponse(raw)

	if o.convSink != nil {
		if _, err := o.convSink.LogConversation(q, resp, s.Name(), sessionID); err != nil {
			return fmt.Errorf("logging conversation: %w", err)
		}
	}

	if logOnly {
		return nil
	}
	if _, err := o.aggregator.Evaluate(ctx, q, resp, s.Name()); err != nil {
		return fmt.Errorf("evaluating response: %w", err)
	}
	return nil
}

func (o *Orchestrator) flush(ctx context.Context, session domain.Session) error {
	if len(o.sinks) == 0 {
		return nil
	}
	results := o.aggregator.Records()
	overall := o.aggregator.Aggregate()

	var errs []error
	for _, sink := range o.sinks {
		if err := sink.Flush(ctx, session, results, overall); err != nil {
			o.logger.Error("result sink flush failed", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func selectQuestions(questions []domain.Question, filter []string) []domain.Question {
	if len(filter) == 0 {
		return questions
	}
	wanted := make(map[string]bool, len(filter))
	for _, id := range filter {
		wanted[id] = true
	}
	var selected []domain.Question
	for _, q := range questions {
		if wanted[q.ID] {
			selected = append(selected, q)
		}
	}
	return selected
}

func (o *Orchestrator) selectStrategies(filter []string) []ports.Strategy {
	if len(filter) == 0 {
		return o.strategies
	}
	wanted := make(map[string]bool, len(filter))
	for _, name := range filter {
		wanted[name] = true
	}
	var selected []ports.Strategy
	for _, s := range o.strategies {
		if wanted[s.Name()] {
			selected = append(selected, s)
		}
	}
	return selected
}
