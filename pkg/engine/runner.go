package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openfroyo/zbxsync/pkg/telemetry"
)

// Journal receives run and step records. Implementations must not fail the run;
// errors they return are logged.
type Journal interface {
	StartRun(ctx context.Context, runID string, startedAt time.Time) error
	RecordStep(ctx context.Context, runID string, result StepResult, stepErr error) error
	FinishRun(ctx context.Context, summary *RunSummary) error
}

// Runner executes steps one at a time in dependency order.
type Runner struct {
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	journal Journal
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMetrics attaches a metrics collector.
func WithMetrics(m *telemetry.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithTracer attaches a tracer.
func WithTracer(t *telemetry.Tracer) RunnerOption {
	return func(r *Runner) { r.tracer = t }
}

// WithJournal attaches a run journal.
func WithJournal(j Journal) RunnerOption {
	return func(r *Runner) { r.journal = j }
}

// NewRunner creates a sequential step runner.
func NewRunner(logger zerolog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{logger: telemetry.Component(logger, "engine")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run orders the steps and executes them sequentially. The first failing step aborts
// the run; resources converged by earlier steps stay converged. The returned summary
// is always non-nil.
func (r *Runner) Run(ctx context.Context, steps []Step) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.New().String(),
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
		Total:     len(steps),
	}
	logger := r.logger.With().Str("run_id", summary.RunID).Logger()

	ctx, span := r.tracer.StartRunSpan(ctx, summary.RunID)
	defer span.End()

	if r.journal != nil {
		if err := r.journal.StartRun(ctx, summary.RunID, summary.StartedAt); err != nil {
			logger.Warn().Err(err).Msg("Failed to journal run start")
		}
	}

	builder := NewDAGBuilder()
	graph, err := builder.Build(steps)
	if err == nil {
		err = builder.ValidateGraph(graph)
	}
	if err != nil {
		return r.finish(ctx, logger, summary, err), err
	}

	logger.Info().Int("steps", len(steps)).Int("levels", graph.Depth).Msg("Starting reconciliation")

	for _, step := range builder.Ordered() {
		if err := ctx.Err(); err != nil {
			return r.finish(ctx, logger, summary, err), err
		}

		result, err := r.runStep(ctx, logger, step)
		if r.journal != nil {
			if jerr := r.journal.RecordStep(ctx, summary.RunID, result, err); jerr != nil {
				logger.Warn().Err(jerr).Str("step", step.ID).Msg("Failed to journal step")
			}
		}
		if err != nil {
			summary.Failed++
			summary.Results = append(summary.Results, result)
			return r.finish(ctx, logger, summary, err), err
		}
		summary.Record(result)
	}

	telemetry.RecordSuccess(span)
	return r.finish(ctx, logger, summary, nil), nil
}

func (r *Runner) runStep(ctx context.Context, logger zerolog.Logger, step *Step) (StepResult, error) {
	ctx, span := r.tracer.StartStepSpan(ctx, step.Kind, step.Key)
	defer span.End()
	ctx = logger.With().Str("step", step.ID).Logger().WithContext(ctx)

	timer := telemetry.NewTimer()
	result, err := step.Run(ctx)
	result.StepID = step.ID
	result.Duration = timer.Duration()
	if result.Kind == "" {
		result.Kind = step.Kind
	}
	if result.Key == "" {
		result.Key = step.Key
	}

	if err != nil {
		telemetry.RecordError(span, err)
		logger.Error().Err(err).
			Str("kind", step.Kind).
			Str("key", step.Key).
			Msg("Ensure failed")
		return result, err
	}

	span.SetAttributes(telemetry.AttrOutcome.String(string(result.Outcome)))
	r.metrics.RecordEnsure(result.Kind, string(result.Outcome), result.Duration)

	event := logger.Info()
	if result.Outcome == OutcomeSkip {
		event = logger.Warn()
	}
	event.Str("kind", result.Kind).
		Str("key", result.Key).
		Str("id", result.ID).
		Str("outcome", string(result.Outcome)).
		Int("changes", len(result.Changes)).
		Dur("duration", result.Duration)
	if result.Message != "" {
		event = event.Str("note", result.Message)
	}
	event.Msg("Ensured")

	return result, nil
}

func (r *Runner) finish(ctx context.Context, logger zerolog.Logger, summary *RunSummary, err error) *RunSummary {
	summary.Duration = time.Since(summary.StartedAt)
	summary.Status = RunStatusSucceeded
	if err != nil {
		summary.Status = RunStatusFailed
		summary.Error = err.Error()

		class := ClassOf(err)
		if errors.Is(err, context.Canceled) {
			class = "canceled"
		}
		r.metrics.RecordError(string(class))
	}
	r.metrics.RecordRunCompleted(string(summary.Status), summary.Duration)

	if r.journal != nil {
		if jerr := r.journal.FinishRun(ctx, summary); jerr != nil {
			logger.Warn().Err(jerr).Msg("Failed to journal run completion")
		}
	}

	logger.Info().
		Str("status", string(summary.Status)).
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("unchanged", summary.Unchanged).
		Int("recreated", summary.Recreated).
		Int("skipped", summary.Skipped).
		Dur("duration", summary.Duration).
		Msg("Reconciliation finished")

	return summary
}
