package pipeline

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"go-metrics-pipeline/internal/model"
	"go-metrics-pipeline/internal/store"
)

const defaultRunName = "metrics"

// BuildTransformation resolves the transformation a run applies: a
// built-in metric, a decoded instruction list, or the identity.
func BuildTransformation(spec model.MetricRunSpec) (model.Transformation, error) {
	switch {
	case spec.BuiltIn != nil && len(spec.Instructions) > 0:
		return model.Transformation{}, errors.New("builtin and instructions are mutually exclusive")
	case spec.BuiltIn != nil:
		if spec.BuiltIn.Column == "" {
			return model.Transformation{}, errors.Wrap(model.ErrSchema, "built-in metric needs a column")
		}
		return NewBuiltInMetricsBuilder().ByName(spec.BuiltIn.Metric, spec.BuiltIn.Column, spec.BuiltIn.Tags...)
	default:
		return model.DecodeTransformation(spec.Instructions)
	}
}

// Runner drives one metric run end to end: load the source, execute the
// transformation and publish the result, recording progress in the run
// store.
type Runner struct {
	executor  *Executor
	publisher *Publisher
	runs      *store.RunStore
	logger    log.Logger
}

func NewRunner(executor *Executor, publisher *Publisher, runs *store.RunStore, logger log.Logger) *Runner {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Runner{executor: executor, publisher: publisher, runs: runs, logger: logger}
}

// Run executes the run stored under runID. The run ends completed or
// failed; on failure the error is also saved against the run.
func (r *Runner) Run(ctx context.Context, runID string, spec model.MetricRunSpec) (result model.ExportResult, err error) {
	start := time.Now()
	logger := log.With(r.logger, "run", runID)
	backend := model.Stdout
	if spec.Backend != nil {
		backend = *spec.Backend
	}
	level.Info(logger).Log("msg", "starting metric run", "source", spec.Source.URL, "backend", backend)

	defer func() {
		// The outcome is recorded even when ctx was cancelled.
		final := context.WithoutCancel(ctx)
		if err != nil {
			level.Error(logger).Log("msg", "metric run failed", "err", err)
			r.setStatus(final, logger, runID, model.RunFailed)
			if saveErr := r.runs.SaveRunError(final, runID, err); saveErr != nil {
				level.Warn(logger).Log("msg", "failed to save run error", "err", saveErr)
			}
			return
		}
		r.setStatus(final, logger, runID, model.RunCompleted)
		level.Info(logger).Log("msg", "metric run completed", "rows", result.RecordCount, "path", result.Path, "duration", time.Since(start))
	}()

	t, err := BuildTransformation(spec)
	if err != nil {
		return model.ExportResult{}, err
	}

	r.setStatus(ctx, logger, runID, model.RunExecuting)
	batches, err := LoadSource(ctx, spec.Source, r.executor.cfg.BatchSize)
	if err != nil {
		return model.ExportResult{}, err
	}
	defer releaseAll(batches)

	out, err := r.executor.Execute(ctx, batches, t)
	if err != nil {
		return model.ExportResult{}, err
	}
	defer releaseAll(out)

	r.setStatus(ctx, logger, runID, model.RunPublishing)
	name := spec.Name
	if name == "" {
		name = defaultRunName
	}
	result, err = r.publisher.Publish(ctx, backend, runID, name, out)
	if saveErr := r.runs.SaveExport(context.WithoutCancel(ctx), runID, result); saveErr != nil {
		level.Warn(logger).Log("msg", "failed to save export result", "err", saveErr)
	}
	return result, err
}

func (r *Runner) setStatus(ctx context.Context, logger log.Logger, runID, status string) {
	if err := r.runs.UpdateRunStatus(ctx, runID, status); err != nil {
		level.Warn(logger).Log("msg", "failed to update run status", "status", status, "err", err)
	}
}
