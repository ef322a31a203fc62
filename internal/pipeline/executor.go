package pipeline

import (
	"context"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"go-metrics-pipeline/internal/config"
	"go-metrics-pipeline/internal/model"
	"go-metrics-pipeline/internal/store"
)

// observedTable is the name prefix input batches are registered under.
const observedTable = "obs_table"

// Executor applies transformations to columnar batches. It keeps no state
// between calls; every Execute runs in its own store.Session.
type Executor struct {
	cfg     config.ExecutorConfig
	alloc   memory.Allocator
	planner *Planner
	logger  log.Logger
	metrics *executorMetrics
}

// NewExecutor builds an Executor. A nil reg disables metric registration.
func NewExecutor(cfg config.ExecutorConfig, logger log.Logger, reg prometheus.Registerer) *Executor {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Executor{
		cfg:     cfg,
		alloc:   memory.DefaultAllocator,
		planner: NewPlanner(logger),
		logger:  logger,
		metrics: newExecutorMetrics(reg),
	}
}

// Execute registers batches as one table, applies t and collects the
// result. The batches must be non-empty and share one schema. The caller
// owns (and must Release) the returned records; their count and sizes need
// not match the input batching.
func (e *Executor) Execute(ctx context.Context, batches []arrow.Record, t model.Transformation) (out []arrow.Record, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		e.metrics.executions.WithLabelValues(status).Inc()
		e.metrics.duration.Observe(time.Since(start).Seconds())
	}()

	if len(batches) == 0 {
		return nil, model.ErrEmptyInput
	}

	session, err := store.NewSession(ctx, e.alloc)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	table, err := session.Register(ctx, observedTable, batches)
	if err != nil {
		return nil, errors.WithMessage(err, "register batches")
	}

	table, err = e.planner.Plan(ctx, t.Instructions(), table)
	if err != nil {
		return nil, errors.WithMessage(err, "plan transformation")
	}

	out, err = table.Collect(ctx, e.cfg.BatchSize)
	if err != nil {
		return nil, errors.WithMessage(err, "collect")
	}

	var rows int64
	for _, rec := range out {
		rows += rec.NumRows()
	}
	e.metrics.outputRows.Add(float64(rows))
	level.Debug(e.logger).Log("msg", "transformation executed", "instructions", t.Len(), "input_batches", len(batches), "output_batches", len(out), "output_rows", rows, "duration", time.Since(start))
	return out, nil
}

// ExecuteAll applies every transformation to the same batches
// concurrently. Results are in the order of transformations. If any
// execution fails, the records of the others are released and the first
// error is returned.
func (e *Executor) ExecuteAll(ctx context.Context, batches []arrow.Record, transformations ...model.Transformation) ([][]arrow.Record, error) {
	results := make([][]arrow.Record, len(transformations))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range transformations {
		g.Go(func() error {
			out, err := e.Execute(gctx, batches, t)
			if err != nil {
				return errors.WithMessagef(err, "transformation %d", i)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, out := range results {
			releaseAll(out)
		}
		return nil, err
	}
	return results, nil
}

func releaseAll(records []arrow.Record) {
	for _, rec := range records {
		rec.Release()
	}
}
