package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"go-metrics-pipeline/internal/model"
)

func openRunStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := OpenRunStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openRunStore(t)

	backend := model.LocalDisk
	spec := model.MetricRunSpec{
		Name:    "nulls",
		Source:  model.Source{Type: "csv", URL: "data.csv"},
		BuiltIn: &model.BuiltInMetric{Metric: "count_null", Column: "value"},
		Backend: &backend,
	}
	require.NoError(t, s.SaveRun(ctx, "run-1", spec))

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, model.RunPending, run.Status)
	require.Equal(t, spec, run.Spec)
	require.Nil(t, run.Export)

	require.NoError(t, s.UpdateRunStatus(ctx, "run-1", model.RunCompleted))
	result := model.ExportResult{Backend: model.LocalDisk, Path: "exports/run-1/nulls.csv", RecordCount: 1, Attempts: 2, Success: true}
	require.NoError(t, s.SaveExport(ctx, "run-1", result))

	run, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, model.RunCompleted, run.Status)
	require.NotNil(t, run.Export)
	require.Equal(t, result.Path, run.Export.Path)
	require.Equal(t, 2, run.Export.Attempts)
}

func TestRunStoreErrors(t *testing.T) {
	ctx := context.Background()
	s := openRunStore(t)
	require.NoError(t, s.SaveRun(ctx, "run-1", model.MetricRunSpec{}))

	require.NoError(t, s.SaveRunError(ctx, "run-1", nil))
	require.NoError(t, s.SaveRunError(ctx, "run-1", pkgerrors.Wrap(model.ErrEmptyInput, "load")))
	require.NoError(t, s.SaveRunError(ctx, "run-1", errors.New("second")))

	runErrors, err := s.GetRunErrors(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, runErrors, 2)
	require.Equal(t, "load: no input batches", runErrors[0].Message)
	require.Equal(t, "second", runErrors[1].Message)

	none, err := s.GetRunErrors(ctx, "other")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestRunStoreList(t *testing.T) {
	ctx := context.Background()
	s := openRunStore(t)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Empty(t, runs)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveRun(ctx, id, model.MetricRunSpec{Name: id}))
	}
	runs, err = s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	_, err = s.GetRun(ctx, "missing")
	require.True(t, errors.Is(err, sql.ErrNoRows))
}
