package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"

	"go-metrics-pipeline/internal/model"
	"go-metrics-pipeline/internal/store"
)

// recordingTable records the operations applied to it.
type recordingTable struct {
	calls    *[]string
	failOn   string
	failWith error
}

func newRecordingTable() *recordingTable {
	return &recordingTable{calls: &[]string{}}
}

func (r *recordingTable) record(op string, args ...any) (store.Table, error) {
	if op == r.failOn {
		return nil, r.failWith
	}
	*r.calls = append(*r.calls, fmt.Sprintf("%s%v", op, args))
	return r, nil
}

func (r *recordingTable) Schema() *arrow.Schema { return arrow.NewSchema(nil, nil) }

func (r *recordingTable) Select(_ context.Context, columns ...string) (store.Table, error) {
	return r.record("select", columns)
}

func (r *recordingTable) Filter(_ context.Context, predicate string) (store.Table, error) {
	return r.record("filter", predicate)
}

func (r *recordingTable) Aggregate(_ context.Context, groupBy []string, aggregates []store.AggregateExpr) (store.Table, error) {
	return r.record("aggregate", groupBy, aggregates)
}

func (r *recordingTable) WithColumn(_ context.Context, name string, expr model.Expr) (store.Table, error) {
	return r.record("with_column", name, expr)
}

func (r *recordingTable) Collect(context.Context, int) ([]arrow.Record, error) {
	return nil, nil
}

func plan(t *testing.T, tr model.Transformation, table *recordingTable) ([]string, error) {
	t.Helper()
	_, err := NewPlanner(nil).Plan(context.Background(), tr.Instructions(), table)
	return *table.calls, err
}

func TestPlannerCouplesAggregatesIntoFirstGroupBy(t *testing.T) {
	tr := NewTransformationBuilder().
		Select("id", "value", "category", "region").
		Aggregate(model.Count, model.Target("n", "value")).
		Filter("value > 5").
		GroupBy("category").
		Aggregate(model.Sum, model.Target("total", "value"), model.Target("ids", "id")).
		GroupBy("region", "category").
		Literal("source", "sensor-a").
		Build()

	calls, err := plan(t, tr, newRecordingTable())
	require.NoError(t, err)
	require.Equal(t, []string{
		"select[[id value category region]]",
		"filter[value > 5]",
		"aggregate[[category region] [count(value) AS n sum(value) AS total sum(id) AS ids]]",
		"with_column[source lit(sensor-a)]",
	}, calls)
}

func TestPlannerGlobalAggregation(t *testing.T) {
	tr := NewTransformationBuilder().
		Aggregate(model.Count, model.Target(ValueColumn, model.RowCount)).
		GroupBy().
		Build()

	calls, err := plan(t, tr, newRecordingTable())
	require.NoError(t, err)
	require.Equal(t, []string{"aggregate[[] [count(*) AS value]]"}, calls)
}

func TestPlannerGroupByWithoutAggregateIsNoop(t *testing.T) {
	tr := NewTransformationBuilder().
		Select("category").
		GroupBy("category").
		Filter("category = 'a'").
		Build()

	calls, err := plan(t, tr, newRecordingTable())
	require.NoError(t, err)
	require.Equal(t, []string{"select[[category]]", "filter[category = 'a']"}, calls)
}

func TestPlannerAggregateWithoutGroupBy(t *testing.T) {
	tr := NewTransformationBuilder().
		Select("value").
		Aggregate(model.Max, model.Target("max", "value")).
		Build()

	calls, err := plan(t, tr, newRecordingTable())
	require.True(t, errors.Is(err, model.ErrAggregationWithoutGrouping), "got %v", err)
	require.Empty(t, calls)
}

func TestPlannerWrapsTableErrors(t *testing.T) {
	table := newRecordingTable()
	table.failOn = "filter"
	table.failWith = model.ErrPredicateParse

	tr := NewTransformationBuilder().Select("value").Filter("value >").Build()
	calls, err := plan(t, tr, table)
	require.True(t, errors.Is(err, model.ErrPredicateParse))
	require.Contains(t, err.Error(), "instruction 1 filter(value >)")
	require.Equal(t, []string{"select[[value]]"}, calls)
}

func TestPlannerNewColAndLiteral(t *testing.T) {
	tr := NewTransformationBuilder().
		Literal("n", 3).
		NewCol("ts", model.Now()).
		NewCol("copy", model.Col("id")).
		Build()

	calls, err := plan(t, tr, newRecordingTable())
	require.NoError(t, err)
	require.Equal(t, []string{
		"with_column[n lit(3)]",
		"with_column[ts now()]",
		"with_column[copy col(id)]",
	}, calls)
}

func TestPlannerHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := NewTransformationBuilder().Select("id").Build()
	_, err := NewPlanner(nil).Plan(ctx, tr.Instructions(), newRecordingTable())
	require.ErrorIs(t, err, context.Canceled)
}
