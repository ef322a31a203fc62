package pipeline

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"go-metrics-pipeline/internal/model"
)

// Columns appended to every built-in metric.
const (
	MetricNameColumn = "metric_name"
	TagsColumn       = "tags"
	SystemTSColumn   = "system_ts"
	EventTSColumn    = "event_ts"
	// ValueColumn holds the computed metric value.
	ValueColumn = "value"
)

// BuiltInMetricsBuilder produces canned single-value metric
// transformations over one column. Every result has the columns value,
// metric_name, tags, system_ts and event_ts.
type BuiltInMetricsBuilder struct{}

func NewBuiltInMetricsBuilder() BuiltInMetricsBuilder {
	return BuiltInMetricsBuilder{}
}

// CountNull counts the null values of column. Its metric name is
// "<column>_count_null".
func (BuiltInMetricsBuilder) CountNull(column string, tags ...string) model.Transformation {
	b := NewTransformationBuilder().
		Select(column).
		Filter(quoteColumn(column) + " IS NULL").
		Aggregate(model.Count, model.Target(ValueColumn, model.RowCount)).
		GroupBy()
	return complete(b, column+"_count_null", tags).Build()
}

// CountRows counts all rows; column only names the metric
// ("<column>_count_rows") and must exist.
func (BuiltInMetricsBuilder) CountRows(column string, tags ...string) model.Transformation {
	b := NewTransformationBuilder().
		Select(column).
		Aggregate(model.Count, model.Target(ValueColumn, model.RowCount)).
		GroupBy()
	return complete(b, column+"_count_rows", tags).Build()
}

func (m BuiltInMetricsBuilder) Sum(column string, tags ...string) model.Transformation {
	return m.single(model.Sum, column, "sum", tags)
}

func (m BuiltInMetricsBuilder) Mean(column string, tags ...string) model.Transformation {
	return m.single(model.Avg, column, "mean", tags)
}

func (m BuiltInMetricsBuilder) Min(column string, tags ...string) model.Transformation {
	return m.single(model.Min, column, "min", tags)
}

func (m BuiltInMetricsBuilder) Max(column string, tags ...string) model.Transformation {
	return m.single(model.Max, column, "max", tags)
}

// ByName resolves a built-in metric by the name used in API requests.
func (m BuiltInMetricsBuilder) ByName(metric, column string, tags ...string) (model.Transformation, error) {
	switch strings.ToLower(metric) {
	case "count_null":
		return m.CountNull(column, tags...), nil
	case "count_rows":
		return m.CountRows(column, tags...), nil
	case "sum":
		return m.Sum(column, tags...), nil
	case "mean", "avg":
		return m.Mean(column, tags...), nil
	case "min":
		return m.Min(column, tags...), nil
	case "max":
		return m.Max(column, tags...), nil
	}
	return model.Transformation{}, errors.Wrapf(model.ErrUnknownInstruction, "built-in metric %q", metric)
}

func (BuiltInMetricsBuilder) single(kind model.AggregateType, column, suffix string, tags []string) model.Transformation {
	b := NewTransformationBuilder().
		Select(column).
		Aggregate(kind, model.Target(ValueColumn, column)).
		GroupBy()
	return complete(b, fmt.Sprintf("%s_%s", column, suffix), tags).Build()
}

// complete appends the completion schema shared by all built-in metrics.
func complete(b *TransformationBuilder, metricName string, tags []string) *TransformationBuilder {
	return b.
		Literal(MetricNameColumn, metricName).
		Literal(TagsColumn, strings.Join(tags, ",")).
		NewCol(SystemTSColumn, model.Now()).
		NewCol(EventTSColumn, model.Now())
}

func quoteColumn(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
