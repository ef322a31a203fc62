package pipeline

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"go-metrics-pipeline/internal/model"
	"go-metrics-pipeline/internal/store"
)

var aggregateFuncs = map[model.AggregateType]store.AggregateFunc{
	model.Sum:   store.FuncSum,
	model.Avg:   store.FuncAvg,
	model.Min:   store.FuncMin,
	model.Max:   store.FuncMax,
	model.Count: store.FuncCount,
}

// Planner turns an instruction list into operations on a store.Table.
type Planner struct {
	logger log.Logger
}

func NewPlanner(logger log.Logger) *Planner {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Planner{logger: logger}
}

// aggregation is the single grouped aggregation of a transformation: all
// GroupBy keys and all Aggregate targets, each in instruction order.
type aggregation struct {
	keys       []string
	exprs      []store.AggregateExpr
	hasGroupBy bool
}

func collectAggregation(instructions []model.Instruction) (aggregation, error) {
	var agg aggregation
	seen := map[string]struct{}{}
	for _, ins := range instructions {
		switch ins := ins.(type) {
		case model.GroupBy:
			agg.hasGroupBy = true
			for _, key := range ins.Columns {
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				agg.keys = append(agg.keys, key)
			}
		case model.Aggregate:
			fn, ok := aggregateFuncs[ins.Kind]
			if !ok {
				return aggregation{}, errors.Wrapf(model.ErrUnknownInstruction, "aggregate %s", ins.Kind)
			}
			for _, target := range ins.Targets {
				agg.exprs = append(agg.exprs, store.AggregateExpr{Func: fn, Column: target.Column, Alias: target.Alias})
			}
		}
	}
	return agg, nil
}

// Plan applies instructions to table in order and returns the resulting
// table. Nothing is executed until the result is collected.
//
// GroupBy and Aggregate instructions are coupled: the first GroupBy emits
// one aggregation over every GroupBy key and every Aggregate target in
// the list, wherever they appear; later GroupBy instructions add nothing.
// A GroupBy without any Aggregate is a no-op. Aggregate without any
// GroupBy is rejected with model.ErrAggregationWithoutGrouping.
func (p *Planner) Plan(ctx context.Context, instructions []model.Instruction, table store.Table) (store.Table, error) {
	agg, err := collectAggregation(instructions)
	if err != nil {
		return nil, err
	}
	if len(agg.exprs) > 0 && !agg.hasGroupBy {
		return nil, errors.Wrapf(model.ErrAggregationWithoutGrouping, "%d aggregate column(s)", len(agg.exprs))
	}

	grouped := false
	for i, ins := range instructions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var err error
		switch ins := ins.(type) {
		case model.Select:
			table, err = table.Select(ctx, ins.Columns...)
		case model.GroupBy:
			if grouped {
				continue
			}
			grouped = true
			if len(agg.exprs) == 0 {
				level.Warn(p.logger).Log("msg", "group by without aggregate has no effect", "instruction", i, "keys", len(agg.keys))
				continue
			}
			table, err = table.Aggregate(ctx, agg.keys, agg.exprs)
		case model.Aggregate:
			// Applied by the first GroupBy.
		case model.Filter:
			table, err = table.Filter(ctx, ins.Predicate)
		case model.Literal:
			table, err = table.WithColumn(ctx, ins.Alias, model.Lit(ins.Value))
		case model.NewCol:
			table, err = table.WithColumn(ctx, ins.Alias, ins.Expr)
		default:
			err = errors.Wrapf(model.ErrUnknownInstruction, "%T", ins)
		}
		if err != nil {
			return nil, errors.WithMessagef(err, "instruction %d %s", i, ins)
		}
	}
	return table, nil
}
