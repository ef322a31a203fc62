package model

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// AggregateType is the closed set of aggregate functions an Aggregate
// instruction can apply.
type AggregateType int

const (
	Sum AggregateType = iota
	Avg
	Min
	Max
	Count
)

var aggregateNames = map[AggregateType]string{
	Sum:   "sum",
	Avg:   "avg",
	Min:   "min",
	Max:   "max",
	Count: "count",
}

func (a AggregateType) String() string {
	if name, ok := aggregateNames[a]; ok {
		return name
	}
	return fmt.Sprintf("AggregateType(%d)", int(a))
}

// ParseAggregateType resolves a case-insensitive aggregate name; "average"
// and "mean" are accepted for Avg.
func ParseAggregateType(s string) (AggregateType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sum":
		return Sum, nil
	case "avg", "average", "mean":
		return Avg, nil
	case "min":
		return Min, nil
	case "max":
		return Max, nil
	case "count":
		return Count, nil
	}
	return 0, errors.Wrapf(ErrUnknownInstruction, "aggregate %q", s)
}

// RowCount is the Aggregate target column that counts rows instead of
// non-null values. Only valid with Count.
const RowCount = "*"

// AggregateTarget binds a source column to the output alias its
// aggregate is published under.
type AggregateTarget struct {
	Alias  string `json:"alias"`
	Column string `json:"column"`
}

// Target is shorthand for AggregateTarget{Alias: alias, Column: column}.
func Target(alias, column string) AggregateTarget {
	return AggregateTarget{Alias: alias, Column: column}
}

// Instruction is one step of a Transformation. The set of implementations
// is closed: Select, GroupBy, Aggregate, Filter, Literal and NewCol.
type Instruction interface {
	fmt.Stringer
	instruction()
}

// Select projects the named columns, in the given order.
type Select struct {
	Columns []string
}

// GroupBy declares grouping keys. An empty key list means a global
// aggregation.
type GroupBy struct {
	Columns []string
}

// Aggregate applies one aggregate function to each target.
type Aggregate struct {
	Kind    AggregateType
	Targets []AggregateTarget
}

// Filter keeps the rows for which Predicate holds. The predicate uses the
// table engine's own condition syntax.
type Filter struct {
	Predicate string
}

// Literal adds (or overwrites) a constant-valued column.
type Literal struct {
	Alias string
	Value any
}

// NewCol adds (or overwrites) a column derived from Expr.
type NewCol struct {
	Alias string
	Expr  Expr
}

func (Select) instruction()    {}
func (GroupBy) instruction()   {}
func (Aggregate) instruction() {}
func (Filter) instruction()    {}
func (Literal) instruction()   {}
func (NewCol) instruction()    {}

func (s Select) String() string  { return "select(" + strings.Join(s.Columns, ", ") + ")" }
func (g GroupBy) String() string { return "group_by(" + strings.Join(g.Columns, ", ") + ")" }
func (f Filter) String() string  { return "filter(" + f.Predicate + ")" }
func (l Literal) String() string { return fmt.Sprintf("literal(%s = %v)", l.Alias, l.Value) }
func (n NewCol) String() string  { return fmt.Sprintf("new_col(%s = %v)", n.Alias, n.Expr) }

func (a Aggregate) String() string {
	parts := make([]string, 0, len(a.Targets))
	for _, t := range a.Targets {
		parts = append(parts, t.Alias+" <- "+t.Column)
	}
	return a.Kind.String() + "(" + strings.Join(parts, ", ") + ")"
}

// clone returns a copy of ins that shares no slices with it.
func clone(ins Instruction) Instruction {
	switch ins := ins.(type) {
	case Select:
		return Select{Columns: cloneStrings(ins.Columns)}
	case GroupBy:
		return GroupBy{Columns: cloneStrings(ins.Columns)}
	case Aggregate:
		var targets []AggregateTarget
		if ins.Targets != nil {
			targets = make([]AggregateTarget, len(ins.Targets))
			copy(targets, ins.Targets)
		}
		return Aggregate{Kind: ins.Kind, Targets: targets}
	default:
		return ins
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
