package model

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/pkg/errors"
)

// InstructionSpec is the JSON form of an Instruction.
//
//	{"op": "select", "columns": ["id", "value"]}
//	{"op": "filter", "predicate": "value > 5"}
//	{"op": "aggregate", "kind": "count", "targets": [{"alias": "n", "column": "value"}]}
//	{"op": "group_by", "columns": ["category"]}
//	{"op": "literal", "alias": "source", "value": "sensor-a"}
//	{"op": "new_col", "alias": "ts", "expr": {"kind": "now"}}
type InstructionSpec struct {
	Op        string            `json:"op"`
	Columns   []string          `json:"columns,omitempty"`
	Kind      string            `json:"kind,omitempty"`
	Targets   []AggregateTarget `json:"targets,omitempty"`
	Predicate string            `json:"predicate,omitempty"`
	Alias     string            `json:"alias,omitempty"`
	Value     any               `json:"value,omitempty"`
	Expr      *ExprSpec         `json:"expr,omitempty"`
}

// ExprSpec is the JSON form of an Expr. Type names the Arrow type of a
// "sql" expression: int64, float64, string, bool or timestamp.
type ExprSpec struct {
	Kind  string `json:"kind"` // column, literal, now, sql
	Name  string `json:"name,omitempty"`
	Value any    `json:"value,omitempty"`
	SQL   string `json:"sql,omitempty"`
	Type  string `json:"type,omitempty"`
}

// DecodeTransformation converts JSON instruction specs into a
// Transformation, preserving their order.
func DecodeTransformation(specs []InstructionSpec) (Transformation, error) {
	instructions := make([]Instruction, 0, len(specs))
	for i, spec := range specs {
		ins, err := decodeInstruction(spec)
		if err != nil {
			return Transformation{}, errors.WithMessagef(err, "instruction %d", i)
		}
		instructions = append(instructions, ins)
	}
	return NewTransformation(instructions...), nil
}

func decodeInstruction(spec InstructionSpec) (Instruction, error) {
	switch strings.ToLower(spec.Op) {
	case "select":
		return Select{Columns: spec.Columns}, nil
	case "group_by", "groupby":
		return GroupBy{Columns: spec.Columns}, nil
	case "aggregate":
		kind, err := ParseAggregateType(spec.Kind)
		if err != nil {
			return nil, err
		}
		return Aggregate{Kind: kind, Targets: spec.Targets}, nil
	case "filter":
		return Filter{Predicate: spec.Predicate}, nil
	case "literal":
		v, err := literalValue(spec.Value)
		if err != nil {
			return nil, err
		}
		return Literal{Alias: spec.Alias, Value: v}, nil
	case "new_col", "newcol":
		if spec.Expr == nil {
			return nil, errors.Wrap(ErrUnknownInstruction, "new_col without expr")
		}
		expr, err := decodeExpr(*spec.Expr)
		if err != nil {
			return nil, err
		}
		return NewCol{Alias: spec.Alias, Expr: expr}, nil
	}
	return nil, errors.Wrapf(ErrUnknownInstruction, "op %q", spec.Op)
}

func decodeExpr(spec ExprSpec) (Expr, error) {
	switch strings.ToLower(spec.Kind) {
	case "column":
		return Col(spec.Name), nil
	case "literal":
		v, err := literalValue(spec.Value)
		if err != nil {
			return nil, err
		}
		return Lit(v), nil
	case "now":
		return Now(), nil
	case "sql":
		typ, err := parseDataType(spec.Type)
		if err != nil {
			return nil, err
		}
		return SQL(spec.SQL, typ), nil
	}
	return nil, errors.Wrapf(ErrUnknownInstruction, "expression kind %q", spec.Kind)
}

// literalValue narrows a JSON-decoded number. Integral numbers become int64
// and the rest float64, for both json.Number and plain float64 input.
func literalValue(v any) (any, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return nil, errors.Wrapf(ErrSchema, "literal %s", n)
		}
		return f, nil
	case float64:
		if n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64 {
			return int64(n), nil
		}
	}
	return v, nil
}

// EncodeTransformation is the inverse of DecodeTransformation.
func EncodeTransformation(t Transformation) ([]InstructionSpec, error) {
	specs := make([]InstructionSpec, 0, t.Len())
	for _, ins := range t.Instructions() {
		switch ins := ins.(type) {
		case Select:
			specs = append(specs, InstructionSpec{Op: "select", Columns: ins.Columns})
		case GroupBy:
			specs = append(specs, InstructionSpec{Op: "group_by", Columns: ins.Columns})
		case Aggregate:
			specs = append(specs, InstructionSpec{Op: "aggregate", Kind: ins.Kind.String(), Targets: ins.Targets})
		case Filter:
			specs = append(specs, InstructionSpec{Op: "filter", Predicate: ins.Predicate})
		case Literal:
			specs = append(specs, InstructionSpec{Op: "literal", Alias: ins.Alias, Value: ins.Value})
		case NewCol:
			expr, err := encodeExpr(ins.Expr)
			if err != nil {
				return nil, err
			}
			specs = append(specs, InstructionSpec{Op: "new_col", Alias: ins.Alias, Expr: expr})
		default:
			return nil, errors.Wrapf(ErrUnknownInstruction, "%T", ins)
		}
	}
	return specs, nil
}

func encodeExpr(expr Expr) (*ExprSpec, error) {
	switch e := expr.(type) {
	case ColumnExpr:
		return &ExprSpec{Kind: "column", Name: e.Name}, nil
	case LiteralExpr:
		return &ExprSpec{Kind: "literal", Value: e.Value}, nil
	case NowExpr:
		return &ExprSpec{Kind: "now"}, nil
	case SQLExpr:
		name, err := dataTypeName(e.Type)
		if err != nil {
			return nil, err
		}
		return &ExprSpec{Kind: "sql", SQL: e.SQL, Type: name}, nil
	}
	return nil, errors.Wrapf(ErrUnknownInstruction, "expression %T", expr)
}

var dataTypes = map[string]arrow.DataType{
	"int64":     arrow.PrimitiveTypes.Int64,
	"float64":   arrow.PrimitiveTypes.Float64,
	"string":    arrow.BinaryTypes.String,
	"bool":      arrow.FixedWidthTypes.Boolean,
	"timestamp": arrow.FixedWidthTypes.Timestamp_us,
}

func parseDataType(name string) (arrow.DataType, error) {
	if name == "" {
		return arrow.BinaryTypes.String, nil
	}
	if typ, ok := dataTypes[strings.ToLower(name)]; ok {
		return typ, nil
	}
	return nil, errors.Wrapf(ErrSchema, "unsupported expression type %q", name)
}

func dataTypeName(typ arrow.DataType) (string, error) {
	for name, candidate := range dataTypes {
		if arrow.TypeEqual(candidate, typ) {
			return name, nil
		}
	}
	return "", errors.Wrapf(ErrSchema, "unsupported expression type %s", typ)
}
