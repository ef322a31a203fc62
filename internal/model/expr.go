package model

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// Expr is a column expression used by NewCol. Expressions are data only;
// the table engine decides how to evaluate them.
type Expr interface {
	fmt.Stringer
	expr()
}

// ColumnExpr references an existing column.
type ColumnExpr struct {
	Name string
}

// LiteralExpr is a constant scalar.
type LiteralExpr struct {
	Value any
}

// NowExpr evaluates to the current UTC time with microsecond precision.
type NowExpr struct{}

// SQLExpr is an expression in the table engine's own syntax. Type is the
// Arrow type its values are collected into.
type SQLExpr struct {
	SQL  string
	Type arrow.DataType
}

func (ColumnExpr) expr()  {}
func (LiteralExpr) expr() {}
func (NowExpr) expr()     {}
func (SQLExpr) expr()     {}

func (c ColumnExpr) String() string  { return "col(" + c.Name + ")" }
func (l LiteralExpr) String() string { return fmt.Sprintf("lit(%v)", l.Value) }
func (NowExpr) String() string       { return "now()" }
func (s SQLExpr) String() string     { return fmt.Sprintf("sql(%s :: %v)", s.SQL, s.Type) }

func Col(name string) Expr { return ColumnExpr{Name: name} }
func Lit(value any) Expr   { return LiteralExpr{Value: value} }
func Now() Expr            { return NowExpr{} }

func SQL(sql string, typ arrow.DataType) Expr { return SQLExpr{SQL: sql, Type: typ} }
