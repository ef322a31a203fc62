package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/pkg/errors"

	"go-metrics-pipeline/internal/model"
)

// nowSQL is the current time in microseconds since the Unix epoch, at the
// millisecond resolution of julianday('now').
const nowSQL = "CAST(ROUND((julianday('now') - 2440587.5) * 86400000000.0) AS INTEGER)"

// AggregateFunc names an SQL aggregate function.
type AggregateFunc string

const (
	FuncSum   AggregateFunc = "sum"
	FuncAvg   AggregateFunc = "avg"
	FuncMin   AggregateFunc = "min"
	FuncMax   AggregateFunc = "max"
	FuncCount AggregateFunc = "count"
)

// AggregateExpr is one aggregate column of a grouped aggregation.
// Column model.RowCount with FuncCount counts rows.
type AggregateExpr struct {
	Func   AggregateFunc
	Column string
	Alias  string
}

func (a AggregateExpr) String() string {
	return fmt.Sprintf("%s(%s) AS %s", a.Func, a.Column, a.Alias)
}

// Table is a logical table: every operation returns a new Table and
// leaves the receiver untouched. Nothing is computed until Collect.
type Table interface {
	Schema() *arrow.Schema
	// Select projects columns in the given order.
	Select(ctx context.Context, columns ...string) (Table, error)
	// Filter keeps the rows matching an SQLite boolean expression.
	Filter(ctx context.Context, predicate string) (Table, error)
	// Aggregate groups by groupBy (all rows when empty) and computes
	// aggregates. The result holds the keys followed by the aliases.
	Aggregate(ctx context.Context, groupBy []string, aggregates []AggregateExpr) (Table, error)
	// WithColumn adds the column name, or replaces it in place when it
	// already exists.
	WithColumn(ctx context.Context, name string, expr model.Expr) (Table, error)
	// Collect runs the query and returns records of at most batchSize rows
	// (unbounded when batchSize <= 0). At least one record is returned.
	Collect(ctx context.Context, batchSize int) ([]arrow.Record, error)
}

type sqliteTable struct {
	session *Session
	query   string
	schema  *arrow.Schema
}

func (t *sqliteTable) Schema() *arrow.Schema { return t.schema }

func (t *sqliteTable) derive(query string, fields []arrow.Field) *sqliteTable {
	return &sqliteTable{
		session: t.session,
		query:   query,
		schema:  arrow.NewSchema(fields, nil),
	}
}

func (t *sqliteTable) field(name string) (arrow.Field, error) {
	idx := t.schema.FieldIndices(name)
	if len(idx) == 0 {
		return arrow.Field{}, errors.Wrapf(model.ErrSchema, "column %q not found in %v", name, t.columnNames())
	}
	return t.schema.Field(idx[0]), nil
}

func (t *sqliteTable) columnNames() []string {
	names := make([]string, 0, t.schema.NumFields())
	for _, f := range t.schema.Fields() {
		names = append(names, f.Name)
	}
	return names
}

// checkQuotedColumns rejects double-quoted identifiers in expr that name no
// column of t. SQLite reads such identifiers as string literals instead of
// failing to compile.
func (t *sqliteTable) checkQuotedColumns(expr string) error {
	for _, ident := range quotedIdents(expr) {
		found := false
		for _, f := range t.schema.Fields() {
			if strings.EqualFold(f.Name, ident) {
				found = true
				break
			}
		}
		if !found {
			return errors.Errorf("no such column: %s", quoteIdent(ident))
		}
	}
	return nil
}

// quotedIdents returns the unescaped double-quoted identifiers of an SQL
// fragment. Single-quoted string literals are skipped, as is an
// unterminated trailing quote.
func quotedIdents(sql string) []string {
	var idents []string
	for i := 0; i < len(sql); i++ {
		quote := sql[i]
		if quote != '\'' && quote != '"' {
			continue
		}
		var b strings.Builder
		j := i + 1
		for ; j < len(sql); j++ {
			if sql[j] != quote {
				b.WriteByte(sql[j])
				continue
			}
			if j+1 < len(sql) && sql[j+1] == quote {
				b.WriteByte(quote)
				j++
				continue
			}
			break
		}
		if quote == '"' && j < len(sql) {
			idents = append(idents, b.String())
		}
		i = j
	}
	return idents
}

func (t *sqliteTable) Select(_ context.Context, columns ...string) (Table, error) {
	if len(columns) == 0 {
		return nil, errors.Wrap(model.ErrSchema, "select needs at least one column")
	}
	fields := make([]arrow.Field, 0, len(columns))
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, dup := seen[c]; dup {
			return nil, errors.Wrapf(model.ErrSchema, "column %q selected twice", c)
		}
		seen[c] = struct{}{}
		f, err := t.field(c)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	query := fmt.Sprintf("SELECT %s FROM (%s)", quoteIdents(columns), t.query)
	return t.derive(query, fields), nil
}

func (t *sqliteTable) Filter(ctx context.Context, predicate string) (Table, error) {
	if strings.TrimSpace(predicate) == "" {
		return nil, errors.Wrap(model.ErrPredicateParse, "empty predicate")
	}
	query := fmt.Sprintf("SELECT * FROM (%s) WHERE (%s)", t.query, predicate)
	if err := t.checkQuotedColumns(predicate); err != nil {
		return nil, errors.Wrapf(model.ErrPredicateParse, "%q: %v", predicate, err)
	}
	if err := t.session.validate(ctx, query); err != nil {
		return nil, errors.Wrapf(model.ErrPredicateParse, "%q: %v", predicate, err)
	}
	return &sqliteTable{session: t.session, query: query, schema: t.schema}, nil
}

func (t *sqliteTable) Aggregate(_ context.Context, groupBy []string, aggregates []AggregateExpr) (Table, error) {
	fields := make([]arrow.Field, 0, len(groupBy)+len(aggregates))
	projection := make([]string, 0, len(groupBy)+len(aggregates))
	seen := make(map[string]struct{}, len(groupBy)+len(aggregates))

	for _, key := range groupBy {
		if _, dup := seen[key]; dup {
			return nil, errors.Wrapf(model.ErrSchema, "group key %q repeated", key)
		}
		seen[key] = struct{}{}
		f, err := t.field(key)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
		projection = append(projection, quoteIdent(key))
	}

	for _, agg := range aggregates {
		if agg.Alias == "" {
			return nil, errors.Wrapf(model.ErrSchema, "aggregate %s has no alias", agg)
		}
		if _, dup := seen[agg.Alias]; dup {
			return nil, errors.Wrapf(model.ErrSchema, "output column %q defined twice", agg.Alias)
		}
		seen[agg.Alias] = struct{}{}

		if agg.Column == model.RowCount {
			if agg.Func != FuncCount {
				return nil, errors.Wrapf(model.ErrSchema, "%s cannot be applied to %s", agg.Func, model.RowCount)
			}
			fields = append(fields, arrow.Field{Name: agg.Alias, Type: arrow.PrimitiveTypes.Int64})
			projection = append(projection, "count(*) AS "+quoteIdent(agg.Alias))
			continue
		}

		in, err := t.field(agg.Column)
		if err != nil {
			return nil, err
		}
		out, nullable, err := aggregateType(agg.Func, in.Type)
		if err != nil {
			return nil, errors.WithMessagef(err, "aggregate %s", agg)
		}
		fields = append(fields, arrow.Field{Name: agg.Alias, Type: out, Nullable: nullable})
		projection = append(projection, fmt.Sprintf("%s(%s) AS %s", agg.Func, quoteIdent(agg.Column), quoteIdent(agg.Alias)))
	}

	if len(projection) == 0 {
		return nil, errors.Wrap(model.ErrSchema, "aggregation produces no columns")
	}

	query := fmt.Sprintf("SELECT %s FROM (%s)", strings.Join(projection, ", "), t.query)
	if len(groupBy) > 0 {
		query += " GROUP BY " + quoteIdents(groupBy)
	}
	return t.derive(query, fields), nil
}

// aggregateType reports the type and nullability of fn applied to in.
func aggregateType(fn AggregateFunc, in arrow.DataType) (arrow.DataType, bool, error) {
	switch fn {
	case FuncCount:
		return arrow.PrimitiveTypes.Int64, false, nil
	case FuncSum:
		switch {
		case isInteger(in):
			return arrow.PrimitiveTypes.Int64, true, nil
		case isFloat(in):
			return arrow.PrimitiveTypes.Float64, true, nil
		}
	case FuncAvg:
		if isNumeric(in) {
			return arrow.PrimitiveTypes.Float64, true, nil
		}
	case FuncMin, FuncMax:
		return in, true, nil
	default:
		return nil, false, errors.Wrapf(model.ErrSchema, "unknown aggregate function %q", fn)
	}
	return nil, false, errors.Wrapf(model.ErrSchema, "%s is not defined for %s", fn, in)
}

func (t *sqliteTable) WithColumn(ctx context.Context, name string, expr model.Expr) (Table, error) {
	if name == "" {
		return nil, errors.Wrap(model.ErrSchema, "derived column has no name")
	}
	sqlExpr, field, err := t.render(ctx, expr)
	if err != nil {
		return nil, errors.WithMessagef(err, "column %q", name)
	}
	field.Name = name

	fields := make([]arrow.Field, 0, t.schema.NumFields()+1)
	projection := make([]string, 0, t.schema.NumFields()+1)
	replaced := false
	for _, f := range t.schema.Fields() {
		if f.Name == name {
			fields = append(fields, field)
			projection = append(projection, sqlExpr+" AS "+quoteIdent(name))
			replaced = true
			continue
		}
		fields = append(fields, f)
		projection = append(projection, quoteIdent(f.Name))
	}
	if !replaced {
		fields = append(fields, field)
		projection = append(projection, sqlExpr+" AS "+quoteIdent(name))
	}

	query := fmt.Sprintf("SELECT %s FROM (%s)", strings.Join(projection, ", "), t.query)
	return t.derive(query, fields), nil
}

// render translates expr into SQL over t and reports the field it yields.
func (t *sqliteTable) render(ctx context.Context, expr model.Expr) (string, arrow.Field, error) {
	switch e := expr.(type) {
	case model.ColumnExpr:
		f, err := t.field(e.Name)
		if err != nil {
			return "", arrow.Field{}, err
		}
		return quoteIdent(e.Name), f, nil
	case model.LiteralExpr:
		lit, typ, err := renderLiteral(e.Value)
		if err != nil {
			return "", arrow.Field{}, err
		}
		return lit, arrow.Field{Type: typ, Nullable: e.Value == nil}, nil
	case model.NowExpr:
		return nowSQL, arrow.Field{Type: arrow.FixedWidthTypes.Timestamp_us}, nil
	case model.SQLExpr:
		if e.Type == nil {
			return "", arrow.Field{}, errors.Wrapf(model.ErrSchema, "expression %q has no type", e.SQL)
		}
		if _, err := columnType(e.Type); err != nil {
			return "", arrow.Field{}, err
		}
		if err := t.checkQuotedColumns(e.SQL); err != nil {
			return "", arrow.Field{}, errors.Wrapf(model.ErrSchema, "expression %q: %v", e.SQL, err)
		}
		sqlExpr := "(" + e.SQL + ")"
		if err := t.session.validate(ctx, fmt.Sprintf("SELECT %s FROM (%s)", sqlExpr, t.query)); err != nil {
			return "", arrow.Field{}, errors.Wrapf(model.ErrSchema, "expression %q: %v", e.SQL, err)
		}
		return sqlExpr, arrow.Field{Type: e.Type, Nullable: true}, nil
	case nil:
		return "", arrow.Field{}, errors.Wrap(model.ErrSchema, "missing expression")
	}
	return "", arrow.Field{}, errors.Wrapf(model.ErrSchema, "unsupported expression %T", expr)
}

func (t *sqliteTable) Collect(ctx context.Context, batchSize int) (out []arrow.Record, err error) {
	dests := make([]any, t.schema.NumFields())
	for i, f := range t.schema.Fields() {
		if _, err := columnType(f.Type); err != nil {
			return nil, errors.WithMessagef(err, "column %q", f.Name)
		}
		dests[i] = scanDest(f.Type)
	}

	rows, err := t.session.db.QueryContext(ctx, t.query)
	if err != nil {
		return nil, errors.Wrap(err, "run query")
	}
	defer rows.Close()

	rb := array.NewRecordBuilder(t.session.alloc, t.schema)
	defer rb.Release()

	defer func() {
		if err != nil {
			for _, rec := range out {
				rec.Release()
			}
			out = nil
		}
	}()

	pending := 0
	for rows.Next() {
		if err := rows.Scan(dests...); err != nil {
			return out, errors.Wrap(err, "scan row")
		}
		for i, dest := range dests {
			if err := appendScanned(rb.Field(i), dest); err != nil {
				return out, err
			}
		}
		pending++
		if batchSize > 0 && pending == batchSize {
			out = append(out, rb.NewRecord())
			pending = 0
		}
	}
	if err := rows.Err(); err != nil {
		return out, errors.Wrap(err, "read rows")
	}
	if pending > 0 || len(out) == 0 {
		out = append(out, rb.NewRecord())
	}
	return out, nil
}
