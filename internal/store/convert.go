package store

import (
	"database/sql"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/pkg/errors"

	"go-metrics-pipeline/internal/model"
)

// columnType maps an Arrow type to the SQLite storage class its values are
// kept in. Booleans, dates and timestamps are stored as integers.
func columnType(dt arrow.DataType) (string, error) {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.BOOL, arrow.DATE32, arrow.TIMESTAMP:
		return "INTEGER", nil
	case arrow.FLOAT32, arrow.FLOAT64:
		return "REAL", nil
	case arrow.STRING, arrow.LARGE_STRING:
		return "TEXT", nil
	}
	return "", errors.Wrapf(model.ErrSchema, "unsupported column type %s", dt)
}

func isInteger(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return true
	}
	return false
}

func isFloat(dt arrow.DataType) bool {
	return dt.ID() == arrow.FLOAT32 || dt.ID() == arrow.FLOAT64
}

func isNumeric(dt arrow.DataType) bool { return isInteger(dt) || isFloat(dt) }

// cellValue returns the value at row i of arr as a database/sql argument.
// Unsigned values above math.MaxInt64 do not fit an SQLite integer and are
// rejected.
func cellValue(arr arrow.Array, i int) (any, error) {
	if arr.IsNull(i) {
		return nil, nil
	}
	switch a := arr.(type) {
	case *array.Int8:
		return int64(a.Value(i)), nil
	case *array.Int16:
		return int64(a.Value(i)), nil
	case *array.Int32:
		return int64(a.Value(i)), nil
	case *array.Int64:
		return a.Value(i), nil
	case *array.Uint8:
		return int64(a.Value(i)), nil
	case *array.Uint16:
		return int64(a.Value(i)), nil
	case *array.Uint32:
		return int64(a.Value(i)), nil
	case *array.Uint64:
		v := a.Value(i)
		if v > math.MaxInt64 {
			return nil, errors.Wrapf(model.ErrSchema, "uint64 value %d overflows an SQLite integer", v)
		}
		return int64(v), nil
	case *array.Float32:
		return float64(a.Value(i)), nil
	case *array.Float64:
		return a.Value(i), nil
	case *array.String:
		return a.Value(i), nil
	case *array.LargeString:
		return a.Value(i), nil
	case *array.Boolean:
		if a.Value(i) {
			return int64(1), nil
		}
		return int64(0), nil
	case *array.Date32:
		return int64(a.Value(i)), nil
	case *array.Timestamp:
		return int64(a.Value(i)), nil
	}
	return nil, nil
}

// scanDest allocates the database/sql scan destination for a field type.
func scanDest(dt arrow.DataType) any {
	switch {
	case isFloat(dt):
		return new(sql.NullFloat64)
	case dt.ID() == arrow.STRING || dt.ID() == arrow.LARGE_STRING:
		return new(sql.NullString)
	default:
		return new(sql.NullInt64)
	}
}

type integer interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

type appender[T any] interface {
	Append(T)
	AppendNull()
}

func appendInteger[T integer](b appender[T], v *sql.NullInt64) {
	if !v.Valid {
		b.AppendNull()
		return
	}
	b.Append(T(v.Int64))
}

func appendFloat[T ~float32 | ~float64](b appender[T], v *sql.NullFloat64) {
	if !v.Valid {
		b.AppendNull()
		return
	}
	b.Append(T(v.Float64))
}

// appendScanned appends a scanned destination (see scanDest) to b.
func appendScanned(b array.Builder, dest any) error {
	switch b := b.(type) {
	case *array.Int8Builder:
		appendInteger[int8](b, dest.(*sql.NullInt64))
	case *array.Int16Builder:
		appendInteger[int16](b, dest.(*sql.NullInt64))
	case *array.Int32Builder:
		appendInteger[int32](b, dest.(*sql.NullInt64))
	case *array.Int64Builder:
		appendInteger[int64](b, dest.(*sql.NullInt64))
	case *array.Uint8Builder:
		appendInteger[uint8](b, dest.(*sql.NullInt64))
	case *array.Uint16Builder:
		appendInteger[uint16](b, dest.(*sql.NullInt64))
	case *array.Uint32Builder:
		appendInteger[uint32](b, dest.(*sql.NullInt64))
	case *array.Uint64Builder:
		appendInteger[uint64](b, dest.(*sql.NullInt64))
	case *array.Date32Builder:
		appendInteger[arrow.Date32](b, dest.(*sql.NullInt64))
	case *array.TimestampBuilder:
		appendInteger[arrow.Timestamp](b, dest.(*sql.NullInt64))
	case *array.Float32Builder:
		appendFloat[float32](b, dest.(*sql.NullFloat64))
	case *array.Float64Builder:
		appendFloat[float64](b, dest.(*sql.NullFloat64))
	case *array.BooleanBuilder:
		v := dest.(*sql.NullInt64)
		if !v.Valid {
			b.AppendNull()
		} else {
			b.Append(v.Int64 != 0)
		}
	case *array.StringBuilder:
		v := dest.(*sql.NullString)
		if !v.Valid {
			b.AppendNull()
		} else {
			b.Append(v.String)
		}
	case *array.LargeStringBuilder:
		v := dest.(*sql.NullString)
		if !v.Valid {
			b.AppendNull()
		} else {
			b.Append(v.String)
		}
	default:
		return errors.Wrapf(model.ErrSchema, "unsupported builder %s", b.Type())
	}
	return nil
}

// renderLiteral renders a Go scalar as an SQLite literal and reports the
// Arrow type it is collected into.
func renderLiteral(v any) (string, arrow.DataType, error) {
	switch v := v.(type) {
	case nil:
		return "NULL", arrow.BinaryTypes.String, nil
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'", arrow.BinaryTypes.String, nil
	case bool:
		if v {
			return "1", arrow.FixedWidthTypes.Boolean, nil
		}
		return "0", arrow.FixedWidthTypes.Boolean, nil
	case float32:
		return formatFloat(float64(v), arrow.PrimitiveTypes.Float32)
	case float64:
		return formatFloat(v, arrow.PrimitiveTypes.Float64)
	case time.Time:
		return strconv.FormatInt(v.UTC().UnixMicro(), 10), arrow.FixedWidthTypes.Timestamp_us, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), arrow.PrimitiveTypes.Int64, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return "", nil, errors.Wrapf(model.ErrSchema, "literal %d overflows an SQLite integer", rv.Uint())
		}
		return strconv.FormatInt(int64(rv.Uint()), 10), arrow.PrimitiveTypes.Int64, nil
	}
	return "", nil, errors.Wrapf(model.ErrSchema, "unsupported literal type %T", v)
}

func formatFloat(v float64, dt arrow.DataType) (string, arrow.DataType, error) {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if strings.ContainsAny(s, "NI") { // NaN, +Inf, -Inf
		return "", nil, errors.Wrapf(model.ErrSchema, "unsupported literal %v", v)
	}
	return s, dt, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdents(names []string) string {
	quoted := make([]string, 0, len(names))
	for _, n := range names {
		quoted = append(quoted, quoteIdent(n))
	}
	return strings.Join(quoted, ", ")
}
