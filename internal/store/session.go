package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"go-metrics-pipeline/internal/model"
)

// Session is a private in-memory SQLite database that Arrow batches are
// registered into. Tables registered in one session are invisible to every
// other session, so independent sessions may be used concurrently.
type Session struct {
	db    *sql.DB
	alloc memory.Allocator
}

// NewSession opens an empty in-memory session. Records collected from its
// tables are allocated with alloc, or memory.DefaultAllocator when nil.
func NewSession(ctx context.Context, alloc memory.Allocator) (*Session, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, errors.Wrap(err, "open session")
	}
	// Every connection to ":memory:" is a distinct database.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "open session")
	}
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	return &Session{db: db, alloc: alloc}, nil
}

// Close drops every table of the session.
func (s *Session) Close() error {
	return s.db.Close()
}

// Register loads batches into a new table and returns a logical handle on
// it. All batches must share the first batch's schema.
func (s *Session) Register(ctx context.Context, name string, batches []arrow.Record) (Table, error) {
	if len(batches) == 0 {
		return nil, model.ErrEmptyInput
	}
	schema := batches[0].Schema()
	for i, b := range batches[1:] {
		if !b.Schema().Equal(schema) {
			return nil, errors.Wrapf(model.ErrSchema, "batch %d schema %s differs from %s", i+1, b.Schema(), schema)
		}
	}

	defs := make([]string, 0, schema.NumFields())
	seen := make(map[string]struct{}, schema.NumFields())
	for _, f := range schema.Fields() {
		if _, dup := seen[f.Name]; dup {
			return nil, errors.Wrapf(model.ErrSchema, "duplicate column %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		typ, err := columnType(f.Type)
		if err != nil {
			return nil, errors.WithMessagef(err, "column %q", f.Name)
		}
		defs = append(defs, quoteIdent(f.Name)+" "+typ)
	}

	table := fmt.Sprintf("%s_%s", name, strings.ReplaceAll(uuid.NewString(), "-", ""))
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))); err != nil {
		return nil, errors.Wrapf(err, "create table %s", table)
	}
	if err := s.insert(ctx, table, batches); err != nil {
		return nil, err
	}

	return &sqliteTable{
		session: s,
		query:   "SELECT * FROM " + quoteIdent(table),
		schema:  schema,
	}, nil
}

func (s *Session) insert(ctx context.Context, table string, batches []arrow.Record) error {
	cols := int(batches[0].NumCols())
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", cols), ", ")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin insert")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(table), placeholders))
	if err != nil {
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	args := make([]any, cols)
	for _, batch := range batches {
		for row := 0; row < int(batch.NumRows()); row++ {
			for col := 0; col < cols; col++ {
				v, err := cellValue(batch.Column(col), row)
				if err != nil {
					return errors.WithMessagef(err, "column %q row %d", batch.ColumnName(col), row)
				}
				args[col] = v
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return errors.Wrapf(err, "insert row %d", row)
			}
		}
	}
	return errors.Wrap(tx.Commit(), "commit insert")
}

// validate asks SQLite to compile query without running it.
func (s *Session) validate(ctx context.Context, query string) error {
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	return stmt.Close()
}
