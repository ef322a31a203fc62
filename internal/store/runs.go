package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"go-metrics-pipeline/internal/model"
)

// RunStore persists metric runs and their errors in an SQLite file.
type RunStore struct {
	db *sql.DB
}

// OpenRunStore opens (creating if needed) the run database at dbPath.
func OpenRunStore(dbPath string) (*RunStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open run store")
	}
	// Runs finish concurrently; serialise writers instead of hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	// Create tables if not exists
	runTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		spec TEXT,
		status TEXT,
		export TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);
	`
	errorTable := `
	CREATE TABLE IF NOT EXISTS run_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		error_message TEXT,
		created_at DATETIME
	);
	`

	if _, err := db.Exec(runTable); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create runs table")
	}
	if _, err := db.Exec(errorTable); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create run_errors table")
	}

	return &RunStore{db: db}, nil
}

func (s *RunStore) Close() error {
	return s.db.Close()
}

// SaveRun stores a new pending run.
func (s *RunStore) SaveRun(ctx context.Context, runID string, spec model.MetricRunSpec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `INSERT INTO runs (id, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, string(specJSON), model.RunPending, now, now)
	return errors.Wrapf(err, "save run %s", runID)
}

// UpdateRunStatus updates run status
func (s *RunStore) UpdateRunStatus(ctx context.Context, runID, status string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return errors.Wrapf(err, "update run %s", runID)
}

// SaveExport attaches the publishing result to a run.
func (s *RunStore) SaveExport(ctx context.Context, runID string, result model.ExportResult) error {
	exportJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `UPDATE runs SET export = ?, updated_at = ? WHERE id = ?`, string(exportJSON), now, runID)
	return errors.Wrapf(err, "save export of run %s", runID)
}

// SaveRunError records an error for a run
func (s *RunStore) SaveRunError(ctx context.Context, runID string, runErr error) error {
	if runErr == nil {
		return nil
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO run_errors (run_id, error_message, created_at) VALUES (?, ?, ?)`,
		runID, runErr.Error(), now)
	return errors.Wrapf(err, "save error of run %s", runID)
}

// ListRuns returns all runs, newest first.
func (s *RunStore) ListRuns(ctx context.Context) ([]model.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, spec, status, export, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	runs := []model.RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, errors.Wrap(rows.Err(), "list runs")
}

// GetRun fetches a run by ID. It returns sql.ErrNoRows when there is none.
func (s *RunStore) GetRun(ctx context.Context, runID string) (model.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, spec, status, export, created_at, updated_at FROM runs WHERE id = ?`, runID)
	return scanRun(row)
}

// GetRunErrors returns the errors recorded for a run, oldest first.
func (s *RunStore) GetRunErrors(ctx context.Context, runID string) ([]model.RunError, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "list run errors")
	}
	defer rows.Close()

	runErrors := []model.RunError{}
	for rows.Next() {
		var e model.RunError
		if err := rows.Scan(&e.RunID, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		runErrors = append(runErrors, e)
	}
	return runErrors, errors.Wrap(rows.Err(), "list run errors")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (model.RunRecord, error) {
	var (
		run        model.RunRecord
		specJSON   string
		exportJSON sql.NullString
	)
	if err := row.Scan(&run.ID, &specJSON, &run.Status, &exportJSON, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return model.RunRecord{}, err
	}
	if err := json.Unmarshal([]byte(specJSON), &run.Spec); err != nil {
		return model.RunRecord{}, errors.Wrapf(err, "decode spec of run %s", run.ID)
	}
	if exportJSON.Valid && exportJSON.String != "" {
		run.Export = &model.ExportResult{}
		if err := json.Unmarshal([]byte(exportJSON.String), run.Export); err != nil {
			return model.RunRecord{}, errors.Wrapf(err, "decode export of run %s", run.ID)
		}
	}
	return run, nil
}
