package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Status     string    `json:"status"`
	Processed  int       `json:"processed"`
	Mismatches int       `json:"mismatches"`
	Emailed    bool      `json:"emailed"`
	Error      string    `json:"error,omitempty"`
	ReportName string    `json:"report_name,omitempty"`
}

// RunResult is what FinishRun records about a completed run.
type RunResult struct {
	FinishedAt time.Time
	Processed  int
	Mismatches int
	Emailed    bool
	ReportName string
	Err        error
}

// StartRun inserts a running row and returns its new id.
func (d *DB) StartRun(ctx context.Context, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO runs(id, started_at, status) VALUES(?, ?, ?);`,
		id, formatTS(startedAt), StatusRunning)
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	return id, nil
}

func (d *DB) FinishRun(ctx context.Context, id string, r RunResult) error {
	status, msg := StatusOK, ""
	if r.Err != nil {
		status, msg = StatusFailed, r.Err.Error()
	}
	res, err := d.Pool.ExecContext(ctx, `
UPDATE runs
SET finished_at = ?, status = ?, processed = ?, mismatches = ?, emailed = ?, error = ?, report_name = ?
WHERE id = ?;`,
		formatTS(r.FinishedAt), status, r.Processed, r.Mismatches, r.Emailed, msg, r.ReportName, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrNotFound)
	}
	return nil
}

const runColumns = `id, started_at, finished_at, status, processed, mismatches, emailed, error, report_name`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	var started, finished string
	if err := s.Scan(&r.ID, &started, &finished, &r.Status, &r.Processed, &r.Mismatches, &r.Emailed, &r.Error, &r.ReportName); err != nil {
		return Run{}, err
	}
	r.StartedAt = parseTS(started)
	r.FinishedAt = parseTS(finished)
	return r, nil
}

// ListRuns returns the newest runs first.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	rows, err := d.Pool.QueryContext(ctx, `
SELECT `+runColumns+`
FROM runs
ORDER BY started_at DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) GetRun(ctx context.Context, id string) (Run, error) {
	row := d.Pool.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?;`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// CleanupOldRuns deletes runs (and their mismatches) started before
// now - retention. A non-positive retention keeps everything.
func (d *DB) CleanupOldRuns(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := formatTS(time.Now().Add(-retention))

	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
DELETE FROM mismatches
WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?);`, cutoff); err != nil {
		return 0, fmt.Errorf("cleanup old mismatches: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}
