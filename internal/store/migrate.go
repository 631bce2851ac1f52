package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations[i] upgrades the schema from user_version i to i+1.
var migrations = []func(tx *sql.Tx) error{
	migrateV1,
	migrateV2,
}

func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= len(migrations) {
		return tx.Commit()
	}

	for i := v; i < len(migrations); i++ {
		if err := migrations[i](tx); err != nil {
			return fmt.Errorf("schema v%d: %w", i+1, err)
		}
	}
	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d;`, len(migrations))); err != nil {
		return err
	}
	return tx.Commit()
}

func migrateV1(tx *sql.Tx) error {
	stmts := []string{`
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  started_at TEXT NOT NULL,
  finished_at TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'running',
  processed INTEGER NOT NULL DEFAULT 0,
  mismatches INTEGER NOT NULL DEFAULT 0,
  emailed INTEGER NOT NULL DEFAULT 0,
  error TEXT NOT NULL DEFAULT ''
);`, `
CREATE TABLE IF NOT EXISTS mismatches (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  date TEXT NOT NULL,
  sender_id TEXT NOT NULL,
  message TEXT NOT NULL,
  classified_type TEXT NOT NULL,
  expected_type TEXT NOT NULL
);`, `
CREATE INDEX IF NOT EXISTS idx_runs_started_at
ON runs(started_at);`, `
CREATE INDEX IF NOT EXISTS idx_mismatches_run_id
ON mismatches(run_id);`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// v2 records which attachment name a run mailed.
func migrateV2(tx *sql.Tx) error {
	if columnExists(tx, "runs", "report_name") {
		return nil
	}
	_, err := tx.Exec(`ALTER TABLE runs ADD COLUMN report_name TEXT NOT NULL DEFAULT '';`)
	return err
}

func columnExists(q interface {
	QueryRow(query string, args ...any) *sql.Row
}, table, col string) bool {
	query := fmt.Sprintf(`
SELECT 1
FROM pragma_table_info('%s')
WHERE name = ?
LIMIT 1;
`, table)

	var one int
	err := q.QueryRow(query, col).Scan(&one)
	return err == nil
}
