package store

import (
	"context"
	"fmt"

	"github.com/edwin001-tech/misused-senders/internal/domain"
)

// InsertMismatches stores a run's rows in one transaction.
func (d *DB) InsertMismatches(ctx context.Context, runID string, rows []domain.Mismatch) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO mismatches(run_id, date, sender_id, message, classified_type, expected_type)
VALUES(?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return fmt.Errorf("insert mismatches: %w", err)
	}
	defer stmt.Close()

	for _, m := range rows {
		if _, err := stmt.ExecContext(ctx, runID, formatTS(m.Date), m.SenderID, m.Message, m.ClassifiedType, m.ExpectedType); err != nil {
			return fmt.Errorf("insert mismatch: %w", err)
		}
	}
	return tx.Commit()
}

func (d *DB) ListMismatches(ctx context.Context, runID string) ([]domain.Mismatch, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT date, sender_id, message, classified_type, expected_type
FROM mismatches
WHERE run_id = ?
ORDER BY id;`, runID)
	if err != nil {
		return nil, fmt.Errorf("list mismatches: %w", err)
	}
	defer rows.Close()

	out := []domain.Mismatch{}
	for rows.Next() {
		var m domain.Mismatch
		var date string
		if err := rows.Scan(&date, &m.SenderID, &m.Message, &m.ClassifiedType, &m.ExpectedType); err != nil {
			return nil, fmt.Errorf("list mismatches: %w", err)
		}
		m.Date = parseTS(date)
		out = append(out, m)
	}
	return out, rows.Err()
}
