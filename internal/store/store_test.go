package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edwin001-tech/misused-senders/internal/domain"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTest(t)
	require.NoError(t, Migrate(context.Background(), db.Pool))

	var v int
	require.NoError(t, db.Pool.QueryRow(`PRAGMA user_version;`).Scan(&v))
	assert.Equal(t, len(migrations), v)
	assert.True(t, columnExists(db.Pool, "runs", "report_name"))
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	started := time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC)
	id, err := db.StartRun(ctx, started)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	r, err := db.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, r.Status)
	assert.True(t, r.StartedAt.Equal(started))
	assert.True(t, r.FinishedAt.IsZero())

	require.NoError(t, db.FinishRun(ctx, id, RunResult{
		FinishedAt: started.Add(time.Minute),
		Processed:  1200,
		Mismatches: 3,
		Emailed:    true,
		ReportName: "misused_senders.csv",
	}))

	r, err = db.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, r.Status)
	assert.Equal(t, 1200, r.Processed)
	assert.Equal(t, 3, r.Mismatches)
	assert.True(t, r.Emailed)
	assert.Equal(t, "misused_senders.csv", r.ReportName)
	assert.Empty(t, r.Error)

	id2, err := db.StartRun(ctx, started.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, db.FinishRun(ctx, id2, RunResult{FinishedAt: started.Add(2 * time.Hour), Err: errors.New("smtp down")}))

	runs, err := db.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, id2, runs[0].ID)
	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.Equal(t, "smtp down", runs[0].Error)
}

func TestRunsOrderWithinOneSecond(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	whole := time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC)
	later, err := db.StartRun(ctx, whole.Add(500*time.Millisecond))
	require.NoError(t, err)
	first, err := db.StartRun(ctx, whole)
	require.NoError(t, err)

	runs, err := db.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, later, runs[0].ID)
	assert.Equal(t, first, runs[1].ID)

	assert.Equal(t, "2026-10-17T06:00:00.000000000Z", formatTS(whole))
	assert.Len(t, formatTS(whole.Add(time.Millisecond)), len(formatTS(whole)))
	assert.True(t, parseTS("2026-10-17T06:00:00.5Z").Equal(whole.Add(500*time.Millisecond)))
}

func TestGetRunNotFound(t *testing.T) {
	db := openTest(t)
	_, err := db.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.FinishRun(context.Background(), "nope", RunResult{}), ErrNotFound)
}

func TestMismatchesRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)
	id, err := db.StartRun(ctx, time.Now())
	require.NoError(t, err)

	at := time.Date(2026, 10, 17, 5, 4, 3, 0, time.UTC)
	rows := []domain.Mismatch{
		{Date: at, SenderID: "SHOP", Message: "Sale!", ClassifiedType: domain.Promotional, ExpectedType: domain.Transactional},
		{Date: at.Add(time.Second), SenderID: "ODD", Message: "??", ClassifiedType: domain.Unknown, ExpectedType: domain.Transactional},
	}
	require.NoError(t, db.InsertMismatches(ctx, id, rows))
	require.NoError(t, db.InsertMismatches(ctx, id, nil))

	got, err := db.ListMismatches(ctx, id)
	require.NoError(t, err)
	if diff := cmp.Diff(rows, got); diff != "" {
		t.Fatalf("mismatches (-want +got):\n%s", diff)
	}

	none, err := db.ListMismatches(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCleanupOldRuns(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	old, err := db.StartRun(ctx, time.Now().Add(-100*24*time.Hour))
	require.NoError(t, err)
	require.NoError(t, db.InsertMismatches(ctx, old, []domain.Mismatch{{Date: time.Now(), SenderID: "X"}}))
	fresh, err := db.StartRun(ctx, time.Now())
	require.NoError(t, err)

	n, err := db.CleanupOldRuns(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = db.GetRun(ctx, old)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.GetRun(ctx, fresh)
	assert.NoError(t, err)

	left, err := db.ListMismatches(ctx, old)
	require.NoError(t, err)
	assert.Empty(t, left)

	n, err = db.CleanupOldRuns(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}
