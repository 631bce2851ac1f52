package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/edwin001-tech/misused-senders/internal/config"
	"github.com/edwin001-tech/misused-senders/internal/store"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigInitAndValidate(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "", "config", "init", "--data-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yml"), strings.TrimSpace(out))
	assert.FileExists(t, filepath.Join(dir, "config.yml"))

	out, err = execute(t, "", "config", "validate", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, ": ok")
}

func TestConfigValidateReportsErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("schedule:\n  cron: \"not a cron\"\n"), 0o600))

	out, err := execute(t, "", "config", "validate", "--config", path)
	require.Error(t, err)
	assert.Contains(t, out, "error:")
}

func TestHistoryListsLedgerRuns(t *testing.T) {
	dir := t.TempDir()
	ledger, err := store.Open(context.Background(), filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	id, err := ledger.StartRun(context.Background(), time.Now())
	require.NoError(t, err)
	require.NoError(t, ledger.FinishRun(context.Background(), id, store.RunResult{FinishedAt: time.Now(), Processed: 7}))
	require.NoError(t, ledger.Close())

	out, err := execute(t, "", "history", "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, id)

	out, err = execute(t, "", "history", "--data-dir", dir, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"processed": 7`)
}

func TestSecretsSetAndDelete(t *testing.T) {
	keyring.MockInit()

	out, err := execute(t, "s3cret\n", "secrets", "set", "smtp-password")
	require.NoError(t, err)
	assert.Contains(t, out, "stored smtp-password")

	got, err := keyring.Get("misused-senders", "smtp-password")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)

	_, err = execute(t, "", "secrets", "delete", "smtp-password")
	require.NoError(t, err)

	_, err = execute(t, "x\n", "secrets", "set", "bogus")
	assert.Error(t, err)
}

func TestRunFailsWithoutDatabase(t *testing.T) {
	keyring.MockInit()
	dir := t.TempDir()
	t.Setenv("SOURCE_DRIVER", "mysql")
	t.Setenv("SOURCE_DSN", "u:p@tcp(127.0.0.1:1)/x?timeout=200ms")

	_, err := execute(t, "", "run", "--data-dir", dir)
	require.Error(t, err)

	ledger, err := store.Open(context.Background(), filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	defer ledger.Close()
	runs, err := ledger.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.StatusFailed, runs[0].Status)
}

func TestReportDirDefaultsToDataDir(t *testing.T) {
	cfg := config.Default()
	cfg.App.DataDir = "/var/lib/misused-senders"
	a := &app{cfg: cfg}
	assert.Equal(t, "/var/lib/misused-senders", a.reportDir())

	a.cfg.Report.Dir = "/srv/reports"
	assert.Equal(t, "/srv/reports", a.reportDir())
}
