package lock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLockExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "job.lock")

	a := New(path)
	require.NoError(t, a.TryLock())

	b := New(path)
	assert.ErrorIs(t, b.TryLock(), ErrLocked)

	require.NoError(t, a.Unlock())
	require.NoError(t, b.TryLock())
	require.NoError(t, b.Unlock())
}
