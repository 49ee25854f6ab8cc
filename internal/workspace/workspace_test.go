package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspace_SetupCreatesLayout(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, ws.Setup())
	assert.DirExists(t, ws.Root)
	assert.DirExists(t, ws.LogsDir)
}

func TestWorkspace_LockExcludesSecondInstance(t *testing.T) {
	dir := t.TempDir()

	first, err := NewWorkspace(dir)
	require.NoError(t, err)
	require.NoError(t, first.Lock())

	second, err := NewWorkspace(dir)
	require.NoError(t, err)
	assert.ErrorIs(t, second.Lock(), ErrWorkspaceLocked)

	require.NoError(t, first.Unlock())
	assert.NoError(t, second.Lock())
	assert.NoError(t, second.Unlock())
}

func TestWorkspace_UnlockWithoutLockIsNoop(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, ws.Unlock())
}
