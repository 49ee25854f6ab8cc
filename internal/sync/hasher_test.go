package sync

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFile_MatchesHashBytes(t *testing.T) {
	content := []byte("a short test track")
	path := filepath.Join(t.TempDir(), "track.mp3")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	fileHash, err := HashFile(path)
	require.NoError(t, err)

	assert.Equal(t, HashBytes(content), fileHash)
	assert.Len(t, fileHash, 64) // hex sha256
}

func TestHashFile_Deterministic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.flac")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xAB}, 1<<16), 0o644))

	h1, err := HashFile(path)
	require.NoError(t, err)
	h2, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestHashFile_Missing(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "nope.ogg"))
	assert.Error(t, err)
}

func TestHashReader_EmptyInput(t *testing.T) {
	h, err := HashReader(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, HashBytes(nil), h)
}
