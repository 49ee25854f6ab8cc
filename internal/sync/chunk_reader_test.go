package sync

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, size int) string {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	path := filepath.Join(t.TempDir(), "track.wav")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestChunkReader_CountAndSizes(t *testing.T) {
	path := writeTempFile(t, 2500)

	reader, err := OpenChunkReader(path, 1000)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, int64(2500), reader.Size())
	assert.Equal(t, 3, reader.Count())
	assert.Equal(t, int64(1000), reader.SizeOf(0))
	assert.Equal(t, int64(1000), reader.SizeOf(1))
	assert.Equal(t, int64(500), reader.SizeOf(2))
	assert.Equal(t, int64(0), reader.SizeOf(3))
}

func TestChunkReader_ReassemblesFile(t *testing.T) {
	path := writeTempFile(t, 2500)
	original, err := os.ReadFile(path)
	require.NoError(t, err)

	reader, err := OpenChunkReader(path, 1000)
	require.NoError(t, err)
	defer reader.Close()

	var assembled bytes.Buffer
	for i := 0; i < reader.Count(); i++ {
		chunk, err := reader.Read(i)
		require.NoError(t, err)
		assembled.Write(chunk)
	}
	assert.Equal(t, original, assembled.Bytes())
}

func TestChunkReader_ExactMultiple(t *testing.T) {
	path := writeTempFile(t, 2000)

	reader, err := OpenChunkReader(path, 1000)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, 2, reader.Count())
	assert.Equal(t, int64(1000), reader.SizeOf(1))
}

func TestChunkReader_EmptyFile(t *testing.T) {
	path := writeTempFile(t, 0)

	reader, err := OpenChunkReader(path, 1000)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, 0, reader.Count())
	_, err = reader.Read(0)
	assert.Error(t, err)
}

func TestChunkReader_InvalidChunkSize(t *testing.T) {
	path := writeTempFile(t, 10)
	_, err := OpenChunkReader(path, 0)
	assert.Error(t, err)
}
