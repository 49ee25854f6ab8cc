package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melodex/melodex/internal/sync"
)

func TestConfig_SaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.LibraryDir = "/music"
	cfg.MaxRetries = 5
	cfg.Uploader = UploaderS3
	cfg.S3 = &sync.S3Config{Bucket: "melodex-chunks", Region: "us-east-1"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/music", loaded.LibraryDir)
	assert.Equal(t, 5, loaded.MaxRetries)
	assert.Equal(t, UploaderS3, loaded.Uploader)
	require.NotNil(t, loaded.S3)
	assert.Equal(t, "melodex-chunks", loaded.S3.Bucket)
	assert.Equal(t, path, loaded.Path)
}

func TestConfig_Validate(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())

	bad := Default()
	bad.ChunkSize = 0
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.Uploader = "carrier-pigeon"
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.Uploader = UploaderS3 // no bucket configured
	assert.Error(t, bad.Validate())
}

func TestConfig_SyncOptions(t *testing.T) {
	cfg := Default()
	cfg.SyncIntervalMins = 10
	cfg.SyncTimeoutSecs = 30

	opts := cfg.SyncOptions()
	assert.Equal(t, 10*time.Minute, opts.SyncInterval)
	assert.Equal(t, 30*time.Second, opts.SyncTimeout)
	assert.Equal(t, cfg.ChunkSize, opts.ChunkSize)
	assert.True(t, opts.Enabled)
}
