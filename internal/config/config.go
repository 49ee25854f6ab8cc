// Package config loads and persists the melodex daemon configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/melodex/melodex/internal/sync"
	"github.com/melodex/melodex/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".melodex", "config.json")
	DefaultDataDir    = filepath.Join(home, ".melodex")
	DefaultLibraryDir = filepath.Join(home, "Music")
)

const (
	DefaultSyncIntervalMins = 5
	DefaultMaxConcurrent    = 3
	DefaultChunkSize        = sync.DefaultChunkSize

	UploaderLocal = "local"
	UploaderS3    = "s3"
)

type Config struct {
	LibraryDir string `json:"library_dir"`
	DataDir    string `json:"data_dir"`

	Enabled              bool  `json:"enabled"`
	AutoSync             bool  `json:"auto_sync"`
	SyncIntervalMins     int   `json:"sync_interval"`
	MaxConcurrentUploads int   `json:"max_concurrent_uploads"`
	MaxRetries           int   `json:"max_retries"`
	ChunkSize            int64 `json:"chunk_size"`
	SyncTimeoutSecs      int   `json:"sync_timeout"`

	Uploader string         `json:"uploader"`
	S3       *sync.S3Config `json:"s3,omitempty"`

	Path string `json:"-"`
}

func Default() *Config {
	return &Config{
		LibraryDir:           DefaultLibraryDir,
		DataDir:              DefaultDataDir,
		Enabled:              true,
		AutoSync:             true,
		SyncIntervalMins:     DefaultSyncIntervalMins,
		MaxConcurrentUploads: DefaultMaxConcurrent,
		ChunkSize:            DefaultChunkSize,
		Uploader:             UploaderLocal,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) Validate() error {
	if c.LibraryDir == "" {
		return fmt.Errorf("library_dir is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.SyncIntervalMins <= 0 {
		return fmt.Errorf("sync_interval must be positive")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive")
	}
	if c.Uploader != UploaderLocal && c.Uploader != UploaderS3 {
		return fmt.Errorf("unknown uploader %q", c.Uploader)
	}
	if c.Uploader == UploaderS3 {
		if c.S3 == nil || c.S3.Bucket == "" {
			return fmt.Errorf("s3 uploader requires a bucket")
		}
	}
	return nil
}

// SyncOptions maps the configuration onto the engine's option set.
func (c *Config) SyncOptions() sync.Options {
	return sync.Options{
		Enabled:              c.Enabled,
		AutoSync:             c.AutoSync,
		SyncInterval:         time.Duration(c.SyncIntervalMins) * time.Minute,
		MaxConcurrentUploads: c.MaxConcurrentUploads,
		MaxRetries:           c.MaxRetries,
		ChunkSize:            c.ChunkSize,
		SyncTimeout:          time.Duration(c.SyncTimeoutSecs) * time.Second,
	}
}
