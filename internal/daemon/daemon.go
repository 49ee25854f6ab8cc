// Package daemon composes the sync engine, its store and the library
// watcher into the long-running melodex process.
package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/melodex/melodex/internal/config"
	"github.com/melodex/melodex/internal/db"
	"github.com/melodex/melodex/internal/sync"
	"github.com/melodex/melodex/internal/utils"
	"github.com/melodex/melodex/internal/workspace"
)

type Daemon struct {
	cfg     *config.Config
	ws      *workspace.Workspace
	service *sync.Service
	watcher *sync.LibraryWatcher
}

func New(cfg *config.Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ws, err := workspace.NewWorkspace(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	return &Daemon{cfg: cfg, ws: ws}, nil
}

// Workspace exposes the daemon's data-dir layout (log path and friends).
func (d *Daemon) Workspace() *workspace.Workspace {
	return d.ws
}

// Start locks the workspace, opens the store and brings up the engine and
// the library watcher. ctx bounds the lifetime of all background work.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.ws.Setup(); err != nil {
		return err
	}
	if err := d.ws.Lock(); err != nil {
		return err
	}

	database, err := db.NewSqliteDB(db.WithPath(d.ws.DBPath))
	if err != nil {
		return fmt.Errorf("open sync db: %w", err)
	}

	store := sync.NewStore(database)

	uploader, err := newUploader(d.cfg)
	if err != nil {
		database.Close()
		return err
	}

	d.service = sync.NewService(store, uploader, d.cfg.SyncOptions())
	if err := d.service.Initialize(ctx); err != nil {
		database.Close()
		return fmt.Errorf("initialize sync service: %w", err)
	}

	libraryDir, err := utils.ResolvePath(d.cfg.LibraryDir)
	if err != nil {
		return err
	}
	if !utils.DirExists(libraryDir) {
		return fmt.Errorf("library directory %s does not exist", libraryDir)
	}

	d.watcher = sync.NewLibraryWatcher(libraryDir, d.service)
	if err := d.watcher.Start(ctx); err != nil {
		return fmt.Errorf("start library watcher: %w", err)
	}

	slog.Info("melodex daemon started", "library", libraryDir, "data", d.ws.Root,
		"autoSync", d.cfg.AutoSync, "uploader", d.cfg.Uploader)
	return nil
}

// Stop tears everything down in reverse order. In-flight sync passes are
// drained, not cancelled.
func (d *Daemon) Stop() error {
	slog.Info("melodex daemon stopping")

	if d.watcher != nil {
		d.watcher.Stop()
	}
	if d.service != nil {
		d.service.StopAutoSync()
		if err := d.service.Cleanup(); err != nil {
			slog.Error("sync service cleanup", "error", err)
		}
	}
	return d.ws.Unlock()
}

// Service exposes the engine for CLI subcommands.
func (d *Daemon) Service() *sync.Service {
	return d.service
}

func newUploader(cfg *config.Config) (sync.ChunkUploader, error) {
	switch cfg.Uploader {
	case config.UploaderS3:
		return sync.NewS3Uploader(cfg.S3)
	default:
		return sync.NewLocalUploader(), nil
	}
}
