package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/melodex/melodex/internal/utils"
)

const (
	// DefaultChunkSize partitions files into 1 MB chunks.
	DefaultChunkSize = int64(1_000_000)

	DefaultSyncInterval         = 5 * time.Minute
	DefaultMaxConcurrentUploads = 3
)

// ErrSyncDisabled is returned by engine operations when the master switch
// is off.
var ErrSyncDisabled = errors.New("sync is disabled")

// Options is the engine configuration surface.
type Options struct {
	// Enabled is the master on/off switch for the engine.
	Enabled bool
	// AutoSync runs passes on a timer and on queue triggers; when false,
	// passes only run through RunSyncPass.
	AutoSync bool
	// SyncInterval is the auto-sync timer period.
	SyncInterval time.Duration
	// MaxConcurrentUploads bounds how many file routines run at once.
	MaxConcurrentUploads int
	// MaxRetries caps automatic retries of error files; <= 0 retries
	// forever.
	MaxRetries int
	// ChunkSize is the transfer unit in bytes.
	ChunkSize int64
	// SyncTimeout bounds one file's routine; 0 means unbounded.
	SyncTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.SyncInterval <= 0 {
		o.SyncInterval = DefaultSyncInterval
	}
	if o.MaxConcurrentUploads < 1 {
		o.MaxConcurrentUploads = DefaultMaxConcurrentUploads
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	return o
}

// Service is the public entry point of the sync engine. It composes the
// store, the uploader and the scheduler, and implements the single-file
// sync routine the scheduler drives.
type Service struct {
	opts      Options
	store     *Store
	uploader  ChunkUploader
	scheduler *Scheduler

	runCtx context.Context
}

func NewService(store *Store, uploader ChunkUploader, opts Options) *Service {
	opts = opts.withDefaults()
	svc := &Service{
		opts:     opts,
		store:    store,
		uploader: uploader,
	}
	svc.scheduler = NewScheduler(store, svc, opts.SyncInterval, opts.MaxConcurrentUploads, opts.MaxRetries)
	return svc
}

// Initialize creates the metadata and chunk tables if absent, then starts
// auto-sync when configured. ctx bounds the lifetime of the timer loop
// and of passes triggered by QueueFileForSync.
func (s *Service) Initialize(ctx context.Context) error {
	if err := s.store.Init(ctx); err != nil {
		return err
	}

	s.runCtx = ctx

	if s.opts.Enabled && s.opts.AutoSync {
		if err := s.scheduler.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// QueueFileForSync stats and hashes the file, upserts a pending metadata
// row and, when auto-sync is on, triggers a pass. Re-queuing a path
// replaces its row; a changed hash bumps the version and invalidates the
// uploaded chunks.
func (s *Service) QueueFileForSync(ctx context.Context, filePath string) (*SyncMetadata, error) {
	if !s.opts.Enabled {
		return nil, ErrSyncDisabled
	}

	absPath, err := utils.ResolvePath(filePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", absPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", absPath)
	}

	hash, err := HashFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", absPath, err)
	}

	meta, err := s.store.Upsert(ctx, absPath, hash, info.Size(), info.ModTime())
	if err != nil {
		return nil, err
	}

	slog.Debug("queued for sync", "path", absPath, "version", meta.Version, "size", info.Size())

	if s.opts.AutoSync {
		s.scheduler.Trigger(s.triggerContext(ctx))
	}
	return meta, nil
}

// RunSyncPass runs one pass synchronously. Manual entry point when
// auto-sync is off.
func (s *Service) RunSyncPass(ctx context.Context) error {
	if !s.opts.Enabled {
		return ErrSyncDisabled
	}
	return s.scheduler.RunPass(ctx)
}

// StopAutoSync halts the periodic timer. An in-flight pass runs to
// completion.
func (s *Service) StopAutoSync() {
	s.scheduler.Stop()
}

// Cleanup stops the timer, waits for in-flight passes to drain and
// releases the store handle.
func (s *Service) Cleanup() error {
	s.scheduler.Stop()
	s.scheduler.Wait()
	return s.store.Close()
}

// Status returns the metadata row for a path, nil when untracked. The
// host application polls this instead of receiving push notifications.
func (s *Service) Status(ctx context.Context, filePath string) (*SyncMetadata, error) {
	absPath, err := utils.ResolvePath(filePath)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, absPath)
}

// List returns every tracked file.
func (s *Service) List(ctx context.Context) ([]*SyncMetadata, error) {
	return s.store.List(ctx)
}

// SyncFile runs the single-file routine: mark syncing, re-verify and
// re-hash the file, then upload every chunk not already recorded as
// uploaded, in index order. Failures other than store failures are
// recorded on the file row and consume one retry.
func (s *Service) SyncFile(ctx context.Context, meta *SyncMetadata) error {
	// the routine runs under an optional timeout, but outcomes are
	// recorded on the parent context so a timed-out file can still be
	// marked as errored
	routineCtx := ctx
	if s.opts.SyncTimeout > 0 {
		var cancel context.CancelFunc
		routineCtx, cancel = context.WithTimeout(ctx, s.opts.SyncTimeout)
		defer cancel()
	}

	if err := s.store.SetStatus(ctx, meta.ID, SyncStatusSyncing); err != nil {
		return err
	}

	if err := s.syncChunks(routineCtx, meta); err != nil {
		// a store failure aborts the pass, unless it was just the
		// routine timeout tearing down an in-flight store call
		if IsStoreError(err) && routineCtx.Err() == nil {
			return err
		}
		slog.Warn("file sync failed", "path", meta.FilePath, "error", err)
		if markErr := s.store.MarkError(ctx, meta.ID, err.Error()); markErr != nil {
			return markErr
		}
		return err
	}

	if err := s.store.MarkSynced(ctx, meta.ID, time.Now()); err != nil {
		return err
	}
	slog.Info("file synced", "path", meta.FilePath, "version", meta.Version)
	return nil
}

func (s *Service) syncChunks(ctx context.Context, meta *SyncMetadata) error {
	if !utils.FileExists(meta.FilePath) {
		return ErrFileVanished
	}

	// the file may have changed between queuing and processing
	hash, err := HashFile(meta.FilePath)
	if err != nil {
		return err
	}

	reader, err := OpenChunkReader(meta.FilePath, s.opts.ChunkSize)
	if err != nil {
		return err
	}
	defer reader.Close()

	if hash != meta.Hash {
		slog.Debug("content changed since queue", "path", meta.FilePath)
		if err := s.store.UpdateHash(ctx, meta.ID, hash, reader.Size()); err != nil {
			return err
		}
		meta.Hash = hash
	}

	count := reader.Count()
	if err := s.store.EnsureChunks(ctx, meta.ID, count); err != nil {
		return err
	}

	uploaded, err := s.store.UploadedChunkIndices(ctx, meta.ID)
	if err != nil {
		return err
	}

	for index := 0; index < count; index++ {
		if _, done := uploaded[index]; done {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := reader.Read(index)
		if err != nil {
			return err
		}
		chunkHash := HashBytes(data)

		if err := s.uploader.Upload(ctx, meta.ID, index, data, chunkHash); err != nil {
			return fmt.Errorf("upload chunk %d: %w", index, err)
		}
		if err := s.store.MarkChunkUploaded(ctx, meta.ID, index, chunkHash); err != nil {
			return err
		}
	}

	return nil
}

// triggerContext prefers the long-lived context from Initialize so a
// triggered pass is not cancelled when the queueing caller returns.
func (s *Service) triggerContext(ctx context.Context) context.Context {
	if s.runCtx != nil {
		return s.runCtx
	}
	return ctx
}
