package sync

import (
	"errors"
	"time"
)

var (
	// ErrSyncAlreadyRunning is returned when a pass is triggered while
	// another pass holds the scheduler guard.
	ErrSyncAlreadyRunning = errors.New("sync already running")

	// ErrFileVanished is recorded on a file row when the queued file no
	// longer exists at sync time. The message is surfaced verbatim to the
	// host application.
	ErrFileVanished = errors.New("File no longer exists")
)

// SyncStatus is the lifecycle state of a tracked file.
// pending -> syncing -> {synced | error}; error rows are retried on the
// next pass, synced rows re-enter pending when their content changes.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusError   SyncStatus = "error"
)

// SyncMetadata is one row per tracked file. FilePath is unique; re-queuing
// a path replaces the row in place. Version only ever increases, bumped
// each time a re-observed content hash differs from the stored one.
type SyncMetadata struct {
	ID           string     `db:"id"`
	FilePath     string     `db:"file_path"`
	Hash         string     `db:"hash"`
	Size         int64      `db:"size"`
	LastModified time.Time  `db:"last_modified"`
	LastSynced   *time.Time `db:"last_synced"`
	SyncStatus   SyncStatus `db:"sync_status"`
	ErrorMessage string     `db:"error_message"`
	RetryCount   int        `db:"retry_count"`
	Version      int64      `db:"version"`
}

// SyncChunk is one row per (file, chunk index) pair. Rows are created
// lazily when a file first reaches the chunking stage and are the basis
// for resumability: uploaded chunks are skipped on the next attempt.
type SyncChunk struct {
	ID         string `db:"id"`
	FileID     string `db:"file_id"`
	ChunkIndex int    `db:"chunk_index"`
	ChunkHash  string `db:"chunk_hash"`
	Uploaded   bool   `db:"uploaded"`
}
