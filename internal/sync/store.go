package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS sync_files (
    id TEXT PRIMARY KEY,
    file_path TEXT NOT NULL UNIQUE,
    hash TEXT NOT NULL,
    size INTEGER NOT NULL DEFAULT 0,
    last_modified INTEGER NOT NULL, -- unix nanos
    last_synced INTEGER,            -- unix nanos, NULL until first success
    sync_status TEXT NOT NULL DEFAULT 'pending',
    error_message TEXT,
    retry_count INTEGER NOT NULL DEFAULT 0,
    version INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_sync_files_status ON sync_files(sync_status);
CREATE INDEX IF NOT EXISTS idx_sync_files_modified ON sync_files(last_modified);

CREATE TABLE IF NOT EXISTS sync_chunks (
    id TEXT PRIMARY KEY,
    file_id TEXT NOT NULL REFERENCES sync_files(id) ON DELETE CASCADE,
    chunk_index INTEGER NOT NULL,
    chunk_hash TEXT NOT NULL DEFAULT '',
    uploaded INTEGER NOT NULL DEFAULT 0,
    UNIQUE(file_id, chunk_index)
);

CREATE INDEX IF NOT EXISTS idx_sync_chunks_file ON sync_chunks(file_id);
`

// StoreError marks a failure of the metadata store itself, as opposed to a
// per-file failure. Store errors abort a whole pass instead of being
// recorded on a single file row.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("sync store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreError reports whether err originated in the metadata store.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// Store persists per-file sync status and per-chunk upload status.
// Single statements go straight to SQLite (WAL + busy timeout handle
// writer contention); only the read-modify-write of Upsert is serialized.
type Store struct {
	db   *sqlx.DB
	muUp sync.Mutex
}

// NewStore wraps an open database handle. Call Init before use.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Init creates the metadata and chunk tables if absent.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, storeSchema); err != nil {
		return storeErr("init schema", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type fileRow struct {
	ID           string         `db:"id"`
	FilePath     string         `db:"file_path"`
	Hash         string         `db:"hash"`
	Size         int64          `db:"size"`
	LastModified int64          `db:"last_modified"`
	LastSynced   sql.NullInt64  `db:"last_synced"`
	SyncStatus   string         `db:"sync_status"`
	ErrorMessage sql.NullString `db:"error_message"`
	RetryCount   int            `db:"retry_count"`
	Version      int64          `db:"version"`
}

func (r *fileRow) toMetadata() *SyncMetadata {
	meta := &SyncMetadata{
		ID:           r.ID,
		FilePath:     r.FilePath,
		Hash:         r.Hash,
		Size:         r.Size,
		LastModified: time.Unix(0, r.LastModified),
		SyncStatus:   SyncStatus(r.SyncStatus),
		ErrorMessage: r.ErrorMessage.String,
		RetryCount:   r.RetryCount,
		Version:      r.Version,
	}
	if r.LastSynced.Valid {
		t := time.Unix(0, r.LastSynced.Int64)
		meta.LastSynced = &t
	}
	return meta
}

const fileColumns = `id, file_path, hash, size, last_modified, last_synced, sync_status, error_message, retry_count, version`

// Upsert records an observation of a file and queues it as pending.
// The row for a path is replaced, never duplicated: the id survives,
// version bumps exactly when the observed hash differs from the stored
// one, and a hash change invalidates the file's chunk rows.
func (s *Store) Upsert(ctx context.Context, filePath, hash string, size int64, modTime time.Time) (*SyncMetadata, error) {
	s.muUp.Lock()
	defer s.muUp.Unlock()

	existing, err := s.Get(ctx, filePath)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		row := &fileRow{
			ID:           uuid.NewString(),
			FilePath:     filePath,
			Hash:         hash,
			Size:         size,
			LastModified: modTime.UnixNano(),
			SyncStatus:   string(SyncStatusPending),
			Version:      1,
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO sync_files (id, file_path, hash, size, last_modified, sync_status, version)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			row.ID, row.FilePath, row.Hash, row.Size, row.LastModified, row.SyncStatus, row.Version,
		)
		if err != nil {
			return nil, storeErr("insert file", err)
		}
		return row.toMetadata(), nil
	}

	changed := existing.Hash != hash
	version := existing.Version
	if changed {
		version++
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE sync_files
		 SET hash = ?, size = ?, last_modified = ?, sync_status = ?,
		     error_message = NULL, retry_count = 0, version = ?
		 WHERE id = ?`,
		hash, size, modTime.UnixNano(), string(SyncStatusPending), version, existing.ID,
	)
	if err != nil {
		return nil, storeErr("update file", err)
	}

	if changed {
		if err := s.ResetChunks(ctx, existing.ID); err != nil {
			return nil, err
		}
	}

	return s.GetByID(ctx, existing.ID)
}

// Get returns the row for filePath, or nil when the path is untracked.
func (s *Store) Get(ctx context.Context, filePath string) (*SyncMetadata, error) {
	var row fileRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+fileColumns+` FROM sync_files WHERE file_path = ?`, filePath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get file", err)
	}
	return row.toMetadata(), nil
}

// GetByID returns the row for a file id, or nil when unknown.
func (s *Store) GetByID(ctx context.Context, id string) (*SyncMetadata, error) {
	var row fileRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+fileColumns+` FROM sync_files WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get file by id", err)
	}
	return row.toMetadata(), nil
}

// List returns every tracked file ordered by path.
func (s *Store) List(ctx context.Context) ([]*SyncMetadata, error) {
	var rows []fileRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+fileColumns+` FROM sync_files ORDER BY file_path ASC`)
	if err != nil {
		return nil, storeErr("list files", err)
	}
	return rowsToMetadata(rows), nil
}

// ListPending returns pending and error rows ordered by last_modified
// ascending. When maxRetries > 0, error rows that have exhausted their
// retry budget are excluded.
func (s *Store) ListPending(ctx context.Context, maxRetries int) ([]*SyncMetadata, error) {
	var rows []fileRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+fileColumns+` FROM sync_files
		 WHERE sync_status IN (?, ?) AND (? <= 0 OR retry_count < ?)
		 ORDER BY last_modified ASC`,
		string(SyncStatusPending), string(SyncStatusError), maxRetries, maxRetries)
	if err != nil {
		return nil, storeErr("list pending", err)
	}
	return rowsToMetadata(rows), nil
}

func rowsToMetadata(rows []fileRow) []*SyncMetadata {
	result := make([]*SyncMetadata, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].toMetadata())
	}
	return result
}

// SetStatus moves a file row to the given state.
func (s *Store) SetStatus(ctx context.Context, id string, status SyncStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_files SET sync_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return storeErr("set status", err)
	}
	return nil
}

// MarkSynced records a successful full sync: status synced, last_synced
// stamped, error cleared, retry budget reset.
func (s *Store) MarkSynced(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_files
		 SET sync_status = ?, last_synced = ?, error_message = NULL, retry_count = 0
		 WHERE id = ?`,
		string(SyncStatusSynced), at.UnixNano(), id)
	if err != nil {
		return storeErr("mark synced", err)
	}
	return nil
}

// MarkError records a per-file failure and consumes one retry.
func (s *Store) MarkError(ctx context.Context, id string, message string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_files
		 SET sync_status = ?, error_message = ?, retry_count = retry_count + 1
		 WHERE id = ?`,
		string(SyncStatusError), message, id)
	if err != nil {
		return storeErr("mark error", err)
	}
	return nil
}

// UpdateHash replaces the stored content hash, bumps the version and
// drops the file's chunk rows so chunking restarts against the new bytes.
func (s *Store) UpdateHash(ctx context.Context, id string, hash string, size int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_files SET hash = ?, size = ?, version = version + 1 WHERE id = ?`,
		hash, size, id)
	if err != nil {
		return storeErr("update hash", err)
	}
	return s.ResetChunks(ctx, id)
}

// EnsureChunks lazily creates chunk rows 0..count-1 for a file. Existing
// rows keep their uploaded state.
func (s *Store) EnsureChunks(ctx context.Context, fileID string, count int) error {
	stmt, err := s.db.PreparexContext(ctx,
		`INSERT OR IGNORE INTO sync_chunks (id, file_id, chunk_index) VALUES (?, ?, ?)`)
	if err != nil {
		return storeErr("prepare chunks", err)
	}
	defer stmt.Close()

	for i := 0; i < count; i++ {
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), fileID, i); err != nil {
			return storeErr("insert chunk", err)
		}
	}
	return nil
}

// MarkChunkUploaded flags one chunk as transferred. Marking the same
// chunk twice is a no-op.
func (s *Store) MarkChunkUploaded(ctx context.Context, fileID string, index int, chunkHash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_chunks (id, file_id, chunk_index, chunk_hash, uploaded)
		 VALUES (?, ?, ?, ?, 1)
		 ON CONFLICT(file_id, chunk_index)
		 DO UPDATE SET chunk_hash = excluded.chunk_hash, uploaded = 1`,
		uuid.NewString(), fileID, index, chunkHash)
	if err != nil {
		return storeErr("mark chunk uploaded", err)
	}
	return nil
}

// UploadedChunkIndices returns the set of chunk indices already uploaded
// for a file.
func (s *Store) UploadedChunkIndices(ctx context.Context, fileID string) (map[int]struct{}, error) {
	var indices []int
	err := s.db.SelectContext(ctx, &indices,
		`SELECT chunk_index FROM sync_chunks WHERE file_id = ? AND uploaded = 1`, fileID)
	if err != nil {
		return nil, storeErr("uploaded chunk indices", err)
	}

	set := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		set[i] = struct{}{}
	}
	return set, nil
}

// Chunks returns a file's chunk rows ordered by index.
func (s *Store) Chunks(ctx context.Context, fileID string) ([]*SyncChunk, error) {
	var rows []struct {
		ID         string `db:"id"`
		FileID     string `db:"file_id"`
		ChunkIndex int    `db:"chunk_index"`
		ChunkHash  string `db:"chunk_hash"`
		Uploaded   int    `db:"uploaded"`
	}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, file_id, chunk_index, chunk_hash, uploaded
		 FROM sync_chunks WHERE file_id = ? ORDER BY chunk_index ASC`, fileID)
	if err != nil {
		return nil, storeErr("list chunks", err)
	}

	chunks := make([]*SyncChunk, 0, len(rows))
	for _, r := range rows {
		chunks = append(chunks, &SyncChunk{
			ID:         r.ID,
			FileID:     r.FileID,
			ChunkIndex: r.ChunkIndex,
			ChunkHash:  r.ChunkHash,
			Uploaded:   r.Uploaded != 0,
		})
	}
	return chunks, nil
}

// ResetChunks drops all chunk rows for a file.
func (s *Store) ResetChunks(ctx context.Context, fileID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sync_chunks WHERE file_id = ?`, fileID)
	if err != nil {
		return storeErr("reset chunks", err)
	}
	return nil
}
