package sync

import (
	"context"
	"log/slog"

	"github.com/dustin/go-humanize"
)

// ChunkUploader transfers one chunk of a file, keyed by file id and chunk
// index. Implementations must be idempotent: uploading the same
// (fileID, index) twice has no effect beyond the store recording it once.
type ChunkUploader interface {
	Upload(ctx context.Context, fileID string, index int, data []byte, chunkHash string) error
}

// LocalUploader records chunk completion without transmitting bytes
// anywhere. It is the default backend on machines with no remote
// configured; the completion itself is persisted by the caller through
// the store.
type LocalUploader struct{}

func NewLocalUploader() *LocalUploader {
	return &LocalUploader{}
}

func (u *LocalUploader) Upload(ctx context.Context, fileID string, index int, data []byte, chunkHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	slog.Debug("chunk upload", "backend", "local", "fileId", fileID, "index", index,
		"size", humanize.Bytes(uint64(len(data))), "hash", chunkHash)
	return nil
}
