package sync

import (
	"fmt"
	"io"
	"os"
)

// ChunkReader reads fixed-size byte ranges of a file for chunked transfer.
// Chunk indices are zero-based; the last chunk may be short.
type ChunkReader struct {
	file      *os.File
	size      int64
	chunkSize int64
}

// OpenChunkReader opens path for ranged reads with the given chunk size.
func OpenChunkReader(path string, chunkSize int64) (*ChunkReader, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("invalid chunk size %d", chunkSize)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	return &ChunkReader{
		file:      file,
		size:      info.Size(),
		chunkSize: chunkSize,
	}, nil
}

// Size returns the file size observed at open.
func (r *ChunkReader) Size() int64 {
	return r.size
}

// Count returns ceil(fileSize / chunkSize). An empty file has zero chunks.
func (r *ChunkReader) Count() int {
	return int(divideAndCeil(r.size, r.chunkSize))
}

// SizeOf returns the byte length of the chunk at index, zero if the index
// is out of range.
func (r *ChunkReader) SizeOf(index int) int64 {
	offset := int64(index) * r.chunkSize
	if index < 0 || offset >= r.size {
		return 0
	}
	if remaining := r.size - offset; remaining < r.chunkSize {
		return remaining
	}
	return r.chunkSize
}

// Read returns the bytes of the chunk at index.
func (r *ChunkReader) Read(index int) ([]byte, error) {
	length := r.SizeOf(index)
	if length == 0 {
		return nil, fmt.Errorf("chunk index %d out of range", index)
	}

	section := io.NewSectionReader(r.file, int64(index)*r.chunkSize, length)
	data, err := io.ReadAll(section)
	if err != nil {
		return nil, fmt.Errorf("read chunk %d: %w", index, err)
	}
	return data, nil
}

// Close releases the underlying file handle.
func (r *ChunkReader) Close() error {
	return r.file.Close()
}

func divideAndCeil(numerator, denominator int64) int64 {
	if denominator == 0 {
		return 0
	}
	quotient := numerator / denominator
	if numerator%denominator != 0 {
		quotient++
	}
	return quotient
}
