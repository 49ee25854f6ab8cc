package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibraryWatcher_QueuesChangedAudioFile(t *testing.T) {
	svc := newTestService(t, nil, Options{ChunkSize: 1000})
	libDir := t.TempDir()

	watcher := NewLibraryWatcher(libDir, svc)
	watcher.SetDebounceTimeout(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))
	t.Cleanup(watcher.Stop)

	path := filepath.Join(libDir, "new.mp3")
	require.NoError(t, os.WriteFile(path, []byte("riff"), 0o644))

	require.Eventually(t, func() bool {
		meta, err := svc.Status(ctx, path)
		return err == nil && meta != nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestLibraryWatcher_IgnoresNonAudioFiles(t *testing.T) {
	svc := newTestService(t, nil, Options{ChunkSize: 1000})
	libDir := t.TempDir()

	watcher := NewLibraryWatcher(libDir, svc)
	watcher.SetDebounceTimeout(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))
	t.Cleanup(watcher.Stop)

	path := filepath.Join(libDir, "cover.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not audio"), 0o644))

	time.Sleep(200 * time.Millisecond)

	meta, err := svc.Status(ctx, path)
	require.NoError(t, err)
	assert.Nil(t, meta)
}
