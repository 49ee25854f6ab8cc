package sync

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSyncer lets tests control the single-file routine the scheduler
// drives.
type fakeSyncer struct {
	mu      sync.Mutex
	order   []string
	current atomic.Int32
	peak    atomic.Int32
	block   chan struct{}    // when set, every call waits here
	results map[string]error // per-path result
	seen    func(meta *SyncMetadata)
}

func (f *fakeSyncer) SyncFile(ctx context.Context, meta *SyncMetadata) error {
	cur := f.current.Add(1)
	defer f.current.Add(-1)
	for {
		peak := f.peak.Load()
		if cur <= peak || f.peak.CompareAndSwap(peak, cur) {
			break
		}
	}

	f.mu.Lock()
	f.order = append(f.order, meta.FilePath)
	f.mu.Unlock()

	if f.seen != nil {
		f.seen(meta)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.results != nil {
		return f.results[meta.FilePath]
	}
	return nil
}

func (f *fakeSyncer) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

func seedPending(t *testing.T, store *Store, paths ...string) {
	t.Helper()
	base := time.Now()
	for i, path := range paths {
		_, err := store.Upsert(context.Background(), path, "hash-"+path, 10,
			base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
	}
}

func TestScheduler_SinglePassExclusivity(t *testing.T) {
	store := newTestStore(t)
	seedPending(t, store, "/m/a.mp3")

	syncer := &fakeSyncer{block: make(chan struct{})}
	sched := NewScheduler(store, syncer, time.Hour, 2, 0)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- sched.RunPass(context.Background())
	}()

	// wait for the first pass to be mid-flight
	require.Eventually(t, func() bool {
		return syncer.current.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)

	// a second trigger while the pass runs is a no-op
	err := sched.RunPass(context.Background())
	assert.ErrorIs(t, err, ErrSyncAlreadyRunning)

	close(syncer.block)
	require.NoError(t, <-firstDone)
}

func TestScheduler_ConcurrencyBound(t *testing.T) {
	store := newTestStore(t)
	seedPending(t, store, "/m/1.mp3", "/m/2.mp3", "/m/3.mp3", "/m/4.mp3", "/m/5.mp3")

	syncer := &fakeSyncer{}
	syncer.seen = func(*SyncMetadata) {
		time.Sleep(30 * time.Millisecond) // hold the slot long enough to overlap
	}
	sched := NewScheduler(store, syncer, time.Hour, 2, 0)

	require.NoError(t, sched.RunPass(context.Background()))

	assert.Len(t, syncer.callOrder(), 5)
	assert.LessOrEqual(t, syncer.peak.Load(), int32(2))
}

func TestScheduler_SelectionOrderByModTime(t *testing.T) {
	store := newTestStore(t)
	// seeded with ascending mod times in this order
	seedPending(t, store, "/m/oldest.mp3", "/m/middle.mp3", "/m/newest.mp3")

	syncer := &fakeSyncer{}
	sched := NewScheduler(store, syncer, time.Hour, 1, 0)

	require.NoError(t, sched.RunPass(context.Background()))

	assert.Equal(t, []string{"/m/oldest.mp3", "/m/middle.mp3", "/m/newest.mp3"}, syncer.callOrder())
}

func TestScheduler_StoreErrorAbortsPass(t *testing.T) {
	store := newTestStore(t)
	seedPending(t, store, "/m/a.mp3", "/m/b.mp3")

	syncer := &fakeSyncer{results: map[string]error{
		"/m/a.mp3": storeErr("set status", assert.AnError),
	}}
	sched := NewScheduler(store, syncer, time.Hour, 1, 0)

	err := sched.RunPass(context.Background())
	require.Error(t, err)
	assert.True(t, IsStoreError(err))

	// the pass stopped before reaching the second file
	assert.Equal(t, []string{"/m/a.mp3"}, syncer.callOrder())
}

func TestScheduler_PerFileErrorDoesNotAbort(t *testing.T) {
	store := newTestStore(t)
	seedPending(t, store, "/m/a.mp3", "/m/b.mp3")

	syncer := &fakeSyncer{results: map[string]error{
		"/m/a.mp3": assert.AnError,
	}}
	sched := NewScheduler(store, syncer, time.Hour, 1, 0)

	require.NoError(t, sched.RunPass(context.Background()))
	assert.Equal(t, []string{"/m/a.mp3", "/m/b.mp3"}, syncer.callOrder())
}

func TestScheduler_EmptyPassIsNoop(t *testing.T) {
	store := newTestStore(t)
	syncer := &fakeSyncer{}
	sched := NewScheduler(store, syncer, time.Hour, 2, 0)

	require.NoError(t, sched.RunPass(context.Background()))
	assert.Empty(t, syncer.callOrder())
}

func TestScheduler_TriggerAfterStopIsNoop(t *testing.T) {
	store := newTestStore(t)
	seedPending(t, store, "/m/a.mp3")

	syncer := &fakeSyncer{}
	sched := NewScheduler(store, syncer, time.Hour, 1, 0)
	sched.Stop()

	sched.Trigger(context.Background())
	sched.Wait()

	assert.Empty(t, syncer.callOrder())
}

func TestScheduler_TimerRunsPasses(t *testing.T) {
	store := newTestStore(t)
	seedPending(t, store, "/m/a.mp3")

	var passed atomic.Int32
	syncer := &fakeSyncer{}
	syncer.seen = func(*SyncMetadata) { passed.Add(1) }

	sched := NewScheduler(store, syncer, 20*time.Millisecond, 1, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, sched.Start(ctx))
	t.Cleanup(func() {
		sched.Stop()
		cancel()
		sched.Wait()
	})

	require.Eventually(t, func() bool {
		return passed.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
}
