package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/melodex/melodex/internal/queue"
)

// FileSyncer drives the single-file sync routine. Per-file failures are
// recorded on the file row and returned for observability; only store
// failures abort a pass.
type FileSyncer interface {
	SyncFile(ctx context.Context, meta *SyncMetadata) error
}

// Scheduler owns the auto-sync timer, the single-pass guard and the
// work queue. Exactly one pass runs at a time: a trigger that arrives
// while a pass is in flight is a no-op. Pending files are fetched fresh
// at the start of each pass and processed in groups of maxConcurrent,
// fully concurrent within a group, strictly sequential between groups.
type Scheduler struct {
	store         *Store
	syncer        FileSyncer
	interval      time.Duration
	maxConcurrent int
	maxRetries    int

	muPass   sync.Mutex // held for the duration of a pass
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
	muStart  sync.Mutex
	started  bool
}

func NewScheduler(store *Store, syncer FileSyncer, interval time.Duration, maxConcurrent, maxRetries int) *Scheduler {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Scheduler{
		store:         store,
		syncer:        syncer,
		interval:      interval,
		maxConcurrent: maxConcurrent,
		maxRetries:    maxRetries,
		done:          make(chan struct{}),
	}
}

// Start launches the periodic auto-sync loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.muStart.Lock()
	defer s.muStart.Unlock()
	if s.started {
		return errors.New("scheduler already started")
	}
	s.started = true

	slog.Info("sync scheduler start", "interval", s.interval, "maxConcurrent", s.maxConcurrent)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// a timer instead of a ticker, so passes that overrun the
		// interval don't queue up ticks behind themselves
		timer := time.NewTimer(s.interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-timer.C:
				if err := s.RunPass(ctx); err != nil &&
					!errors.Is(err, ErrSyncAlreadyRunning) &&
					!errors.Is(err, context.Canceled) {
					slog.Error("sync pass failed", "error", err)
				}
				timer.Reset(s.interval)
			}
		}
	}()

	return nil
}

// Stop halts the timer. An in-flight pass is allowed to run to
// completion; use Wait to drain it.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// Wait blocks until the timer loop and all triggered passes have
// finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Stopped reports whether Stop has been called.
func (s *Scheduler) Stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Trigger runs a pass in the background. A no-op when a pass is already
// in flight or the scheduler has been stopped; stopped engines only sync
// through an explicit RunPass.
func (s *Scheduler) Trigger(ctx context.Context) {
	if s.Stopped() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.RunPass(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrSyncAlreadyRunning):
			slog.Debug("sync pass already running, trigger dropped")
		case errors.Is(err, context.Canceled):
		default:
			slog.Error("sync pass failed", "error", err)
		}
	}()
}

// RunPass processes every pending and error file once. Returns
// ErrSyncAlreadyRunning when another pass holds the guard. A store
// failure aborts the pass; per-file failures never do.
func (s *Scheduler) RunPass(ctx context.Context) error {
	if !s.muPass.TryLock() {
		return ErrSyncAlreadyRunning
	}
	defer s.muPass.Unlock()

	tStart := time.Now()

	files, err := s.store.ListPending(ctx, s.maxRetries)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	// oldest modification first, matching the selection order of the
	// pending query even as groups drain concurrently
	work := queue.NewPriorityQueue[*SyncMetadata]()
	for _, meta := range files {
		work.Enqueue(meta, int(meta.LastModified.UnixNano()/int64(time.Millisecond)))
	}

	var synced, failed int
	for work.Len() > 0 {
		group := make([]*SyncMetadata, 0, s.maxConcurrent)
		for len(group) < s.maxConcurrent {
			meta, ok := work.Dequeue()
			if !ok {
				break
			}
			group = append(group, meta)
		}

		g, gctx := errgroup.WithContext(ctx)
		var mu sync.Mutex
		for _, meta := range group {
			g.Go(func() error {
				err := s.syncer.SyncFile(gctx, meta)
				if err != nil {
					if IsStoreError(err) {
						return err
					}
					// recorded on the file row by the syncer
					mu.Lock()
					failed++
					mu.Unlock()
					return nil
				}
				mu.Lock()
				synced++
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	slog.Info("sync pass", "files", len(files), "synced", synced, "failed", failed, "took", time.Since(tStart))
	return nil
}
