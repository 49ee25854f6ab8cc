package sync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rjeczalik/notify"

	"github.com/melodex/melodex/internal/utils"
)

const (
	watcherBufferSize      = 64
	defaultDebounceTimeout = 500 * time.Millisecond
)

// LibraryWatcher watches the music library directory recursively and
// queues changed audio files for sync. Write bursts (tag editors, rips in
// progress) are debounced per path.
type LibraryWatcher struct {
	dir     string
	service *Service

	rawEvents chan notify.EventInfo
	debounce  time.Duration
	timers    map[string]*time.Timer
	timersMu  sync.Mutex
	wg        sync.WaitGroup
}

func NewLibraryWatcher(dir string, service *Service) *LibraryWatcher {
	return &LibraryWatcher{
		dir:      dir,
		service:  service,
		debounce: defaultDebounceTimeout,
		timers:   make(map[string]*time.Timer),
	}
}

// SetDebounceTimeout overrides the per-path debounce window.
func (w *LibraryWatcher) SetDebounceTimeout(d time.Duration) {
	w.debounce = d
}

func (w *LibraryWatcher) Start(ctx context.Context) error {
	slog.Info("library watcher start", "dir", w.dir)

	w.rawEvents = make(chan notify.EventInfo, watcherBufferSize)
	if err := notify.Watch(w.dir+"/...", w.rawEvents, notify.Write, notify.Create, notify.Rename); err != nil {
		return err
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()

	return nil
}

func (w *LibraryWatcher) Stop() {
	slog.Info("library watcher stop")
	notify.Stop(w.rawEvents)
	close(w.rawEvents)
	w.wg.Wait()

	w.timersMu.Lock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.timersMu.Unlock()
}

func (w *LibraryWatcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.rawEvents:
			if !ok {
				return
			}
			path := event.Path()
			if !utils.IsAudioFile(path) {
				continue
			}
			w.schedule(ctx, path)
		}
	}
}

// schedule (re)arms the debounce timer for a path; the queue fires once
// the path has been quiet for the debounce window.
func (w *LibraryWatcher) schedule(ctx context.Context, path string) {
	w.timersMu.Lock()
	defer w.timersMu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Reset(w.debounce)
		return
	}

	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.timersMu.Lock()
		delete(w.timers, path)
		w.timersMu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if !utils.FileExists(path) {
			// deleted before the debounce fired
			return
		}
		if _, err := w.service.QueueFileForSync(ctx, path); err != nil {
			slog.Warn("queue changed file", "path", path, "error", err)
		}
	})
}
