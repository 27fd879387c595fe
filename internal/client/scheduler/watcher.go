package scheduler

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rjeczalik/notify"
)

// rawDebounce absorbs editor write bursts: an event fires downstream only
// after the path stays quiet for this long.
const rawDebounce = 50 * time.Millisecond

// Watcher emits write-stable change notifications for paths under root.
// Paths marked with IgnoreOnce are suppressed for their next event, which
// keeps the daemon's own downloads from triggering a sync loop.
type Watcher struct {
	root   string
	raw    chan notify.EventInfo
	events chan string

	ignoreOnce mapset.Set[string]

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewWatcher(root string) *Watcher {
	return &Watcher{
		root:       root,
		raw:        make(chan notify.EventInfo, 64),
		events:     make(chan string, 64),
		ignoreOnce: mapset.NewSet[string](),
		timers:     make(map[string]*time.Timer),
	}
}

func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("file watcher start", "dir", w.root)

	recursivePath := filepath.Join(w.root, "...")
	if err := notify.Watch(recursivePath, w.raw, notify.Write|notify.Create|notify.Rename); err != nil {
		return err
	}

	go w.debounceLoop(ctx)
	return nil
}

func (w *Watcher) Stop() {
	notify.Stop(w.raw)
	close(w.raw)
	slog.Info("file watcher stop")
}

// Events yields absolute paths whose content stopped changing.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// IgnoreOnce suppresses the next event for path. Call before writing a
// pulled file to disk.
func (w *Watcher) IgnoreOnce(path string) {
	w.ignoreOnce.Add(filepath.Clean(path))
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.raw:
			if !ok {
				return
			}
			w.schedule(ev.Path())
		}
	}
}

// schedule arms (or re-arms) the per-path quiet timer.
func (w *Watcher) schedule(path string) {
	path = filepath.Clean(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Reset(rawDebounce)
		return
	}

	w.timers[path] = time.AfterFunc(rawDebounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		if w.ignoreOnce.Contains(path) {
			w.ignoreOnce.Remove(path)
			slog.Debug("watcher suppressed self-write", "path", path)
			return
		}

		select {
		case w.events <- path:
		default:
			slog.Warn("watcher events buffer full", "dropped", path)
		}
	})
}
