package tasks

import (
	"sync"
	"time"

	"log/slog"

	"github.com/fsnotify/fsnotify"

	"demosaic/internal/fsutil"
)

// watchDebounce is how long a path must stay quiet before its event fires.
// Encoders write in several syscalls; the delay keeps half-written files
// out of the queue.
const watchDebounce = 500 * time.Millisecond

// FileEvent is a settled filesystem change for an eligible image.
type FileEvent struct {
	Path string    `json:"path"`
	Op   string    `json:"op"` // "created" or "modified"
	Time time.Time `json:"time"`
}

type pendingEvent struct {
	timer *time.Timer
	op    string
}

// Watcher monitors a directory and emits debounced events for new or
// rewritten image files.
type Watcher struct {
	watcher  *fsnotify.Watcher
	log      *slog.Logger
	events   chan FileEvent
	done     chan struct{}
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*pendingEvent
}

// NewWatcher creates a watcher for dir. Call Start to begin monitoring.
func NewWatcher(dir string, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{
		watcher:  fw,
		log:      logger,
		events:   make(chan FileEvent, 100),
		done:     make(chan struct{}),
		debounce: watchDebounce,
		pending:  map[string]*pendingEvent{},
	}, nil
}

// Events returns the debounced event stream. The channel is never closed;
// readers select against their own shutdown signal.
func (w *Watcher) Events() <-chan FileEvent { return w.events }

// Start begins event processing in a background goroutine.
func (w *Watcher) Start() {
	go w.run()
}

// Stop ends monitoring and cancels pending debounce timers. Timers that
// already fired find their entry gone and emit nothing.
func (w *Watcher) Stop() error {
	close(w.done)
	w.mu.Lock()
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	var op string
	switch {
	case ev.Op.Has(fsnotify.Create):
		op = "created"
	case ev.Op.Has(fsnotify.Write):
		op = "modified"
	default:
		return
	}
	if !fsutil.IsImageFile(ev.Name) {
		return
	}

	path := ev.Name
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
		// A create followed by writes is still one new file.
		if p.op == "created" {
			op = "created"
		}
	}
	p := &pendingEvent{op: op}
	p.timer = time.AfterFunc(w.debounce, func() {
		// Only the entry this timer belongs to may emit; a reset or Stop
		// that won the race leaves a different (or no) entry behind.
		w.mu.Lock()
		cur, ok := w.pending[path]
		if ok && cur == p {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		if !ok || cur != p {
			return
		}
		w.emit(FileEvent{Path: path, Op: p.op, Time: time.Now()})
	})
	w.pending[path] = p
}

func (w *Watcher) emit(ev FileEvent) {
	select {
	case w.events <- ev:
	default:
		w.log.Warn("event buffer full, dropping event", "path", ev.Path)
	}
}
