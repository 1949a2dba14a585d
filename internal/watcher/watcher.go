// Package watcher reports changes to individual files.
//
// Parent directories are watched rather than the files themselves, so
// editors that save by writing a temporary file and renaming it over the
// original are still seen. Bursts of events for one file are coalesced
// into a single delivery after a debounce interval.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Errors returned by Watcher.
var (
	ErrPathNotExist  = errors.New("path does not exist")
	ErrWatcherClosed = errors.New("watcher is closed")
)

// Event represents a file change event.
type Event struct {
	// Path is the absolute path to the changed file.
	Path string

	// Op is the operation that triggered the event.
	Op Operation

	// Time is when the last underlying event was seen.
	Time time.Time
}

// Operation represents the type of file operation.
type Operation int

const (
	// OpWrite indicates the file was modified.
	OpWrite Operation = iota

	// OpCreate indicates a new file was created.
	OpCreate

	// OpRemove indicates the file was deleted.
	OpRemove

	// OpRename indicates the file was renamed.
	OpRename
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Handler is called when a file change is detected.
type Handler func(event Event)

// Watcher monitors files for changes.
type Watcher struct {
	mu sync.Mutex

	fsw    *fsnotify.Watcher
	files  map[string]bool
	dirs   map[string]bool
	closed bool

	debounce time.Duration
	pending  map[string]Event
	logger   *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce duration for rapid changes.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a new file watcher.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		debounce: 100 * time.Millisecond,
		pending:  make(map[string]Event),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "watcher")
	return w, nil
}

// Watch adds a file to the watch list.
func (w *Watcher) Watch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(absPath); err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}

	dir := filepath.Dir(absPath)
	if !w.dirs[dir] {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
		w.dirs[dir] = true
	}
	w.files[absPath] = true
	return nil
}

// WatchedFiles returns the watched files, sorted.
func (w *Watcher) WatchedFiles() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	files := make([]string, 0, len(w.files))
	for path := range w.files {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// Run delivers events to fn until ctx is done or the watcher is closed.
// fn is called from Run's goroutine.
func (w *Watcher) Run(ctx context.Context, fn Handler) error {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case fsEvent, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			event, ok := w.convert(fsEvent)
			if !ok {
				continue
			}
			if w.debounce == 0 {
				fn(event)
				continue
			}
			w.queueEvent(event)
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			for _, event := range w.drain() {
				fn(event)
			}
		}
	}
}

// convert filters and translates an fsnotify event.
func (w *Watcher) convert(fsEvent fsnotify.Event) (Event, bool) {
	absPath, err := filepath.Abs(fsEvent.Name)
	if err != nil {
		return Event{}, false
	}

	w.mu.Lock()
	watched := w.files[absPath]
	w.mu.Unlock()
	if !watched {
		return Event{}, false
	}

	var op Operation
	switch {
	case fsEvent.Has(fsnotify.Remove):
		op = OpRemove
	case fsEvent.Has(fsnotify.Rename):
		op = OpRename
	case fsEvent.Has(fsnotify.Create):
		op = OpCreate
	case fsEvent.Has(fsnotify.Write):
		op = OpWrite
	default:
		// Chmod only
		return Event{}, false
	}
	return Event{Path: absPath, Op: op, Time: time.Now()}, true
}

// queueEvent queues an event for debounced delivery.
// It coalesces events:
// - create + write => create
// - write + write => write (latest time)
// - any + remove => remove (deletion takes precedence)
func (w *Watcher) queueEvent(event Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	existing, exists := w.pending[event.Path]
	if !exists {
		w.pending[event.Path] = event
		return
	}

	switch event.Op {
	case OpRemove, OpCreate:
		// A create after a remove is an atomic save; report it as written.
		if event.Op == OpCreate && existing.Op == OpRemove {
			event.Op = OpWrite
		}
		w.pending[event.Path] = event
	case OpWrite:
		// Write doesn't override create or remove
		existing.Time = event.Time
		w.pending[event.Path] = existing
	default:
		w.pending[event.Path] = event
	}
}

// drain removes and returns the pending events, ordered by path.
func (w *Watcher) drain() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	events := make([]Event, 0, len(w.pending))
	for _, event := range w.pending {
		events = append(events, event)
	}
	clear(w.pending)
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	return events
}

// Close stops the watcher. Run returns once the underlying channels close.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	return w.fsw.Close()
}
