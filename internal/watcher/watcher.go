// Package watcher re-triggers chopping when composite files change. Events
// are debounced and deduplicated, and handlers run one at a time from a
// single goroutine: a reverse-merge rewrite of a composite file must never
// race with an event-driven re-read of the same file, so at most one run is
// in flight and newer events queue behind it.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/carver/internal/block"
	"github.com/conneroisu/carver/internal/logging"
)

// Handler processes a batch of changed composite file paths. Handlers are
// invoked sequentially; a slow handler delays later batches instead of
// overlapping them.
type Handler func(paths []string) error

// Filter reports whether a changed path is worth re-processing.
type Filter func(path string) bool

// Watcher watches a directory tree for composite file changes.
type Watcher struct {
	fsw       *fsnotify.Watcher
	debouncer *debouncer
	filters   []Filter
	handler   Handler
	logger    logging.Logger
	mu        sync.RWMutex
}

// New creates a watcher with the given debounce delay.
func New(debounce time.Duration, logger logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Watcher{
		fsw: fsw,
		debouncer: &debouncer{
			delay:  debounce,
			events: make(chan string, 100),
			output: make(chan []string, 10),
		},
		logger: logger.WithComponent("watcher"),
	}, nil
}

// AddFilter adds a path filter. All filters must accept a path.
func (w *Watcher) AddFilter(f Filter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.filters = append(w.filters, f)
}

// SetHandler sets the function invoked with each debounced batch.
func (w *Watcher) SetHandler(h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handler = h
}

// AddRecursive watches root and every subdirectory under it. A plain file
// root is watched directly.
func (w *Watcher) AddRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || path == root {
			return w.fsw.Add(path)
		}
		return nil
	})
}

// Start runs the watch loops until ctx is done.
func (w *Watcher) Start(ctx context.Context) {
	go w.debouncer.run(ctx)
	go w.dispatch(ctx)
	go w.watchLoop(ctx)
}

// Stop closes the underlying filesystem watcher.
func (w *Watcher) Stop() error {
	w.debouncer.stop()
	return w.fsw.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-w.fsw.Events:
			w.handleEvent(ctx, event)
		case err := <-w.fsw.Errors:
			w.logger.Warn(ctx, err, "watch error")
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	// Only writes and creates can change composite content worth re-chopping.
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	w.mu.RLock()
	filters := w.filters
	w.mu.RUnlock()
	for _, f := range filters {
		if !f(event.Name) {
			return
		}
	}

	select {
	case w.debouncer.events <- event.Name:
	default:
		w.logger.Warn(ctx, nil, "event queue full, dropping event", "path", event.Name)
	}
}

// dispatch invokes the handler for each debounced batch. Running on a
// single goroutine is what serializes orchestrator runs.
func (w *Watcher) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case paths := <-w.debouncer.output:
			w.mu.RLock()
			handler := w.handler
			w.mu.RUnlock()
			if handler == nil {
				continue
			}
			if err := handler(paths); err != nil {
				w.logger.Error(ctx, err, "change handler failed")
			}
		}
	}
}

// CompositeFilter accepts composite files only.
func CompositeFilter(path string) bool {
	return strings.HasSuffix(path, block.CompositeSuffix)
}

// NoSymlinkFilter rejects symbolic links so backup links are not processed
// twice.
func NoSymlinkFilter(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSymlink == 0
}

// NoHiddenDirFilter rejects paths under dot-directories such as .git.
func NoHiddenDirFilter(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && strings.HasPrefix(part, ".") {
			return false
		}
	}
	return true
}

// debouncer groups rapid changes to the same files into one batch.
type debouncer struct {
	delay   time.Duration
	events  chan string
	output  chan []string
	timer   *time.Timer
	pending map[string]struct{}
	mu      sync.Mutex
}

func (d *debouncer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-d.events:
			d.add(path)
		}
	}
}

func (d *debouncer) add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending == nil {
		d.pending = make(map[string]struct{})
	}
	d.pending[path] = struct{}{}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pending) == 0 {
		return
	}
	paths := make([]string, 0, len(d.pending))
	for p := range d.pending {
		paths = append(paths, p)
	}
	d.pending = nil

	select {
	case d.output <- paths:
	default:
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
