// Package watcher observes the document folder with fsnotify and fires a
// refresh once changes settle. Every refresh is a full rebuild, so the
// watcher only collects which paths changed; it never patches the index.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 2 * time.Second

// Trigger is called with the sorted, de-duplicated paths that changed
// since the previous call.
type Trigger func(ctx context.Context, paths []string) error

// Options configures a Watcher.
type Options struct {
	Dir       string
	Recursive bool
	// Debounce is the quiet period after the last change before Trigger
	// fires.
	Debounce time.Duration
	// Match reports whether a file can enter the corpus. Creates and
	// writes of other files are ignored; removals and renames always
	// count since they may take a watched file or folder away.
	Match func(path string) bool
}

// Watcher is created with New and driven by Run.
type Watcher struct {
	fsw      *fsnotify.Watcher
	trigger  Trigger
	debounce time.Duration
	match    func(string) bool

	mu        sync.Mutex
	dir       string
	recursive bool
	watched   []string
	pending   map[string]struct{}
	timer     *time.Timer

	fire   chan struct{}
	logger *slog.Logger
}

// New creates a watcher on opts.Dir.
func New(opts Options, trigger Trigger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	w := &Watcher{
		fsw:      fsw,
		trigger:  trigger,
		debounce: opts.Debounce,
		match:    opts.Match,
		pending:  make(map[string]struct{}),
		fire:     make(chan struct{}, 1),
		logger:   slog.Default().With("component", "folder-watcher"),
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	if w.match == nil {
		w.match = func(string) bool { return true }
	}
	if err := w.Retarget(opts.Dir, opts.Recursive); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Retarget moves the watch to dir. Pending changes of the old folder are
// discarded.
func (w *Watcher) Retarget(dir string, recursive bool) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", dir, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.watched {
		_ = w.fsw.Remove(p)
	}
	w.watched = w.watched[:0]
	w.pending = make(map[string]struct{})
	if w.timer != nil {
		w.timer.Stop()
	}
	w.dir, w.recursive = abs, recursive

	if !recursive {
		return w.addLocked(abs)
	}
	return filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == abs {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return w.addLocked(path)
	})
}

func (w *Watcher) addLocked(path string) error {
	if err := w.fsw.Add(path); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	w.watched = append(w.watched, path)
	return nil
}

// Dir returns the folder being watched.
func (w *Watcher) Dir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dir
}

// Run processes file events until ctx is cancelled, then closes the
// underlying fsnotify watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	w.logger.Info("watching document folder", "dir", w.Dir(), "debounce", w.debounce)
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case <-w.fire:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	removal := event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
	if event.Has(fsnotify.Create) && w.recursive && isDir(event.Name) {
		if err := w.addLocked(event.Name); err != nil {
			w.logger.Warn("cannot watch new folder", "path", event.Name, "error", err)
		}
	} else if !removal && !w.match(event.Name) {
		return
	}

	w.pending[event.Name] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.fire <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	sort.Strings(paths)
	w.logger.Info("document folder changed", "paths", len(paths))
	if err := w.trigger(ctx, paths); err != nil {
		w.logger.Error("refresh trigger failed", "paths", len(paths), "error", err)
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
