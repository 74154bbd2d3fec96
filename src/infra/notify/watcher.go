package notify

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"texwatch/src/features/watching"
)

var _ watching.Source = (*Watcher)(nil)

// Watcher adapts fsnotify to the watching.Source contract. fsnotify does not
// recurse, so subdirectories are registered during the initial walk and again
// whenever a directory is created. OS callbacks are converted into
// ChangeEvents on the channel given at construction; nothing else runs on the
// notifier's goroutine.
type Watcher struct {
	watcher  *fsnotify.Watcher
	root     string
	include  func(relPath string, isDir bool) bool
	events   chan<- watching.ChangeEvent
	stopChan chan struct{}
	running  bool
}

// NewWatcher creates a recursive watcher rooted at root. Events whose paths
// fail the include predicate are dropped before they reach the scheduler, so
// build residue written into the tree never retriggers a build.
func NewWatcher(root string, include func(relPath string, isDir bool) bool, events chan<- watching.ChangeEvent) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:  fsw,
		root:     root,
		include:  include,
		events:   events,
		stopChan: make(chan struct{}),
	}, nil
}

// Start registers the directory tree and begins the event loop.
func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("Starting file watcher", "path", w.root)
	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.running = true
	go w.watchLoop(ctx)
	return nil
}

// Stop stops the file watcher.
func (w *Watcher) Stop() {
	if !w.running {
		return
	}
	slog.Info("Stopping file watcher")
	w.running = false
	close(w.stopChan)
	w.watcher.Close()
}

// addTree registers root and every included subdirectory beneath it.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("Skipping unwatchable path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel := w.relPath(path)
		if rel != "." && !w.include(rel, true) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			slog.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// watchLoop processes file system events
func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", "error", err)

		case <-w.stopChan:
			return

		case <-ctx.Done():
			return
		}
	}
}

// handleEvent converts a single fsnotify event into a ChangeEvent.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel := w.relPath(event.Name)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.include(rel, true) {
				if err := w.addTree(event.Name); err != nil {
					slog.Warn("Failed to watch new directory", "path", rel, "error", err)
				}
			}
			return
		}
	}

	if !w.include(rel, false) {
		return
	}

	var kind watching.EventKind
	switch {
	case event.Op&fsnotify.Create != 0:
		kind = watching.Created
	case event.Op&fsnotify.Write != 0:
		kind = watching.Modified
	case event.Op&fsnotify.Remove != 0:
		kind = watching.Deleted
	case event.Op&fsnotify.Rename != 0:
		kind = watching.Moved
	default:
		return
	}

	w.emit(watching.ChangeEvent{Path: rel, Kind: kind, Timestamp: time.Now()})
}

func (w *Watcher) relPath(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "."
	}
	return filepath.ToSlash(rel)
}

// emit hands the event to the scheduler without ever blocking the notifier.
func (w *Watcher) emit(event watching.ChangeEvent) {
	select {
	case w.events <- event:
	default:
		slog.Warn("Event channel full, dropping change event", "path", event.Path)
	}
}
