// Package watcher turns file system notifications into debounced change sets.
package watcher

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	fsadapter "go.trai.ch/synapse/internal/adapters/fs"
	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/synapse/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Watcher = (*Watcher)(nil)

// skippedNames are directory names that are never watched.
var skippedNames = map[string]bool{
	".git":         true,
	".jj":          true,
	"node_modules": true,
}

const eventChannelBuffer = 100

// Watcher implements ports.Watcher using fsnotify. Write events that leave a
// file's content unchanged are dropped.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	logger    ports.Logger
	events    chan ports.WatchEvent
	root      string
	skip      map[string]bool

	mu     sync.Mutex
	hashes map[string]uint64
}

// NewWatcher creates a new file system watcher.
func NewWatcher(logger ports.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrWatchFailed.Error())
	}
	return &Watcher{
		fsWatcher: w,
		logger:    logger,
		events:    make(chan ports.WatchEvent, eventChannelBuffer),
		skip:      make(map[string]bool),
		hashes:    make(map[string]uint64),
	}, nil
}

// Start begins watching root recursively.
func (w *Watcher) Start(ctx context.Context, root string, skip []string) error {
	w.root = filepath.Clean(root)
	for _, dir := range skip {
		w.skip[filepath.Clean(dir)] = true
	}
	for dir := range w.directories(root) {
		if err := w.fsWatcher.Add(dir); err != nil {
			return zerr.With(zerr.Wrap(err, domain.ErrWatchFailed.Error()), "path", dir)
		}
	}
	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher and releases all resources.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// Events returns an iterator of file system events. It ends when the watcher
// stops or the context given to Start is cancelled.
func (w *Watcher) Events() iter.Seq[ports.WatchEvent] {
	return func(yield func(ports.WatchEvent) bool) {
		for event := range w.events {
			if !yield(event) {
				return
			}
		}
	}
}

func (w *Watcher) skipped(path, name string) bool {
	return skippedNames[name] || w.skip[filepath.Clean(path)]
}

// directories yields root and every directory below it that is not skipped.
func (w *Watcher) directories(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil //nolint:nilerr // Unreadable directories are not watched
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && w.skipped(path, d.Name()) {
				return fs.SkipDir
			}
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			we, ok := w.convert(event)
			if !ok {
				continue
			}
			if we.Operation == ports.OpCreate {
				if info, err := os.Stat(we.Path); err == nil && info.IsDir() {
					for dir := range w.directories(we.Path) {
						_ = w.fsWatcher.Add(dir)
					}
					continue
				}
			}
			select {
			case w.events <- we:
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher: " + err.Error())
		}
	}
}

// convert maps an fsnotify event and drops events under skipped directories
// and writes that did not change content.
func (w *Watcher) convert(event fsnotify.Event) (ports.WatchEvent, bool) {
	path := event.Name
	for dir := path; dir != w.root && strings.HasPrefix(dir, w.root); dir = filepath.Dir(dir) {
		if w.skipped(dir, filepath.Base(dir)) {
			return ports.WatchEvent{}, false
		}
	}

	switch {
	case event.Has(fsnotify.Write):
		if !w.changed(path) {
			return ports.WatchEvent{}, false
		}
		return ports.WatchEvent{Path: path, Operation: ports.OpWrite}, true
	case event.Has(fsnotify.Create):
		w.changed(path)
		return ports.WatchEvent{Path: path, Operation: ports.OpCreate}, true
	case event.Has(fsnotify.Remove):
		w.forget(path)
		return ports.WatchEvent{Path: path, Operation: ports.OpRemove}, true
	case event.Has(fsnotify.Rename):
		w.forget(path)
		return ports.WatchEvent{Path: path, Operation: ports.OpRename}, true
	}
	return ports.WatchEvent{}, false
}

// changed records the content hash of path and reports whether it differs
// from the last one seen. Unreadable files count as changed.
func (w *Watcher) changed(path string) bool {
	h, err := fsadapter.ComputeFileHash(path)
	if err != nil {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	prev, seen := w.hashes[path]
	w.hashes[path] = h
	return !seen || prev != h
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.hashes, path)
}
