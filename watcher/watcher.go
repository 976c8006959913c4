package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// EventType classifies a settled file change.
type EventType int

const (
	EventCreated EventType = iota
	EventModified
	EventDeleted
	EventRenamed
)

func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	case EventRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Event is a debounced change for one path. OldPath is set for renames.
type Event struct {
	Type    EventType
	Path    string
	OldPath string
}

// Watcher watches a directory tree and emits settled events through a
// per-path debouncer.
type Watcher struct {
	root      string
	matches   func(path string) bool
	logger    zerolog.Logger
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
}

// New creates a watcher rooted at root. matches filters paths before any
// debouncing happens; nil accepts everything.
func New(root string, debounce time.Duration, matches func(path string) bool, logger zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if matches == nil {
		matches = func(string) bool { return true }
	}

	w := &Watcher{
		root:      root,
		matches:   matches,
		logger:    logger,
		fsw:       fsw,
		debouncer: NewDebouncer(debounce),
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	return w, nil
}

// Events is the stream of settled changes. It is closed when Run returns.
func (w *Watcher) Events() <-chan Event {
	return w.debouncer.Events()
}

// addRecursive registers root and all subdirectories, skipping hidden
// directories and common dependency trees.
func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		name := info.Name()
		if path != root && (strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Run pumps raw fsnotify events through the debouncer until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		w.fsw.Close()
		w.debouncer.Flush()
		w.debouncer.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				w.logger.Warn().Err(err).Msg("watch error")
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	// New directories must be registered immediately or their contents
	// are invisible.
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				w.logger.Warn().Err(err).Str("dir", ev.Name).Msg("failed to watch new directory")
			}
			return
		}
	}

	if !w.matches(ev.Name) {
		return
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		w.debouncer.Record(ev.Name, EventCreated, "")
	case ev.Op&fsnotify.Write != 0:
		w.debouncer.Record(ev.Name, EventModified, "")
	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		// fsnotify reports a rename as Rename on the old path plus a
		// Create on the new one; without the pairing we treat the old
		// path as deleted and let the create reindex the new path.
		w.debouncer.Record(ev.Name, EventDeleted, "")
	}
}
