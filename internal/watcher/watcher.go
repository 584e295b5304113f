package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/dshills/memcontext-mcp/pkg/types"
)

// PathFilter decides which absolute paths are documents
type PathFilter interface {
	MatchAbs(absPath string) (types.Source, bool)
}

// Notifier receives one call per batch of relevant changes
type Notifier interface {
	MarkDirty()
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func()

// MarkDirty calls f
func (f NotifierFunc) MarkDirty() { f() }

// Watcher watches a workspace recursively and reports document changes
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	filter    PathFilter
	root      string
	logger    zerolog.Logger
}

// New creates a recursive watcher on root. Hidden directories are not watched.
func New(root string, filter PathFilter, notifier Notifier, interval time.Duration, logger zerolog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		filter:    filter,
		root:      root,
		logger:    logger.With().Str("component", "watcher").Logger(),
	}
	w.debouncer = NewDebouncer(interval, func(batch []Event) {
		w.logger.Debug().Int("events", len(batch)).Str("first", batch[0].Path).Msg("documents changed")
		notifier.MarkDirty()
	})

	if err := w.addTree(root); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("failed to watch directory")
		}
		return nil
	})
}

// Run processes events until ctx is done or the watcher is closed
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if strings.HasPrefix(filepath.Base(path), ".") {
				return
			}
			if err := w.addTree(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				w.logger.Warn().Err(err).Str("path", path).Msg("failed to watch new directory")
			}
			// Files may have landed before the directory was watched
			w.debouncer.Add(path, OpCreate)
			return
		}
	}

	var op EventOp
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpWrite
	case event.Has(fsnotify.Remove):
		op = OpRemove
	case event.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}

	if !w.relevant(path, op) {
		return
	}
	w.debouncer.Add(path, op)
}

// relevant keeps document events, plus removals that may be directories
// holding documents
func (w *Watcher) relevant(path string, op EventOp) bool {
	if _, ok := w.filter.MatchAbs(path); ok {
		return true
	}
	if op == OpRemove || op == OpRename {
		return filepath.Ext(path) == ""
	}
	return false
}

// Close stops the watcher and releases resources
func (w *Watcher) Close() error {
	w.debouncer.Stop()
	return w.fsWatcher.Close()
}
