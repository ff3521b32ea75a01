package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/poiesic/catalog/core"
	"github.com/poiesic/catalog/pipeline"
)

// watcher turns filesystem notifications into file records.
type watcher struct {
	fsw    *fsnotify.Watcher
	roots  map[string]bool // watched directories
	logger *slog.Logger
}

// Watch returns a source of records for regular files created or written
// directly inside the given directories. It never completes on its own and
// is meant to run as a secondary source next to the walkers of the same
// roots. Close releases the underlying notifier.
func Watch(roots []string, opts ...Option) (pipeline.Source[*core.FileRecord], error) {
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}
	cfg := newConfig(opts)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &watcher{
		fsw:    fsw,
		roots:  make(map[string]bool, len(roots)),
		logger: cfg.logger.With("component", "watcher"),
	}
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("resolve root %s: %w", root, err)
		}
		if err := fsw.Add(abs); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", abs, err)
		}
		w.roots[abs] = true
	}
	return pipeline.FromFunc(w.next, fsw.Close), nil
}

// next waits for the next event naming a regular file. It reports io.EOF
// once the notifier has been closed.
func (w *watcher) next(ctx context.Context) (*core.FileRecord, error) {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil, io.EOF
			}
			if rec := w.record(event); rec != nil {
				return rec, nil
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil, io.EOF
			}
			// Overflows lose events but the walk still covers the files.
			w.logger.Warn("watch error", "err", err)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// record builds a record for event, or returns nil when the event does not
// describe a regular file that now exists.
func (w *watcher) record(event fsnotify.Event) *core.FileRecord {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return nil
	}
	root := filepath.Dir(event.Name)
	if !w.roots[root] {
		return nil
	}
	info, err := os.Lstat(event.Name)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.logger.Debug("cannot stat changed file", "path", event.Name, "err", err)
		}
		return nil
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	return core.NewFileRecord(root, event.Name, info)
}
