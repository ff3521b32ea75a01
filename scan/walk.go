package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/poiesic/catalog/core"
	"github.com/poiesic/catalog/pipeline"
)

// walker crawls one root in a background goroutine.
type walker struct {
	root   string
	cfg    *config
	logger *slog.Logger

	startOnce sync.Once
	cancel    context.CancelFunc
	records   chan *core.FileRecord
	done      chan struct{}
	walkErr   error
	err       error

	closeOnce sync.Once
}

// Walk returns a source of every regular file below root. Symlinks, devices
// and other special files are skipped, and so are entries that cannot be
// read, with a warning. The crawl starts on the first call to Next.
func Walk(root string, opts ...Option) (pipeline.Source[*core.FileRecord], error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}
	cfg := newConfig(opts)
	return &walker{
		root:   abs,
		cfg:    cfg,
		logger: cfg.logger.With("component", "walker", "root", abs),
	}, nil
}

func (w *walker) Next(ctx context.Context) (*core.FileRecord, error) {
	if w.err != nil {
		return nil, w.err
	}
	w.startOnce.Do(func() { w.start(ctx) })

	select {
	case rec, ok := <-w.records:
		if !ok {
			<-w.done
			w.err = io.EOF
			if w.walkErr != nil {
				w.err = w.walkErr
			}
			return nil, w.err
		}
		return rec, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w *walker) start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.records = make(chan *core.FileRecord)
	w.done = make(chan struct{})
	go w.run(runCtx)
}

func (w *walker) run(ctx context.Context) {
	defer close(w.done)
	defer close(w.records)

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if path == w.root {
				return err
			}
			w.logger.Warn("skipping unreadable entry", "path", path, "err", err)
			return nil
		}
		if path != w.root && w.cfg.skipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			// Removed between listing and stat.
			w.logger.Debug("file vanished", "path", path, "err", err)
			return nil
		}

		rec := core.NewFileRecord(w.root, path, info)
		if w.cfg.progress != nil {
			w.cfg.progress.IncrementTotal(1)
		}
		select {
		case w.records <- rec:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// A cut short crawl must not look complete.
		w.walkErr = err
	default:
		w.walkErr = fmt.Errorf("walk %s: %w", w.root, err)
	}
}

// Close stops the crawl and waits for it to exit.
func (w *walker) Close() error {
	w.closeOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
			<-w.done
		}
		if w.err == nil {
			w.err = io.EOF
		}
	})
	return nil
}
