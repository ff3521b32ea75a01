package scan

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/go-crypt/x/blake2b"
	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/catalog/core"
	"github.com/poiesic/catalog/pipeline"
)

// hashed is one finished hashing task.
type hashed struct {
	rec *core.FileRecord
	err error
}

// hasher reads records from src and hashes their contents on a worker pool.
type hasher struct {
	src    pipeline.Source[*core.FileRecord]
	pool   *ants.Pool
	logger *slog.Logger

	startOnce sync.Once
	cancel    context.CancelFunc
	results   chan hashed
	done      chan struct{}
	runErr    error // set before results closes
	err       error

	closeOnce sync.Once
	closeErr  error
}

// Hash returns a source that yields the records of src with Hash set to the
// hex BLAKE2b-256 of the file contents. Up to WithWorkers files are read at
// once, so records come out in the order their hashes finish. Files that
// disappeared or became unreadable before they were hashed are dropped with
// a log line. A failure of src is passed on unchanged.
func Hash(src pipeline.Source[*core.FileRecord], opts ...Option) (pipeline.Source[*core.FileRecord], error) {
	if src == nil {
		return nil, pipeline.ErrNilSource
	}
	cfg := newConfig(opts)
	if cfg.workers < 1 {
		return nil, ErrInvalidWorkers
	}
	pool, err := ants.NewPool(cfg.workers)
	if err != nil {
		return nil, fmt.Errorf("create hash pool: %w", err)
	}
	return &hasher{
		src:    src,
		pool:   pool,
		logger: cfg.logger.With("component", "hasher"),
	}, nil
}

func (h *hasher) Next(ctx context.Context) (*core.FileRecord, error) {
	if h.err != nil {
		return nil, h.err
	}
	h.startOnce.Do(func() { h.start(ctx) })

	select {
	case r, ok := <-h.results:
		if !ok {
			h.err = io.EOF
			if h.runErr != nil {
				h.err = h.runErr
			}
			return nil, h.err
		}
		if r.err != nil {
			h.err = r.err
			return nil, r.err
		}
		return r.rec, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *hasher) start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.results = make(chan hashed)
	h.done = make(chan struct{})
	go h.dispatch(runCtx)
}

// dispatch pulls records from upstream and submits one task per record.
// The pool blocks Submit while every worker is busy.
func (h *hasher) dispatch(ctx context.Context) {
	var wg sync.WaitGroup
	defer close(h.done)
	defer func() {
		wg.Wait()
		// Records dropped on cancellation must not pass for a clean end.
		h.runErr = ctx.Err()
		close(h.results)
	}()

	for {
		rec, err := h.src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			wg.Wait()
			h.emit(ctx, hashed{err: err})
			return
		}

		wg.Add(1)
		submitErr := h.pool.Submit(func() {
			defer wg.Done()
			h.work(ctx, rec)
		})
		if submitErr != nil {
			wg.Done()
			h.emit(ctx, hashed{err: fmt.Errorf("submit hash task: %w", submitErr)})
			return
		}
	}
}

func (h *hasher) work(ctx context.Context, rec *core.FileRecord) {
	sum, err := hashFile(ctx, rec.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			h.logger.Warn("skipping file", "path", rec.Path, "err", err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		h.emit(ctx, hashed{err: fmt.Errorf("hash %s: %w", rec.Path, err)})
		return
	}
	out := *rec
	out.Hash = sum
	h.emit(ctx, hashed{rec: &out})
}

func (h *hasher) emit(ctx context.Context, r hashed) {
	select {
	case h.results <- r:
	case <-ctx.Done():
	}
}

// Close stops hashing, waits for running tasks, releases the pool and
// closes the upstream source.
func (h *hasher) Close() error {
	h.closeOnce.Do(func() {
		if h.cancel != nil {
			h.cancel()
			<-h.done
		}
		h.pool.Release()
		if h.err == nil {
			h.err = io.EOF
		}
		h.closeErr = h.src.Close()
	})
	return h.closeErr
}

// hashFile returns the hex BLAKE2b-256 digest of the file at path.
func hashFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := blake2b.New(32, nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, &ctxReader{ctx: ctx, r: f}); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ctxReader stops a long copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
