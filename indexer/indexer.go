package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/poiesic/catalog/core"
	"github.com/poiesic/catalog/pipeline"
	"github.com/poiesic/catalog/progress"
	"github.com/poiesic/catalog/scan"
	"github.com/poiesic/catalog/storage"
)

const (
	// DefaultMaxAttempts is how often a batch write is tried before the run fails.
	DefaultMaxAttempts = 3

	// DefaultRetryDelay is the delay before the first retry of a batch write.
	DefaultRetryDelay = 100 * time.Millisecond
)

// Indexer crawls directory trees into a FileRepository.
type Indexer struct {
	files        storage.FileRepository
	checkpoints  storage.CheckpointRepository
	batchSize    int
	flushTimeout time.Duration
	hashWorkers  int // 0 disables hashing
	watch        bool
	skipHidden   bool
	maxAttempts  int
	retryDelay   time.Duration
	logger       *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer) error

// WithBatchSize sets how many records are written per batch.
// Default is pipeline.DefaultMaxSize.
func WithBatchSize(n int) Option {
	return func(ix *Indexer) error {
		if n < 1 {
			return fmt.Errorf("%w: batch size %d", ErrInvalidOption, n)
		}
		ix.batchSize = n
		return nil
	}
}

// WithFlushTimeout sets how long a partial batch waits for more records.
// Default is pipeline.DefaultTimeout.
func WithFlushTimeout(d time.Duration) Option {
	return func(ix *Indexer) error {
		if d < 0 {
			return fmt.Errorf("%w: flush timeout %s", ErrInvalidOption, d)
		}
		ix.flushTimeout = d
		return nil
	}
}

// WithHashing enables content hashing on a pool of the given size.
func WithHashing(workers int) Option {
	return func(ix *Indexer) error {
		if workers < 1 {
			return fmt.Errorf("%w: hash workers %d", ErrInvalidOption, workers)
		}
		ix.hashWorkers = workers
		return nil
	}
}

// WithWatch makes runs also record files that change in the root
// directories while the crawl is in progress.
func WithWatch(watch bool) Option {
	return func(ix *Indexer) error {
		ix.watch = watch
		return nil
	}
}

// WithSkipHidden skips dot files and dot directories.
func WithSkipHidden(skip bool) Option {
	return func(ix *Indexer) error {
		ix.skipHidden = skip
		return nil
	}
}

// WithRetry sets how often a failing batch write is attempted and the
// delay before the first retry.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(ix *Indexer) error {
		if maxAttempts < 1 {
			return ErrInvalidMaxAttempts
		}
		ix.maxAttempts = maxAttempts
		ix.retryDelay = baseDelay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Indexer) error {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger
		return nil
	}
}

// New creates an Indexer writing to files. checkpoints may be nil, in which
// case runs are not recorded.
func New(files storage.FileRepository, checkpoints storage.CheckpointRepository, opts ...Option) (*Indexer, error) {
	if files == nil {
		return nil, ErrFileRepositoryRequired
	}

	ix := &Indexer{
		files:        files,
		checkpoints:  checkpoints,
		batchSize:    pipeline.DefaultMaxSize,
		flushTimeout: pipeline.DefaultTimeout,
		maxAttempts:  DefaultMaxAttempts,
		retryDelay:   DefaultRetryDelay,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(ix); err != nil {
			return nil, err
		}
	}
	ix.logger = ix.logger.With("component", "indexer")
	return ix, nil
}

// Run indexes roots and returns what was written. The total of prog grows as
// files are discovered and its count as they are written; prog may be nil.
//
// Run returns when every root has been crawled and every batch written, or
// on the first failure. On failure the result still counts the batches that
// were accepted before it; they are not rolled back.
func (ix *Indexer) Run(ctx context.Context, prog *progress.Progress, roots ...string) (storage.WriteResult, error) {
	var result storage.WriteResult
	if len(roots) == 0 {
		return result, ErrNoRoots
	}
	roots, err := absRoots(roots)
	if err != nil {
		return result, err
	}
	if prog == nil {
		prog = progress.New()
	}
	runID := uuid.NewString()
	started := time.Now().UTC()
	logger := ix.logger.With("run", runID)

	discovered := prog.Shared()
	written := prog.Shared()

	primaries := make([]pipeline.Source[*core.FileRecord], 0, len(roots))
	perRoot := make([]*progress.Progress, 0, len(roots))
	closeAll := func() {
		for _, src := range primaries {
			src.Close()
		}
	}
	for _, root := range roots {
		node := discovered.Shared()
		src, err := scan.Walk(root,
			scan.WithProgress(node),
			scan.WithSkipHidden(ix.skipHidden),
			scan.WithLogger(logger))
		if err != nil {
			closeAll()
			return result, err
		}
		if src, err = ix.hashed(src); err != nil {
			closeAll()
			return result, err
		}
		primaries = append(primaries, src)
		perRoot = append(perRoot, node)
	}

	var secondaries []pipeline.Source[*core.FileRecord]
	if ix.watch {
		w, err := scan.Watch(roots, scan.WithLogger(logger))
		if err != nil {
			closeAll()
			return result, err
		}
		src := pipeline.Totaled(w, discovered.Shared())
		if src, err = ix.hashed(src); err != nil {
			w.Close()
			closeAll()
			return result, err
		}
		secondaries = append(secondaries, src)
	}

	merged := pipeline.Merge(primaries, secondaries...)
	batches, err := pipeline.NewBatcher(merged,
		pipeline.WithMaxSize(ix.batchSize),
		pipeline.WithTimeout(ix.flushTimeout),
		pipeline.WithLogger(logger))
	if err != nil {
		merged.Close()
		return result, err
	}

	logger.Info("index run started", "roots", roots, "hash_workers", ix.hashWorkers, "watch", ix.watch)
	result, err = pipeline.Drive[*core.FileRecord, storage.WriteResult](ctx, batches, ix.write,
		pipeline.WithProgress(written),
		pipeline.WithLogger(logger))
	if err != nil {
		logger.Error("index run failed", "err", err,
			"inserted", result.Inserted, "updated", result.Updated, "unchanged", result.Unchanged)
		return result, err
	}

	if err := ix.saveCheckpoints(ctx, runID, started, roots, perRoot); err != nil {
		return result, err
	}
	logger.Info("index run finished",
		"inserted", result.Inserted,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
		"duration", time.Since(started))
	return result, nil
}

// absRoots resolves roots to absolute paths, the form records and
// checkpoints are keyed by.
func absRoots(roots []string) ([]string, error) {
	out := make([]string, len(roots))
	for i, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve root %s: %w", root, err)
		}
		out[i] = abs
	}
	return out, nil
}

func (ix *Indexer) hashed(src pipeline.Source[*core.FileRecord]) (pipeline.Source[*core.FileRecord], error) {
	if ix.hashWorkers == 0 {
		return src, nil
	}
	return scan.Hash(src, scan.WithWorkers(ix.hashWorkers), scan.WithLogger(ix.logger))
}

// write is the sink of the pipeline: one retried upsert per batch.
func (ix *Indexer) write(ctx context.Context, batch []*core.FileRecord) (storage.WriteResult, error) {
	var result storage.WriteResult
	err := RetryWithBackoff(ctx, func() error {
		var err error
		result, err = ix.files.UpsertFiles(ctx, batch...)
		if errors.Is(err, core.ErrInvalidFileRecord) || errors.Is(err, storage.ErrStorageClosed) {
			return Permanent(err)
		}
		return err
	}, ix.maxAttempts, ix.retryDelay)
	return result, err
}

func (ix *Indexer) saveCheckpoints(ctx context.Context, runID string, started time.Time, roots []string, perRoot []*progress.Progress) error {
	if ix.checkpoints == nil {
		return nil
	}
	for i, root := range roots {
		files, _ := perRoot[i].Total()
		cp := &core.Checkpoint{
			Root:    root,
			RunID:   runID,
			Files:   files,
			LastRun: started,
		}
		if err := ix.checkpoints.SaveCheckpoint(ctx, cp); err != nil {
			return fmt.Errorf("save checkpoint for %s: %w", root, err)
		}
	}
	return nil
}
