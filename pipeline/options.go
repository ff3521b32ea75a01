package pipeline

import (
	"log/slog"
	"time"

	"github.com/poiesic/catalog/progress"
)

const (
	// DefaultMaxSize is the batch size used when WithMaxSize is not given.
	DefaultMaxSize = 10

	// DefaultTimeout is how long a partial batch may wait for more items
	// when WithTimeout is not given.
	DefaultTimeout = 500 * time.Millisecond
)

// Option configures a Batcher or a Drive call. Options that do not apply to
// a stage are ignored by it.
type Option func(*options)

type options struct {
	maxSize  int
	timeout  time.Duration
	logger   *slog.Logger
	progress *progress.Progress
}

func newOptions(opts []Option) *options {
	o := &options{
		maxSize: DefaultMaxSize,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// WithMaxSize sets the largest batch the Batcher emits.
// Default is DefaultMaxSize. Must be greater than 0.
func WithMaxSize(n int) Option {
	return func(o *options) {
		o.maxSize = n
	}
}

// WithTimeout sets how long after its first item a partial batch is flushed.
// Default is DefaultTimeout. Must not be negative; zero flushes whatever has
// accumulated as soon as the timer can fire.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithLogger sets the logger for per-batch debug output.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithProgress makes Drive count every item of each accepted batch on p.
func WithProgress(p *progress.Progress) Option {
	return func(o *options) {
		o.progress = p
	}
}
