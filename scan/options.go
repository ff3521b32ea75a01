package scan

import (
	"log/slog"
	"runtime"

	"github.com/poiesic/catalog/progress"
)

// Option configures Walk, Hash and Watch. Options that do not apply to a
// producer are ignored by it.
type Option func(*config)

type config struct {
	skipHidden bool
	workers    int
	progress   *progress.Progress
	logger     *slog.Logger
}

func newConfig(opts []Option) *config {
	c := &config{
		workers: runtime.NumCPU(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// WithSkipHidden makes Walk skip files and directories whose name starts
// with a dot.
func WithSkipHidden(skip bool) Option {
	return func(c *config) {
		c.skipHidden = skip
	}
}

// WithWorkers sets how many files Hash reads at once.
// Default is runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithProgress makes Walk add every file it discovers to the total of p.
func WithProgress(p *progress.Progress) Option {
	return func(c *config) {
		c.progress = p
	}
}

// WithLogger sets the logger for skipped files and watch errors.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}
