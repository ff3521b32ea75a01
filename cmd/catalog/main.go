// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/catalog/indexer"
	"github.com/poiesic/catalog/metrics"
	"github.com/poiesic/catalog/pipeline"
	"github.com/poiesic/catalog/progress"
	"github.com/poiesic/catalog/storage"
	"github.com/poiesic/catalog/storage/badger"
	"github.com/poiesic/catalog/storage/postgres"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// storeFlags select the catalog store. Exactly one of them must be set.
func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory",
			EnvVars: []string{"CATALOG_DB"},
		},
		&cli.StringFlag{
			Name:    "dsn",
			Usage:   "Postgres connection string, used instead of --db",
			EnvVars: []string{"CATALOG_DSN"},
		},
		&cli.StringFlag{
			Name:  "table",
			Usage: "Postgres table holding the catalog",
			Value: postgres.DefaultTable,
		},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "catalog",
		Usage: "Crawl directory trees into a file catalog",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "index",
				Usage:     "Crawl ROOT directories and record their files",
				ArgsUsage: "ROOT...",
				Action:    indexCommand,
				Flags: append(storeFlags(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records written per batch",
						Value: pipeline.DefaultMaxSize,
					},
					&cli.DurationFlag{
						Name:  "flush-timeout",
						Usage: "How long a partial batch waits for more records",
						Value: pipeline.DefaultTimeout,
					},
					&cli.BoolFlag{
						Name:  "hash",
						Usage: "Record a BLAKE2b-256 hash of every file",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of hashing workers",
						Value: runtime.NumCPU(),
					},
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Also record files changed in the root directories during the crawl",
					},
					&cli.BoolFlag{
						Name:  "skip-hidden",
						Usage: "Skip dot files and dot directories",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts for a failed batch write",
						Value: indexer.DefaultMaxAttempts,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: indexer.DefaultRetryDelay,
					},
					&cli.DurationFlag{
						Name:  "report-interval",
						Usage: "How often progress is reported",
						Value: progress.DefaultReportInterval,
					},
					&cli.StringFlag{
						Name:  "metrics-addr",
						Usage: "Serve Prometheus metrics on this address during the run",
					},
				),
			},
			{
				Name:   "ls",
				Usage:  "List the files recorded under a root",
				Action: lsCommand,
				Flags: append(storeFlags(),
					&cli.StringFlag{
						Name:     "root",
						Aliases:  []string{"r"},
						Usage:    "Root directory as given to index",
						Required: true,
					},
				),
			},
			{
				Name:      "stats",
				Usage:     "Show the number of recorded files and the last run of each ROOT",
				ArgsUsage: "[ROOT...]",
				Action:    statsCommand,
				Flags:     storeFlags(),
			},
		},
	}
}

// store is the repository pair a command works on.
type store struct {
	files       storage.FileRepository
	checkpoints storage.CheckpointRepository
	close       func() error
}

func openStore(c *cli.Context) (*store, error) {
	dbPath, dsn := c.String("db"), c.String("dsn")
	switch {
	case dbPath != "" && dsn != "":
		return nil, fmt.Errorf("--db and --dsn are mutually exclusive")
	case dsn != "":
		pg, err := postgres.NewStore(c.Context, postgres.Config{DSN: dsn, Table: c.String("table")})
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := pg.EnsureSchema(c.Context); err != nil {
			pg.Close()
			return nil, err
		}
		return &store{files: pg, checkpoints: pg, close: pg.Close}, nil
	case dbPath != "":
		backend, err := badger.OpenBackend(dbPath, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return &store{
			files:       badger.NewFileRepository(backend),
			checkpoints: badger.NewCheckpointRepository(backend),
			close:       backend.Close,
		}, nil
	default:
		return nil, fmt.Errorf("database path or dsn is required")
	}
}

func indexCommand(c *cli.Context) error {
	roots := c.Args().Slice()
	if len(roots) == 0 {
		return fmt.Errorf("at least one ROOT is required")
	}
	if c.Int("batch-size") <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if c.Int("max-retries") <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.close()

	opts := []indexer.Option{
		indexer.WithBatchSize(c.Int("batch-size")),
		indexer.WithFlushTimeout(c.Duration("flush-timeout")),
		indexer.WithWatch(c.Bool("watch")),
		indexer.WithSkipHidden(c.Bool("skip-hidden")),
		indexer.WithRetry(c.Int("max-retries"), c.Duration("retry-delay")),
	}
	if c.Bool("hash") {
		opts = append(opts, indexer.WithHashing(c.Int("workers")))
	}
	ix, err := indexer.New(st.files, st.checkpoints, opts...)
	if err != nil {
		return err
	}

	prog := progress.New()
	runMetrics, stopMetrics, err := startMetrics(ctx, c.String("metrics-addr"), prog)
	if err != nil {
		return err
	}
	defer stopMetrics()

	reporter := progress.NewReporter(c.App.ErrWriter, prog, c.Duration("report-interval"))
	reportCtx, stopReport := context.WithCancel(ctx)
	go reporter.Run(reportCtx)

	fmt.Fprintf(c.App.ErrWriter, "Indexing: %s\n", strings.Join(roots, ", "))
	result, runErr := ix.Run(ctx, prog, roots...)
	stopReport()
	reporter.Finish()
	if runMetrics != nil {
		runMetrics.Observe(result, reporter.Elapsed(), runErr)
	}

	fmt.Fprintf(c.App.Writer, "inserted=%d updated=%d unchanged=%d elapsed=%s\n",
		result.Inserted, result.Updated, result.Unchanged, reporter.Elapsed().Round(time.Millisecond))
	if runErr != nil {
		return fmt.Errorf("indexing failed: %w", runErr)
	}
	return nil
}

// startMetrics serves run metrics on addr until the returned stop function
// is called. With an empty addr nothing is served and the RunMetrics is nil.
func startMetrics(ctx context.Context, addr string, prog *progress.Progress) (*metrics.RunMetrics, func(), error) {
	if addr == "" {
		return nil, func() {}, nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	progressCollector := metrics.NewProgressCollector()
	progressCollector.Track("run", prog)
	if err := reg.Register(progressCollector); err != nil {
		return nil, nil, err
	}
	runMetrics, err := metrics.NewRunMetrics(reg)
	if err != nil {
		return nil, nil, err
	}

	serveCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := metrics.Serve(serveCtx, addr, reg, slog.Default()); err != nil {
			slog.Error("metrics server failed", "err", err)
		}
	}()
	return runMetrics, func() {
		cancel()
		<-done
	}, nil
}

func lsCommand(c *cli.Context) error {
	st, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.close()

	root, err := filepath.Abs(c.String("root"))
	if err != nil {
		return err
	}
	files, err := st.files.ListFiles(c.Context, root)
	if err != nil {
		return err
	}
	for _, f := range files {
		hash := f.Hash
		if hash == "" {
			hash = "-"
		}
		fmt.Fprintf(c.App.Writer, "%s\t%d\t%s\t%s\n",
			f.Path, f.Size, f.ModTime.Format(time.RFC3339), hash)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	st, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.close()

	count, err := st.files.Count(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "files: %d\n", count)

	for _, arg := range c.Args().Slice() {
		root, err := filepath.Abs(arg)
		if err != nil {
			return err
		}
		cp, err := st.checkpoints.LoadCheckpoint(c.Context, root)
		if err != nil {
			return err
		}
		if cp == nil {
			fmt.Fprintf(c.App.Writer, "%s: never indexed\n", root)
			continue
		}
		fmt.Fprintf(c.App.Writer, "%s: %d files, last run %s (%s)\n",
			root, cp.Files, cp.LastRun.Format(time.RFC3339), cp.RunID)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
