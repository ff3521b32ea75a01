package progress

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultReportInterval is how often Run writes a progress line.
const DefaultReportInterval = time.Second

// Reporter periodically writes the state of a Progress to a writer.
type Reporter struct {
	writer    io.Writer
	progress  *Progress
	interval  time.Duration
	startTime time.Time
	mu        sync.Mutex
}

// NewReporter creates a reporter for p.
// writer: where to write progress output (typically os.Stderr)
// interval: how often Run reports; DefaultReportInterval when <= 0
func NewReporter(writer io.Writer, p *Progress, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	return &Reporter{
		writer:    writer,
		progress:  p,
		interval:  interval,
		startTime: time.Now(),
	}
}

// Run reports every interval until ctx is done.
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Report()
		}
	}
}

// Report writes the current progress line.
func (r *Reporter) Report() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.report(r.progress.Snapshot())
}

// Finish writes the final progress line followed by a newline.
func (r *Reporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.report(r.progress.Snapshot())
	fmt.Fprintln(r.writer)
}

// Elapsed returns the time since the reporter was created.
func (r *Reporter) Elapsed() time.Duration {
	return time.Since(r.startTime)
}

// report must be called with the lock held.
func (r *Reporter) report(s Snapshot) {
	elapsed := time.Since(r.startTime)
	rate := float64(s.Count) / elapsed.Seconds()

	if !s.HasTotal {
		fmt.Fprintf(r.writer, "\rProgress: %d - %.1f items/s", s.Count, rate)
		return
	}
	fmt.Fprintf(r.writer, "\rProgress: %d/%d (%.1f%%) - %.1f items/s",
		s.Count, s.Total, s.Percent(), rate)
}
