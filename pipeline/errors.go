package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMaxSize is returned when a batcher is configured with a max size <= 0.
	ErrInvalidMaxSize = errors.New("max batch size must be greater than 0")

	// ErrInvalidTimeout is returned when a batcher is configured with a negative timeout.
	ErrInvalidTimeout = errors.New("batch timeout cannot be negative")

	// ErrNilSource is returned when a stage is constructed without an upstream source.
	ErrNilSource = errors.New("source required")

	// ErrNilSink is returned when Drive is called without a sink function.
	ErrNilSink = errors.New("sink required")
)

// SourceError is returned when a source registered with Merge fails.
type SourceError struct {
	Group Group
	Index int
	Err   error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s source %d: %v", e.Group, e.Index, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// SinkError is returned by Drive when the sink rejects a batch. Batch is the
// zero-based index of the failed batch; all batches before it were accepted.
type SinkError struct {
	Batch int
	Size  int
	Err   error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink batch %d (%d items): %v", e.Batch, e.Size, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}
