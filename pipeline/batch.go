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


package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// pulled carries one upstream result from the pump to the batcher.
type pulled[T any] struct {
	item T
	err  error
}

// Batcher groups the items of a Source into non-empty slices.
//
// A batch is emitted as soon as one of these happens:
//   - it holds MaxSize items
//   - Timeout has passed since its first item was added
//   - the upstream source completed
//
// Items keep their upstream order within and across batches. Each emitted
// slice is owned by the caller.
type Batcher[T any] struct {
	src      Source[T]
	maxSize  int
	timeout  time.Duration
	logger   *slog.Logger
	acc      []T
	deadline *deadline
	batches  int
	err      error

	startOnce sync.Once
	cancel    context.CancelFunc
	upstream  chan pulled[T]
	pumpDone  chan struct{}
	pumpErr   error // set before pumpDone closes

	closeOnce sync.Once
	closeErr  error
}

var _ Source[[]int] = (*Batcher[int])(nil)

// NewBatcher creates a Batcher reading from src. Without options it uses
// DefaultMaxSize and DefaultTimeout. Invalid options are rejected here,
// before any item is read.
func NewBatcher[T any](src Source[T], opts ...Option) (*Batcher[T], error) {
	if src == nil {
		return nil, ErrNilSource
	}
	o := newOptions(opts)
	if o.maxSize <= 0 {
		return nil, ErrInvalidMaxSize
	}
	if o.timeout < 0 {
		return nil, ErrInvalidTimeout
	}
	return &Batcher[T]{
		src:      src,
		maxSize:  o.maxSize,
		timeout:  o.timeout,
		logger:   o.logger.With("component", "batcher"),
		acc:      make([]T, 0, o.maxSize),
		deadline: newDeadline(),
	}, nil
}

// Next blocks until a batch is ready and returns it. It returns io.EOF after
// the final batch.
func (b *Batcher[T]) Next(ctx context.Context) ([]T, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.startOnce.Do(func() { b.start(ctx) })

	for {
		select {
		case p := <-b.upstream:
			if p.err != nil {
				return b.finish(p.err)
			}
			if len(b.acc) == 0 {
				b.deadline.arm(b.timeout)
			}
			b.acc = append(b.acc, p.item)
			if len(b.acc) >= b.maxSize {
				b.deadline.stop()
				return b.flush("size"), nil
			}
		case <-b.deadline.expired():
			b.deadline.fired()
			if len(b.acc) > 0 {
				return b.flush("timeout"), nil
			}
		case <-b.pumpDone:
			// The context the pump was started with ended before the
			// upstream result could be handed over.
			return b.finish(b.pumpErr)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (b *Batcher[T]) start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.upstream = make(chan pulled[T])
	b.pumpDone = make(chan struct{})
	go b.pump(runCtx)
}

// pump reads upstream ahead of the consumer so that Next can wait for an
// item and the deadline at the same time. At most one item is held here.
func (b *Batcher[T]) pump(ctx context.Context) {
	defer close(b.pumpDone)
	for {
		item, err := b.src.Next(ctx)
		select {
		case b.upstream <- pulled[T]{item: item, err: err}:
		case <-ctx.Done():
			b.pumpErr = ctx.Err()
			return
		}
		if err != nil {
			return
		}
	}
}

func (b *Batcher[T]) finish(err error) ([]T, error) {
	b.deadline.stop()
	b.err = err
	if errors.Is(err, io.EOF) && len(b.acc) > 0 {
		return b.flush("eof"), nil
	}
	b.acc = nil
	return nil, err
}

func (b *Batcher[T]) flush(reason string) []T {
	out := b.acc
	b.acc = make([]T, 0, b.maxSize)
	b.batches++
	b.logger.Debug("flushing batch", "batch", b.batches, "items", len(out), "reason", reason)
	return out
}

// Close stops reading upstream, clears the deadline and closes the upstream
// source. A partially accumulated batch is discarded.
func (b *Batcher[T]) Close() error {
	b.closeOnce.Do(func() {
		if b.cancel != nil {
			b.cancel()
			<-b.pumpDone
		}
		b.deadline.stop()
		if b.err == nil {
			b.err = io.EOF
		}
		b.acc = nil
		b.closeErr = b.src.Close()
	})
	return b.closeErr
}
