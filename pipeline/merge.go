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
	"sync"

	"golang.org/x/sync/errgroup"
)

// mergeEvent is what a primary reader hands to the consumer: either an item
// or the completion of its source.
type mergeEvent[T any] struct {
	item     T
	finished bool
}

// merged is the Source returned by Merge.
type merged[T any] struct {
	primary   []Source[T]
	secondary []Source[T]

	startOnce sync.Once
	cancel    context.CancelFunc
	group     *errgroup.Group
	groupCtx  context.Context
	primaries chan mergeEvent[T]
	extras    chan T
	pending   int
	stopped   bool
	err       error

	closeOnce sync.Once
	closeErr  error
}

var _ Source[int] = (*merged[int])(nil)

// Merge fans in primary and secondary sources into one Source.
//
// Items are delivered in the order their sources make them available. When
// a primary item and a secondary item are ready together the primary item
// is delivered first. The merged source completes once every primary source has completed; readers
// of secondary sources still waiting at that point are cancelled and their
// remaining items are dropped. With no primary sources the merged source is
// complete immediately.
//
// The first failure of any source fails the merge with a *SourceError and
// cancels every other reader.
//
// The merged source takes ownership of all sources and closes them in Close.
func Merge[T any](primary []Source[T], secondary ...Source[T]) Source[T] {
	return &merged[T]{
		primary:   primary,
		secondary: secondary,
		pending:   len(primary),
	}
}

// Next returns the next ready item from any source.
func (m *merged[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if m.err != nil {
		return zero, m.err
	}
	m.startOnce.Do(func() { m.start(ctx) })

	for m.pending > 0 {
		select {
		case ev := <-m.primaries:
			if ev.finished {
				m.pending--
				continue
			}
			return ev.item, nil
		default:
		}

		select {
		case ev := <-m.primaries:
			if ev.finished {
				m.pending--
				continue
			}
			return ev.item, nil
		case item := <-m.extras:
			return item, nil
		case <-m.groupCtx.Done():
			// A reader failed, or the context that started the readers ended.
			return zero, m.fail(m.group.Wait())
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	m.stop()
	m.err = io.EOF
	return zero, io.EOF
}

func (m *merged[T]) start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.group, m.groupCtx = errgroup.WithContext(runCtx)
	m.primaries = make(chan mergeEvent[T])
	m.extras = make(chan T)

	if m.pending == 0 {
		return
	}
	for i, src := range m.primary {
		m.group.Go(func() error {
			return m.read(m.groupCtx, Primary, i, src)
		})
	}
	for i, src := range m.secondary {
		m.group.Go(func() error {
			return m.read(m.groupCtx, Secondary, i, src)
		})
	}
}

// read forwards one source's items to the consumer until it completes,
// fails, or the merge is cancelled.
func (m *merged[T]) read(ctx context.Context, group Group, index int, src Source[T]) error {
	for {
		item, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			if group == Secondary {
				return nil
			}
			return send(ctx, m.primaries, mergeEvent[T]{finished: true})
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &SourceError{Group: group, Index: index, Err: err}
		}
		if group == Secondary {
			err = send(ctx, m.extras, item)
		} else {
			err = send(ctx, m.primaries, mergeEvent[T]{item: item})
		}
		if err != nil {
			return err
		}
	}
}

func send[E any](ctx context.Context, ch chan E, ev E) error {
	select {
	case ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *merged[T]) fail(err error) error {
	m.stop()
	if err == nil {
		err = context.Canceled
	}
	m.err = err
	return err
}

// stop cancels all readers and waits for them to return.
func (m *merged[T]) stop() {
	if m.stopped || m.cancel == nil {
		return
	}
	m.stopped = true
	m.cancel()
	_ = m.group.Wait()
}

// Close stops any running readers and closes every source.
func (m *merged[T]) Close() error {
	m.closeOnce.Do(func() {
		m.stop()
		if m.err == nil {
			m.err = io.EOF
		}
		var errs []error
		for _, src := range m.primary {
			errs = append(errs, src.Close())
		}
		for _, src := range m.secondary {
			errs = append(errs, src.Close())
		}
		m.closeErr = errors.Join(errs...)
	})
	return m.closeErr
}
