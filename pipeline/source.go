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
)

// Source produces items over time for a single consumer.
//
// Implementations must follow these rules:
//   - Next returns io.EOF once the source is complete, and on every call after that.
//   - Next never returns an item after returning io.EOF or another error.
//   - Next returns ctx.Err() promptly when ctx is cancelled while waiting.
//   - Close releases resources and may be called more than once.
type Source[T any] interface {
	Next(ctx context.Context) (T, error)
	Close() error
}

// Group controls whether a source gates the completion of Merge.
type Group int

const (
	// Primary sources must all complete before a merged stream ends.
	Primary Group = iota
	// Secondary sources are drained while primaries run and abandoned afterwards.
	Secondary
)

func (g Group) String() string {
	switch g {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// sliceSource yields a fixed list of items.
type sliceSource[T any] struct {
	items []T
	pos   int
}

// FromSlice returns a Source that yields items in order and then completes.
func FromSlice[T any](items ...T) Source[T] {
	return &sliceSource[T]{items: items}
}

func (s *sliceSource[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if s.pos >= len(s.items) {
		return zero, io.EOF
	}
	item := s.items[s.pos]
	s.pos++
	return item, nil
}

func (s *sliceSource[T]) Close() error {
	return nil
}

// funcSource adapts a pair of functions to Source.
type funcSource[T any] struct {
	next   func(ctx context.Context) (T, error)
	close  func() error
	done   error
	once   sync.Once
	closed error
}

// FromFunc returns a Source backed by next. Once next returns an error the
// source is finished and next is not called again. closeFn may be nil.
func FromFunc[T any](next func(ctx context.Context) (T, error), closeFn func() error) Source[T] {
	return &funcSource[T]{next: next, close: closeFn}
}

func (s *funcSource[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if s.done != nil {
		return zero, s.done
	}
	item, err := s.next(ctx)
	if err != nil {
		// A cancelled wait does not finish the source.
		if ctx.Err() == nil || !errors.Is(err, ctx.Err()) {
			s.done = err
		}
		return zero, err
	}
	return item, nil
}

func (s *funcSource[T]) Close() error {
	s.once.Do(func() {
		if s.close != nil {
			s.closed = s.close()
		}
	})
	return s.closed
}

// Collect drains src into a slice and closes it. It returns the items read
// before a failure along with the error.
func Collect[T any](ctx context.Context, src Source[T]) ([]T, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	var items []T
	for {
		item, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return items, src.Close()
		}
		if err != nil {
			return items, closeWith(err, src)
		}
		items = append(items, item)
	}
}

// closeWith closes c and returns err, joined with the close error if any.
func closeWith(err error, c io.Closer) error {
	if cerr := c.Close(); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}
