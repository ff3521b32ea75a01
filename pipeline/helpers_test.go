package pipeline

import (
	"context"
	"io"
	"sync/atomic"
	"time"
)

// step is one action of a scripted source: wait, then yield value or fail.
type step[T any] struct {
	delay time.Duration
	value T
	err   error
	emit  bool
}

func yield[T any](v T) step[T] {
	return step[T]{value: v, emit: true}
}

func wait[T any](d time.Duration) step[T] {
	return step[T]{delay: d}
}

func failWith[T any](err error) step[T] {
	return step[T]{err: err}
}

// scriptSource plays back a fixed script of delays, items and failures and
// records how it was treated by its consumer.
type scriptSource[T any] struct {
	steps     []step[T]
	pos       int
	cancelled atomic.Bool
	closed    atomic.Int32
	reads     atomic.Int32
}

func scripted[T any](steps ...step[T]) *scriptSource[T] {
	return &scriptSource[T]{steps: steps}
}

func (s *scriptSource[T]) Next(ctx context.Context) (T, error) {
	var zero T
	s.reads.Add(1)
	for s.pos < len(s.steps) {
		st := s.steps[s.pos]
		s.pos++
		if st.delay > 0 {
			timer := time.NewTimer(st.delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				s.cancelled.Store(true)
				// Replay the wait if we are asked again.
				s.pos--
				return zero, ctx.Err()
			}
			continue
		}
		if st.err != nil {
			s.pos = len(s.steps)
			return zero, st.err
		}
		if st.emit {
			return st.value, nil
		}
	}
	return zero, io.EOF
}

func (s *scriptSource[T]) Close() error {
	s.closed.Add(1)
	return nil
}

// blockingSource never yields; it waits for cancellation.
type blockingSource[T any] struct {
	cancelled atomic.Bool
	closed    atomic.Int32
}

func (s *blockingSource[T]) Next(ctx context.Context) (T, error) {
	var zero T
	<-ctx.Done()
	s.cancelled.Store(true)
	return zero, ctx.Err()
}

func (s *blockingSource[T]) Close() error {
	s.closed.Add(1)
	return nil
}

func ints(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func testContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
