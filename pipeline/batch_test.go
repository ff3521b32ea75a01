package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchLengths(batches [][]int) []int {
	lengths := make([]int, len(batches))
	for i, b := range batches {
		lengths[i] = len(b)
	}
	return lengths
}

func TestBatcher_SizeLaw(t *testing.T) {
	tests := []struct {
		n, m     int
		expected []int
	}{
		{n: 25, m: 10, expected: []int{10, 10, 5}},
		{n: 20, m: 10, expected: []int{10, 10}},
		{n: 3, m: 10, expected: []int{3}},
		{n: 7, m: 1, expected: []int{1, 1, 1, 1, 1, 1, 1}},
		{n: 0, m: 4, expected: []int{}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d m=%d", tt.n, tt.m), func(t *testing.T) {
			ctx, cancel := testContext()
			defer cancel()

			b, err := NewBatcher(FromSlice(ints(tt.n)...), WithMaxSize(tt.m), WithTimeout(time.Minute))
			require.NoError(t, err)

			batches, err := Collect[[]int](ctx, b)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, batchLengths(batches))

			for _, batch := range batches {
				assert.NotEmpty(t, batch, "batches are never empty")
			}
		})
	}
}

func TestBatcher_PreservesOrder(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	b, err := NewBatcher(FromSlice(ints(137)...), WithMaxSize(8))
	require.NoError(t, err)

	batches, err := Collect[[]int](ctx, b)
	require.NoError(t, err)

	var flat []int
	for _, batch := range batches {
		flat = append(flat, batch...)
	}
	assert.Equal(t, ints(137), flat)
}

func TestBatcher_DefaultMaxSize(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	b, err := NewBatcher(FromSlice(ints(25)...))
	require.NoError(t, err)

	batches, err := Collect[[]int](ctx, b)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 10, 5}, batchLengths(batches))
}

func TestBatcher_TimeoutFlush(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	src := scripted(yield(1), wait[int](150*time.Millisecond), yield(2))
	b, err := NewBatcher[int](src, WithMaxSize(10), WithTimeout(100*time.Millisecond))
	require.NoError(t, err)
	defer b.Close()

	start := time.Now()
	first, err := b.Next(ctx)
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, first)
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
	assert.Less(t, elapsed, 150*time.Millisecond, "partial batch should flush before the pause ends")

	second, err := b.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, second)

	_, err = b.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestBatcher_TimeoutStartsWithBatch(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	// The size flush at t=0 must clear the deadline, so item 4 (t=60ms)
	// opens a fresh batch that stays open until t=160ms and picks up item 5.
	src := scripted(
		yield(1), yield(2), yield(3),
		wait[int](60*time.Millisecond), yield(4),
		wait[int](60*time.Millisecond), yield(5),
		wait[int](100*time.Millisecond),
	)
	b, err := NewBatcher[int](src, WithMaxSize(3), WithTimeout(100*time.Millisecond))
	require.NoError(t, err)

	batches, err := Collect[[]int](ctx, b)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5}}, batches)
}

func TestBatcher_FinalPartialFlushOnCompletion(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	src := scripted(yield(1), yield(2))
	b, err := NewBatcher[int](src, WithMaxSize(10), WithTimeout(time.Hour))
	require.NoError(t, err)

	start := time.Now()
	batches, err := Collect[[]int](ctx, b)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1, 2}}, batches)
	assert.Less(t, time.Since(start), time.Second)
}

func TestBatcher_InvalidConfiguration(t *testing.T) {
	src := FromSlice(1, 2, 3)

	_, err := NewBatcher(src, WithMaxSize(0))
	assert.ErrorIs(t, err, ErrInvalidMaxSize)

	_, err = NewBatcher(src, WithMaxSize(-3))
	assert.ErrorIs(t, err, ErrInvalidMaxSize)

	_, err = NewBatcher(src, WithTimeout(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidTimeout)

	_, err = NewBatcher[int](nil)
	assert.ErrorIs(t, err, ErrNilSource)
}

func TestBatcher_UpstreamFailure(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	boom := errors.New("stat failed")
	src := scripted(yield(1), yield(2), yield(3), failWith[int](boom))
	b, err := NewBatcher[int](src, WithMaxSize(2))
	require.NoError(t, err)

	batches, err := Collect[[]int](ctx, b)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, [][]int{{1, 2}}, batches)

	_, err = b.Next(ctx)
	assert.ErrorIs(t, err, boom)
}

func TestBatcher_CloseReleasesUpstream(t *testing.T) {
	src := &blockingSource[int]{}
	b, err := NewBatcher[int](src)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = b.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, b.Close())
	assert.True(t, src.cancelled.Load())
	assert.Equal(t, int32(1), src.closed.Load())

	_, err = b.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestBatcher_NextAfterStartContextEnds(t *testing.T) {
	src := &blockingSource[int]{}
	b, err := NewBatcher[int](src)
	require.NoError(t, err)
	defer b.Close()

	short, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = b.Next(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The upstream reader was started with the expired context, so a later
	// call with a live context has to report that instead of waiting forever.
	live, liveCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer liveCancel()
	start := time.Now()
	_, err = b.Next(live)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	require.NoError(t, live.Err())

	_, err = b.Next(live)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "failure must be sticky")
}

func TestBatcher_OverMerge(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	merged := Merge([]Source[int]{FromSlice(ints(12)...), FromSlice(100, 101, 102)})
	b, err := NewBatcher(merged, WithMaxSize(5))
	require.NoError(t, err)

	batches, err := Collect[[]int](ctx, b)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 5, 5}, batchLengths(batches))

	var flat []int
	for _, batch := range batches {
		flat = append(flat, batch...)
	}
	assert.ElementsMatch(t, append(ints(12), 100, 101, 102), flat)
}
