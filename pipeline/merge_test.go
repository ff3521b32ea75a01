package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_Completeness(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	s1 := FromSlice(1, 2)
	s2 := FromSlice(3, 4)

	items, err := Collect(ctx, Merge([]Source[int]{s1, s2}))
	require.NoError(t, err)
	assert.Len(t, items, 4)
	assert.ElementsMatch(t, []int{1, 2, 3, 4}, items)
}

func TestMerge_TimingOrder(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	s1 := scripted(yield(1), wait[int](100*time.Millisecond), yield(2))
	s2 := scripted(wait[int](10*time.Millisecond), yield(3), wait[int](150*time.Millisecond), yield(4))

	items, err := Collect(ctx, Merge([]Source[int]{s1, s2}))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 2, 4}, items)
}

func TestMerge_SecondaryDoesNotGateCompletion(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	primary := scripted(yield("primary"))
	secondary := scripted(yield("secondary"), wait[string](50*time.Millisecond), yield("secondary2"))

	start := time.Now()
	items, err := Collect(ctx, Merge([]Source[string]{primary}, secondary))
	elapsed := time.Since(start)

	require.NoError(t, err)
	// The secondary's first item may win the race against a primary reader
	// that has not started yet; nothing else is allowed through.
	require.NotEmpty(t, items)
	primaries := 0
	for _, item := range items {
		switch item {
		case "primary":
			primaries++
		case "secondary":
		default:
			t.Errorf("unexpected item %q", item)
		}
	}
	assert.Equal(t, 1, primaries)
	assert.LessOrEqual(t, len(items), 2)
	assert.Less(t, elapsed, 50*time.Millisecond, "secondary must not block completion")
	assert.Equal(t, int32(1), secondary.closed.Load())
}

func TestMerge_PrimaryPreferredWhenBothReady(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	for i := 0; i < 5; i++ {
		primary := scripted(wait[int](20*time.Millisecond), yield(1), yield(2), yield(3))
		secondary := scripted(wait[int](10*time.Millisecond), yield(10), yield(20), yield(30))
		src := Merge([]Source[int]{primary}, secondary)

		// Both readers are parked on a ready item by the time the consumer
		// looks again.
		first, err := src.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, 10, first)
		time.Sleep(40 * time.Millisecond)

		second, err := src.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, second, "ready primary item must be delivered before a ready secondary item")
		require.NoError(t, src.Close())
	}
}

func TestMerge_SecondaryDrainedWhilePrimaryRuns(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	primary := scripted(wait[int](80*time.Millisecond), yield(1))
	secondary := scripted(yield(10), yield(20))

	items, err := Collect(ctx, Merge([]Source[int]{primary}, secondary))
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20, 1}, items)
}

func TestMerge_EmptySources(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	t.Run("empty and non-empty", func(t *testing.T) {
		items, err := Collect(ctx, Merge([]Source[int]{FromSlice[int](), FromSlice(7, 8)}))
		require.NoError(t, err)
		assert.Equal(t, []int{7, 8}, items)
	})

	t.Run("two empty", func(t *testing.T) {
		items, err := Collect(ctx, Merge([]Source[int]{FromSlice[int](), FromSlice[int]()}))
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("no sources", func(t *testing.T) {
		m := Merge[int](nil)
		_, err := m.Next(ctx)
		assert.ErrorIs(t, err, io.EOF)
		require.NoError(t, m.Close())
	})

	t.Run("only secondary sources", func(t *testing.T) {
		secondary := &blockingSource[int]{}
		items, err := Collect(ctx, Merge(nil, Source[int](secondary)))
		require.NoError(t, err)
		assert.Empty(t, items)
		assert.Equal(t, int32(1), secondary.closed.Load())
	})
}

func TestMerge_SingleSourcePassthrough(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	items, err := Collect(ctx, Merge([]Source[int]{FromSlice(ints(50)...)}))
	require.NoError(t, err)
	assert.Equal(t, ints(50), items)
}

func TestMerge_SourceFailureCancelsSiblings(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	boom := errors.New("disk on fire")
	failing := scripted(yield(1), failWith[int](boom))
	sibling := &blockingSource[int]{}
	secondary := &blockingSource[int]{}

	m := Merge([]Source[int]{sibling, failing}, secondary)
	items, err := Collect(ctx, m)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, Primary, srcErr.Group)
	assert.Equal(t, 1, srcErr.Index)
	assert.Contains(t, err.Error(), "primary source 1")

	assert.LessOrEqual(t, len(items), 1)
	assert.True(t, sibling.cancelled.Load())
	assert.True(t, secondary.cancelled.Load())

	// The failure is sticky.
	_, err = m.Next(ctx)
	assert.ErrorIs(t, err, boom)
}

func TestMerge_SecondaryFailureFailsMerge(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	boom := errors.New("watch failed")
	primary := &blockingSource[int]{}
	secondary := scripted(failWith[int](boom))

	_, err := Collect(ctx, Merge([]Source[int]{primary}, secondary))
	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, Secondary, srcErr.Group)
	assert.Equal(t, 0, srcErr.Index)
	assert.True(t, primary.cancelled.Load())
}

func TestMerge_StaysCompleteAfterEOF(t *testing.T) {
	ctx, cancel := testContext()
	defer cancel()

	m := Merge([]Source[int]{FromSlice(1)})
	v, err := m.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	for range 3 {
		_, err = m.Next(ctx)
		assert.ErrorIs(t, err, io.EOF)
	}
	require.NoError(t, m.Close())
}

func TestMerge_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	src := &blockingSource[int]{}
	m := Merge([]Source[int]{src})

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := m.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, m.Close())
	assert.True(t, src.cancelled.Load())
	assert.Equal(t, int32(1), src.closed.Load())
}

func TestMerge_CloseBeforeStart(t *testing.T) {
	s1 := scripted(yield(1))
	s2 := scripted(yield(2))
	m := Merge([]Source[int]{s1}, s2)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, int32(1), s1.closed.Load())
	assert.Equal(t, int32(1), s2.closed.Load())
	assert.Equal(t, int32(0), s1.reads.Load())
}
