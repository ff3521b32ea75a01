package pipeline

import (
	"context"

	"github.com/poiesic/catalog/progress"
)

// tallySource bumps a Progress counter for every item it passes through.
type tallySource[T any] struct {
	src  Source[T]
	bump func(n int64)
}

// Counted returns a Source that yields the items of src unchanged and in
// order, incrementing the count of p by one for each.
func Counted[T any](src Source[T], p *progress.Progress) Source[T] {
	return &tallySource[T]{src: src, bump: p.IncrementCount}
}

// Totaled returns a Source that yields the items of src unchanged and in
// order, incrementing the total of p by one for each. Producers that
// discover work as they go use it to grow the expected amount.
func Totaled[T any](src Source[T], p *progress.Progress) Source[T] {
	return &tallySource[T]{src: src, bump: p.IncrementTotal}
}

func (s *tallySource[T]) Next(ctx context.Context) (T, error) {
	item, err := s.src.Next(ctx)
	if err != nil {
		return item, err
	}
	s.bump(1)
	return item, nil
}

func (s *tallySource[T]) Close() error {
	return s.src.Close()
}
