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
	"time"
)

// Mergeable is implemented by sink results. Merge combines the receiver with
// the result of a later batch; the zero value must be the identity.
type Mergeable[R any] interface {
	Merge(next R) R
}

// SinkFunc writes one batch and reports what happened to it.
type SinkFunc[T any, R Mergeable[R]] func(ctx context.Context, batch []T) (R, error)

// Drive feeds every batch from batches to sink and returns the merged results.
//
// Batches are written one at a time: the next batch is not requested until
// the previous write has returned. If sink fails, Drive stops, closes
// batches and returns the results of the batches accepted so far together
// with a *SinkError. Accepted batches are not rolled back and failed ones
// are not retried.
//
// Drive always closes batches before returning.
func Drive[T any, R Mergeable[R]](ctx context.Context, batches Source[[]T], sink SinkFunc[T, R], opts ...Option) (R, error) {
	var total R
	if batches == nil {
		return total, ErrNilSource
	}
	if sink == nil {
		return total, closeWith(ErrNilSink, batches)
	}
	o := newOptions(opts)
	logger := o.logger.With("component", "sink")

	for index := 0; ; index++ {
		batch, err := batches.Next(ctx)
		if errors.Is(err, io.EOF) {
			logger.Debug("sink drained", "batches", index)
			return total, batches.Close()
		}
		if err != nil {
			return total, closeWith(err, batches)
		}

		start := time.Now()
		result, err := sink(ctx, batch)
		if err != nil {
			logger.Error("sink rejected batch", "batch", index, "items", len(batch), "err", err)
			sinkErr := &SinkError{Batch: index, Size: len(batch), Err: err}
			return total, closeWith(sinkErr, batches)
		}
		total = total.Merge(result)
		if o.progress != nil {
			o.progress.IncrementCount(int64(len(batch)))
		}
		logger.Debug("batch written", "batch", index, "items", len(batch), "duration", time.Since(start))
	}
}
