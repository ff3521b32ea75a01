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


// Package pipeline moves items from asynchronous producers into a bulk
// write sink.
//
// A pipeline is built from three stages, each of which consumes a Source
// and is itself a Source (except the last):
//
//   - Merge fans in any number of sources. Items are delivered in the order
//     they become ready. Primary sources decide when the merged stream ends;
//     secondary sources are read opportunistically and abandoned once every
//     primary source is complete.
//   - Batcher groups a stream into slices of at most MaxSize items, flushing
//     early when Timeout has elapsed since the first item of the current
//     batch was added.
//   - Drive hands each batch to a sink function, one write in flight at a
//     time, and folds the per-batch results into one aggregate.
//
// A typical pipeline:
//
//	merged := pipeline.Merge(walkers, watcher)
//	batches, err := pipeline.NewBatcher(merged, pipeline.WithMaxSize(500))
//	if err != nil {
//	    return err
//	}
//	upsert := func(ctx context.Context, batch []*core.FileRecord) (storage.WriteResult, error) {
//	    return repo.UpsertFiles(ctx, batch...)
//	}
//	result, err := pipeline.Drive[*core.FileRecord, storage.WriteResult](ctx, batches, upsert)
//
// # Sources
//
// Source is a pull iterator. Next blocks until an item is available and
// returns io.EOF once the source is complete. The context passed to Next
// cancels that single wait; sources must honor it promptly, since Merge
// relies on it to release sources it no longer needs.
//
// Stages start their background goroutines on the first call to Next, and
// the context of that call bounds their lifetime. Close always releases
// them, so callers should defer Close on the last stage they hold.
//
// # Errors
//
// Nothing is swallowed. A failing source surfaces as a *SourceError naming
// the source; a failing sink surfaces as a *SinkError naming the batch.
// Batches written before a sink failure stay written.
package pipeline
