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


// Package storage provides the storage abstraction layer for catalog.
//
// This package defines the repository interfaces the indexer writes to, so
// that the same pipeline can fill a local BadgerDB store or a shared
// PostgreSQL table.
//
// # Architecture
//
//   - FileRepository: batched upserts and lookups of file records
//   - CheckpointRepository: the summary of the last run per root
//   - WriteResult: what a batch upsert did; results of several batches
//     combine with Merge, which is how the pipeline sink driver totals them
//
// Implementations live in sub-packages:
//
//   - storage/badger: embedded BadgerDB, on disk or in memory
//   - storage/postgres: a files table reached through a pgx pool
//
// # Usage
//
// Create in-memory repositories for tests:
//
//	files, checkpoints, backend, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context. A cancelled context
// aborts a batch before it is committed.
package storage
