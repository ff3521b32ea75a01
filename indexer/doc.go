// Package indexer runs the catalog pipeline for a set of directory trees.
//
// For each root an Indexer starts a walker, optionally followed by a
// hasher, and registers it as a primary source. An optional watcher over the
// same roots runs as a secondary source, so files that change during a long
// crawl are picked up without holding the run open. The merged stream is
// batched by size and time and written to a storage.FileRepository one
// batch at a time, with retries. When every batch has been accepted a
// checkpoint is saved per root.
//
// Progress is reported on a tree supplied by the caller: one child per root
// counts discovered files as its total, and a sink child counts written
// files, so the root of the tree reads as written/discovered.
package indexer
