// Package scan produces file records for the indexing pipeline.
//
// Walk crawls a directory tree and completes when the crawl is done, which
// makes it a primary source for pipeline.Merge. Watch reports files that
// are created or written while the crawl runs and never completes on its
// own; it is registered as a secondary source and abandoned once every walk
// has finished. Hash wraps any record source and fills in content hashes on
// a worker pool.
package scan
