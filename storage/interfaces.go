package storage

import (
	"context"

	"github.com/poiesic/catalog/core"
)

// WriteResult counts what an upsert did with the records it was given.
// The zero value is an empty result; results of consecutive writes combine
// with Merge.
type WriteResult struct {
	Inserted  int
	Updated   int
	Unchanged int
}

// Merge returns the sum of r and next.
func (r WriteResult) Merge(next WriteResult) WriteResult {
	return WriteResult{
		Inserted:  r.Inserted + next.Inserted,
		Updated:   r.Updated + next.Updated,
		Unchanged: r.Unchanged + next.Unchanged,
	}
}

// Total returns the number of records the writes were given.
func (r WriteResult) Total() int {
	return r.Inserted + r.Updated + r.Unchanged
}

// Written returns the number of records that were inserted or changed.
func (r WriteResult) Written() int {
	return r.Inserted + r.Updated
}

// FileRepository provides operations for managing file records.
// Implementations must be thread-safe and support concurrent access.
type FileRepository interface {
	// UpsertFiles writes a batch of file records in a single transaction.
	// New paths are inserted with IndexedAt set. Known paths whose size, mode,
	// modification time or hash changed are updated; an empty incoming hash
	// keeps the stored one. Unchanged records are not rewritten.
	// Either the whole batch is applied or none of it.
	UpsertFiles(ctx context.Context, records ...*core.FileRecord) (WriteResult, error)

	// GetFile retrieves a single file record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetFile(ctx context.Context, id core.ID) (*core.FileRecord, error)

	// GetFiles retrieves multiple file records by their IDs.
	// Returns only the records that exist (no error for missing records).
	GetFiles(ctx context.Context, ids ...core.ID) ([]*core.FileRecord, error)

	// ListFiles returns every record indexed under root, ordered by path.
	ListFiles(ctx context.Context, root string) ([]*core.FileRecord, error)

	// DeleteFiles removes file records by their IDs.
	// Returns ErrNotFound if any record doesn't exist.
	DeleteFiles(ctx context.Context, ids ...core.ID) error

	// Count returns the number of file records in the catalog.
	Count(ctx context.Context) (int, error)

	// Close closes the storage backend and releases resources.
	Close() error
}

// CheckpointRepository persists the summary of the last index run per root.
type CheckpointRepository interface {
	// SaveCheckpoint stores checkpoint, replacing any previous one for its root.
	// Sets UpdatedAt.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint returns the checkpoint for root.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, root string) (*core.Checkpoint, error)
}
