package badger

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/catalog/core"
	"github.com/poiesic/catalog/storage"
)

// FileRepository implements storage.FileRepository for BadgerDB.
//
// Records live under filrec:<id>. Every record also has an entry in the
// root index, filroot:<root>\x00<id>, which ListFiles scans.
type FileRepository struct {
	backend *Backend
}

var _ storage.FileRepository = (*FileRepository)(nil)

// NewFileRepository creates a new FileRepository.
func NewFileRepository(backend *Backend) *FileRepository {
	return &FileRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend is closed by its owner.
func (r *FileRepository) Close() error {
	return nil
}

// UpsertFiles writes a batch of file records in one transaction.
func (r *FileRepository) UpsertFiles(ctx context.Context, records ...*core.FileRecord) (storage.WriteResult, error) {
	var result storage.WriteResult
	for _, record := range records {
		if err := core.ValidateFileRecord(record); err != nil {
			return result, err
		}
	}

	var pending storage.WriteResult
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, record := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := makeFileRecordKey(record.Id)
			old, err := readFileRecord(tx, key)
			if err != nil {
				return err
			}

			if old != nil {
				if record.Hash == "" && old.SameContent(record) {
					record.Hash = old.Hash
				}
				record.IndexedAt = old.IndexedAt
				if old.Root == record.Root && old.Hash == record.Hash && old.SameContent(record) {
					record.UpdatedAt = old.UpdatedAt
					pending.Unchanged++
					continue
				}
				if old.Root != record.Root {
					if err := tx.Delete(makeFileRootKey(old.Root, old.Id)); err != nil {
						return err
					}
				}
				record.UpdatedAt = now
				pending.Updated++
			} else {
				record.IndexedAt = now
				record.UpdatedAt = now
				pending.Inserted++
			}

			if err := tx.Set(key, storage.MarshalFileRecord(record)); err != nil {
				return err
			}
			if err := tx.Set(makeFileRootKey(record.Root, record.Id), storage.MarshalID(record.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return result, err
	}
	return pending, nil
}

// GetFile retrieves a single file record by ID.
func (r *FileRepository) GetFile(ctx context.Context, id core.ID) (*core.FileRecord, error) {
	var result *core.FileRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readFileRecord(tx, makeFileRecordKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetFiles retrieves multiple file records by their IDs.
func (r *FileRepository) GetFiles(ctx context.Context, ids ...core.ID) ([]*core.FileRecord, error) {
	results := make([]*core.FileRecord, 0, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			record, err := readFileRecord(tx, makeFileRecordKey(id))
			if err != nil {
				return err
			}
			if record != nil {
				results = append(results, record)
			}
		}
		return nil
	}, false)
	return results, err
}

// ListFiles returns every record indexed under root, ordered by path.
func (r *FileRepository) ListFiles(ctx context.Context, root string) ([]*core.FileRecord, error) {
	if root == "" {
		return nil, storage.ErrInvalidQuery
	}
	var results []*core.FileRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makePartialFileRootKey(root)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := idFromRootKey(iter.Item().Key())
			record, err := readFileRecord(tx, makeFileRecordKey(id))
			if err != nil {
				return err
			}
			if record == nil {
				// Index entry without a record; skip it.
				continue
			}
			results = append(results, record)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.FileRecord) int {
		return strings.Compare(a.Path, b.Path)
	})
	return results, nil
}

// DeleteFiles removes file records and their index entries.
func (r *FileRepository) DeleteFiles(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeFileRecordKey(id)
			record, err := readFileRecord(tx, key)
			if err != nil {
				return err
			}
			if record == nil {
				return storage.ErrNotFound
			}
			if err := tx.Delete(makeFileRootKey(record.Root, record.Id)); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Count returns the number of file records.
func (r *FileRepository) Count(ctx context.Context) (int, error) {
	return r.backend.countPrefix(ctx, []byte(fileRecordPrefix+":"))
}

// readFileRecord reads a file record from a transaction.
// Returns nil, nil if the key doesn't exist.
func readFileRecord(tx *badger.Txn, key []byte) (*core.FileRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var record *core.FileRecord
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		record, unmarshalErr = storage.UnmarshalFileRecord(val)
		return unmarshalErr
	})
	return record, err
}
