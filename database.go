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


package catalog

import (
	"log/slog"

	"github.com/poiesic/catalog/indexer"
	"github.com/poiesic/catalog/storage"
	"github.com/poiesic/catalog/storage/badger"
)

// Database is a file catalog kept in a local Badger store.
type Database struct {
	backend        *badger.Backend
	fileRepo       storage.FileRepository
	checkpointRepo storage.CheckpointRepository
	logger         *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	inMemory bool
	logger   *slog.Logger
}

// WithInMemory keeps the catalog in memory; the path is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithDatabaseLogger sets the logger for the store and its repositories.
func WithDatabaseLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	backend, err := badger.OpenBackendWithLogger(filePath, options.inMemory, options.logger)
	if err != nil {
		return nil, err
	}

	return &Database{
		backend:        backend,
		fileRepo:       badger.NewFileRepository(backend),
		checkpointRepo: badger.NewCheckpointRepository(backend),
		logger:         options.logger,
	}, nil
}

func (db *Database) Close() error {
	if err := db.fileRepo.Close(); err != nil {
		db.logger.Error("error closing file repository", "err", err)
		return err
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) FileRepository() storage.FileRepository {
	return db.fileRepo
}

func (db *Database) CheckpointRepository() storage.CheckpointRepository {
	return db.checkpointRepo
}

// NewIndexer returns an Indexer writing to this database. Unless opts say
// otherwise it logs through the database logger.
func (db *Database) NewIndexer(opts ...indexer.Option) (*indexer.Indexer, error) {
	opts = append([]indexer.Option{indexer.WithLogger(db.logger)}, opts...)
	return indexer.New(db.fileRepo, db.checkpointRepo, opts...)
}
