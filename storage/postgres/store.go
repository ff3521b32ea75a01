// Package postgres stores the catalog in a PostgreSQL table through a pgx
// connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/poiesic/catalog/core"
	"github.com/poiesic/catalog/storage"
)

// DefaultTable is the name of the files table when Config.Table is empty.
const DefaultTable = "files"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used by Store.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of *pgxpool.Pool the store uses.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements storage.FileRepository and storage.CheckpointRepository
// on top of a files table and a <table>_checkpoints table.
type Store struct {
	pool  pool
	table string
	sql   statements
}

var (
	_ storage.FileRepository       = (*Store)(nil)
	_ storage.CheckpointRepository = (*Store)(nil)
)

// NewStore connects to Postgres using cfg.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewStoreWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewStoreWithPool(p pool, table string) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: p, table: table, sql: buildStatements(table)}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.sql.schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// UpsertFiles writes the batch in one transaction. Rows whose content did
// not change are left alone and counted as unchanged.
func (s *Store) UpsertFiles(ctx context.Context, records ...*core.FileRecord) (storage.WriteResult, error) {
	var result storage.WriteResult
	for _, record := range records {
		if err := core.ValidateFileRecord(record); err != nil {
			return result, err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin upsert: %w", err)
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	for _, record := range records {
		var inserted bool
		err := tx.QueryRow(ctx, s.sql.upsertFile,
			int64(record.Id),
			record.Root,
			record.Path,
			record.Size,
			int64(record.Mode),
			record.ModTime,
			record.Hash,
			now,
		).Scan(&inserted)
		if errors.Is(err, pgx.ErrNoRows) {
			result.Unchanged++
			continue
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return storage.WriteResult{}, fmt.Errorf("upsert %s: %w", record.Path, err)
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return storage.WriteResult{}, fmt.Errorf("commit upsert: %w", err)
	}
	return result, nil
}

// GetFile retrieves a single file record by ID.
func (s *Store) GetFile(ctx context.Context, id core.ID) (*core.FileRecord, error) {
	record, err := scanFile(s.pool.QueryRow(ctx, s.sql.getFile, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return record, nil
}

// GetFiles retrieves the records that exist among ids.
func (s *Store) GetFiles(ctx context.Context, ids ...core.ID) ([]*core.FileRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]int64, len(ids))
	for i, id := range ids {
		keys[i] = int64(id)
	}
	return s.queryFiles(ctx, s.sql.getFiles, keys)
}

// ListFiles returns every record indexed under root, ordered by path.
func (s *Store) ListFiles(ctx context.Context, root string) ([]*core.FileRecord, error) {
	if root == "" {
		return nil, storage.ErrInvalidQuery
	}
	return s.queryFiles(ctx, s.sql.listFiles, root)
}

// DeleteFiles removes the records with the given IDs in one transaction.
func (s *Store) DeleteFiles(ctx context.Context, ids ...core.ID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	for _, id := range ids {
		tag, err := tx.Exec(ctx, s.sql.deleteFile, int64(id))
		if err == nil && tag.RowsAffected() == 0 {
			err = storage.ErrNotFound
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("delete file %d: %w", id, err)
		}
	}
	return tx.Commit(ctx)
}

// Count returns the number of file records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, s.sql.countFiles).Scan(&n); err != nil {
		return 0, fmt.Errorf("count files: %w", err)
	}
	return int(n), nil
}

// SaveCheckpoint stores the checkpoint of a root, replacing an older one.
func (s *Store) SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error {
	if err := core.ValidateCheckpoint(checkpoint); err != nil {
		return err
	}
	checkpoint.UpdatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, s.sql.saveCheckpoint,
		checkpoint.Root,
		checkpoint.RunID,
		checkpoint.Files,
		checkpoint.LastRun,
		checkpoint.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint returns the checkpoint of root, or nil, nil if none exists.
func (s *Store) LoadCheckpoint(ctx context.Context, root string) (*core.Checkpoint, error) {
	var cp core.Checkpoint
	err := s.pool.QueryRow(ctx, s.sql.loadCheckpoint, root).
		Scan(&cp.Root, &cp.RunID, &cp.Files, &cp.LastRun, &cp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return &cp, nil
}

func (s *Store) queryFiles(ctx context.Context, sql string, args ...any) ([]*core.FileRecord, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var records []*core.FileRecord
	for rows.Next() {
		record, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	return records, nil
}

func scanFile(row pgx.Row) (*core.FileRecord, error) {
	var (
		record core.FileRecord
		id     int64
		mode   int64
	)
	err := row.Scan(
		&id,
		&record.Root,
		&record.Path,
		&record.Size,
		&mode,
		&record.ModTime,
		&record.Hash,
		&record.IndexedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	record.Id = core.ID(id)
	record.Mode = uint32(mode)
	return &record, nil
}
