package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/catalog/core"
	"github.com/poiesic/catalog/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileRecord(root, path string, size int64) *core.FileRecord {
	return &core.FileRecord{
		Id:      core.IDFromContent(path),
		Root:    root,
		Path:    path,
		Size:    size,
		Mode:    0o644,
		ModTime: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func newTestFileRepo(t *testing.T) (*FileRepository, *Backend) {
	t.Helper()
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return NewFileRepository(backend), backend
}

func TestUpsertFiles_Insert(t *testing.T) {
	repo, _ := newTestFileRepo(t)
	ctx := context.Background()

	records := []*core.FileRecord{
		fileRecord("/data", "/data/a.txt", 1),
		fileRecord("/data", "/data/b.txt", 2),
	}
	result, err := repo.UpsertFiles(ctx, records...)
	require.NoError(t, err)
	assert.Equal(t, storage.WriteResult{Inserted: 2}, result)

	for _, rec := range records {
		assert.False(t, rec.IndexedAt.IsZero(), "IndexedAt should be set")
		assert.Equal(t, rec.IndexedAt, rec.UpdatedAt)
	}

	got, err := repo.GetFile(ctx, records[0].Id)
	require.NoError(t, err)
	assert.Equal(t, "/data/a.txt", got.Path)
	assert.Equal(t, int64(1), got.Size)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestUpsertFiles_UnchangedAndUpdated(t *testing.T) {
	repo, _ := newTestFileRepo(t)
	ctx := context.Background()

	_, err := repo.UpsertFiles(ctx, fileRecord("/data", "/data/a.txt", 1), fileRecord("/data", "/data/b.txt", 2))
	require.NoError(t, err)
	first, err := repo.GetFile(ctx, core.IDFromContent("/data/a.txt"))
	require.NoError(t, err)

	same := fileRecord("/data", "/data/a.txt", 1)
	grown := fileRecord("/data", "/data/b.txt", 20)
	result, err := repo.UpsertFiles(ctx, same, grown)
	require.NoError(t, err)
	assert.Equal(t, storage.WriteResult{Updated: 1, Unchanged: 1}, result)

	assert.True(t, first.IndexedAt.Equal(same.IndexedAt), "unchanged record keeps its timestamps")

	got, err := repo.GetFile(ctx, grown.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(20), got.Size)
	assert.False(t, got.UpdatedAt.Before(got.IndexedAt))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestUpsertFiles_HashHandling(t *testing.T) {
	repo, _ := newTestFileRepo(t)
	ctx := context.Background()

	unhashed := fileRecord("/data", "/data/a.txt", 1)
	_, err := repo.UpsertFiles(ctx, unhashed)
	require.NoError(t, err)

	// Learning the hash of an unchanged file is an update.
	hashed := fileRecord("/data", "/data/a.txt", 1)
	hashed.Hash = "abc"
	result, err := repo.UpsertFiles(ctx, hashed)
	require.NoError(t, err)
	assert.Equal(t, storage.WriteResult{Updated: 1}, result)

	// A later unhashed sighting keeps the stored hash.
	again := fileRecord("/data", "/data/a.txt", 1)
	result, err = repo.UpsertFiles(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, storage.WriteResult{Unchanged: 1}, result)
	assert.Equal(t, "abc", again.Hash)

	got, err := repo.GetFile(ctx, again.Id)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Hash)

	// A different hash is a content change.
	changed := fileRecord("/data", "/data/a.txt", 1)
	changed.Hash = "def"
	result, err = repo.UpsertFiles(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, storage.WriteResult{Updated: 1}, result)
}

func TestUpsertFiles_DuplicateWithinBatch(t *testing.T) {
	repo, _ := newTestFileRepo(t)
	ctx := context.Background()

	result, err := repo.UpsertFiles(ctx, fileRecord("/data", "/data/a.txt", 1), fileRecord("/data", "/data/a.txt", 1))
	require.NoError(t, err)
	assert.Equal(t, storage.WriteResult{Inserted: 1, Unchanged: 1}, result)
}

func TestUpsertFiles_RootMove(t *testing.T) {
	repo, _ := newTestFileRepo(t)
	ctx := context.Background()

	_, err := repo.UpsertFiles(ctx, fileRecord("/data", "/data/sub/a.txt", 1))
	require.NoError(t, err)

	result, err := repo.UpsertFiles(ctx, fileRecord("/data/sub", "/data/sub/a.txt", 1))
	require.NoError(t, err)
	assert.Equal(t, storage.WriteResult{Updated: 1}, result)

	old, err := repo.ListFiles(ctx, "/data")
	require.NoError(t, err)
	assert.Empty(t, old)

	moved, err := repo.ListFiles(ctx, "/data/sub")
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, "/data/sub", moved[0].Root)
}

func TestUpsertFiles_InvalidRecordRejectsBatch(t *testing.T) {
	repo, _ := newTestFileRepo(t)
	ctx := context.Background()

	bad := fileRecord("/data", "/data/bad.txt", 1)
	bad.Size = -1
	_, err := repo.UpsertFiles(ctx, fileRecord("/data", "/data/ok.txt", 1), bad)
	require.ErrorIs(t, err, core.ErrInvalidFileRecord)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "nothing from a rejected batch is written")
}

func TestUpsertFiles_CancelledContext(t *testing.T) {
	repo, _ := newTestFileRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.UpsertFiles(ctx, fileRecord("/data", "/data/a.txt", 1))
	assert.ErrorIs(t, err, context.Canceled)

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUpsertFiles_ClosedBackend(t *testing.T) {
	repo, backend := newTestFileRepo(t)
	require.NoError(t, backend.Close())

	_, err := repo.UpsertFiles(context.Background(), fileRecord("/data", "/data/a.txt", 1))
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestGetFile_NotFound(t *testing.T) {
	repo, _ := newTestFileRepo(t)

	_, err := repo.GetFile(context.Background(), core.ID(999))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetFiles_SkipsMissing(t *testing.T) {
	repo, _ := newTestFileRepo(t)
	ctx := context.Background()

	a := fileRecord("/data", "/data/a.txt", 1)
	_, err := repo.UpsertFiles(ctx, a)
	require.NoError(t, err)

	got, err := repo.GetFiles(ctx, a.Id, core.ID(12345))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.Path, got[0].Path)
}

func TestListFiles(t *testing.T) {
	repo, _ := newTestFileRepo(t)
	ctx := context.Background()

	var records []*core.FileRecord
	for _, name := range []string{"c", "a", "b"} {
		records = append(records, fileRecord("/data", fmt.Sprintf("/data/%s.txt", name), 1))
	}
	records = append(records, fileRecord("/data2", "/data2/z.txt", 1))
	_, err := repo.UpsertFiles(ctx, records...)
	require.NoError(t, err)

	listed, err := repo.ListFiles(ctx, "/data")
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, "/data/a.txt", listed[0].Path)
	assert.Equal(t, "/data/b.txt", listed[1].Path)
	assert.Equal(t, "/data/c.txt", listed[2].Path)

	_, err = repo.ListFiles(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestDeleteFiles(t *testing.T) {
	repo, _ := newTestFileRepo(t)
	ctx := context.Background()

	a := fileRecord("/data", "/data/a.txt", 1)
	b := fileRecord("/data", "/data/b.txt", 1)
	_, err := repo.UpsertFiles(ctx, a, b)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteFiles(ctx, a.Id))

	_, err = repo.GetFile(ctx, a.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	listed, err := repo.ListFiles(ctx, "/data")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, b.Path, listed[0].Path)

	err = repo.DeleteFiles(ctx, a.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNewMemoryRepositories(t *testing.T) {
	files, checkpoints, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	defer files.Close()

	ctx := context.Background()
	_, err = files.UpsertFiles(ctx, fileRecord("/data", "/data/a.txt", 1))
	require.NoError(t, err)

	require.NoError(t, checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{Root: "/data", Files: 1, LastRun: time.Now()}))
	cp, err := checkpoints.LoadCheckpoint(ctx, "/data")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, int64(1), cp.Files)
}
