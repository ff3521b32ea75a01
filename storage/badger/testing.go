


package badger

import "github.com/poiesic/catalog/storage"

// NewMemoryRepositories creates in-memory file and checkpoint repositories for testing.
// Returns fileRepo, checkpointRepo, backend, and error.
// Caller must close the backend when done.
func NewMemoryRepositories() (storage.FileRepository, storage.CheckpointRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}
	return NewFileRepository(backend), NewCheckpointRepository(backend), backend, nil
}
