package scan

import "errors"

var (
	// ErrNotDirectory indicates a root that is not a directory.
	ErrNotDirectory = errors.New("not a directory")

	// ErrInvalidWorkers indicates a worker count below one.
	ErrInvalidWorkers = errors.New("workers must be greater than 0")

	// ErrNoRoots indicates Watch was called without directories.
	ErrNoRoots = errors.New("no roots to watch")
)
