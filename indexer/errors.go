package indexer

import "errors"

var (
	// ErrFileRepositoryRequired is returned when a file repository is not provided.
	ErrFileRepositoryRequired = errors.New("file repository required")

	// ErrNoRoots is returned when Run is called without roots.
	ErrNoRoots = errors.New("at least one root is required")

	// ErrInvalidMaxAttempts is returned when the retry attempt count is below one.
	ErrInvalidMaxAttempts = errors.New("max attempts must be greater than 0")

	// ErrInvalidOption is returned for option values out of range.
	ErrInvalidOption = errors.New("invalid option")
)
