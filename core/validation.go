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


package core

import (
	"fmt"
	"path/filepath"
	"time"
)

// ValidateFileRecord validates a FileRecord according to domain rules.
//
// Validation rules:
//   - Path must be non-empty and absolute
//   - Root must not be empty
//   - Id must equal IDFromContent(Path)
//   - Size must not be negative
//   - ModTime must not be in the future
//
// NOT validated:
//   - Hash (empty until the hasher has seen the file)
//   - IndexedAt, UpdatedAt (set by storage)
func ValidateFileRecord(record *FileRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidFileRecord)
	}

	if record.Path == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFileRecord, ErrEmptyPath)
	}

	if !filepath.IsAbs(record.Path) {
		return fmt.Errorf("%w: %w: %s", ErrInvalidFileRecord, ErrRelativePath, record.Path)
	}

	if record.Root == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFileRecord, ErrEmptyRoot)
	}

	if record.Id != IDFromContent(record.Path) {
		return fmt.Errorf("%w: %w: %s", ErrInvalidFileRecord, ErrIDMismatch, record.Path)
	}

	if record.Size < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidFileRecord, ErrNegativeSize)
	}

	if !IsValidTimestamp(record.ModTime) {
		return fmt.Errorf("%w: %w", ErrInvalidFileRecord, ErrInvalidTimestamp)
	}

	return nil
}

// ValidateCheckpoint validates a Checkpoint before it is saved.
func ValidateCheckpoint(checkpoint *Checkpoint) error {
	if checkpoint == nil {
		return fmt.Errorf("%w: checkpoint is nil", ErrInvalidCheckpoint)
	}

	if checkpoint.Root == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCheckpoint, ErrEmptyRoot)
	}

	if !IsValidTimestamp(checkpoint.LastRun) {
		return fmt.Errorf("%w: %w", ErrInvalidCheckpoint, ErrInvalidTimestamp)
	}

	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
// A small allowance covers clock skew between the filesystem and this process.
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now().Add(time.Minute))
}
