package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"io/fs"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for catalog entries.
// It is derived from the absolute path of the file it names.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// Identical content always produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// FileRecord describes one regular file found under an indexed root.
type FileRecord struct {
	Id        ID
	Root      string    // Root directory the file was discovered under
	Path      string    // Absolute, cleaned path of the file
	Size      int64     // Size in bytes
	Mode      uint32    // fs.FileMode bits
	ModTime   time.Time // Modification time reported by the filesystem
	Hash      string    // Hex BLAKE2b-256 of the contents, empty when not hashed
	IndexedAt time.Time // When the file was first written to the catalog
	UpdatedAt time.Time // When the catalog entry last changed
}

// NewFileRecord builds a FileRecord for path from its stat information.
// path is expected to be absolute; the ID is derived from it. ModTime is
// truncated to microseconds, the precision every store keeps.
func NewFileRecord(root, path string, info fs.FileInfo) *FileRecord {
	return &FileRecord{
		Id:      IDFromContent(path),
		Root:    root,
		Path:    path,
		Size:    info.Size(),
		Mode:    uint32(info.Mode()),
		ModTime: info.ModTime().UTC().Truncate(time.Microsecond),
	}
}

// SameContent reports whether r and other describe the same file state.
// An empty hash on either side is not compared.
func (r *FileRecord) SameContent(other *FileRecord) bool {
	if r.Size != other.Size || r.Mode != other.Mode || !r.ModTime.Equal(other.ModTime) {
		return false
	}
	if r.Hash != "" && other.Hash != "" {
		return r.Hash == other.Hash
	}
	return true
}

// Checkpoint summarizes the last completed index run of a root.
type Checkpoint struct {
	Root      string
	RunID     string
	Files     int64
	LastRun   time.Time
	UpdatedAt time.Time
}
