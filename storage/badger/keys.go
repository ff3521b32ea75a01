package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/catalog/core"
)

// Key prefixes for different data types
const (
	fileRecordPrefix = "filrec"
	fileRootPrefix   = "filroot"
)

// makeFileRecordKey generates a key for a file record by ID.
func makeFileRecordKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", fileRecordPrefix, id))
}

// makeFileRootKey generates a composite key for the root index.
// Format: prefix:root\x00id
func makeFileRootKey(root string, id core.ID) []byte {
	partial := makePartialFileRootKey(root)
	buf := make([]byte, len(partial)+8)
	offset := copy(buf, partial)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialFileRootKey generates the prefix shared by every file of root.
// The NUL terminator keeps /data from matching /data2.
func makePartialFileRootKey(root string) []byte {
	prefix := fileRootPrefix + ":"
	buf := make([]byte, len(prefix)+len(root)+1)
	offset := copy(buf, prefix)
	copy(buf[offset:], root)
	return buf
}

// idFromRootKey extracts the record ID from a root index key.
func idFromRootKey(key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

// makeCheckpointKey generates a key for the checkpoint of a root.
func makeCheckpointKey(root string) []byte {
	return []byte(fmt.Sprintf("%s:chkpt", root))
}
