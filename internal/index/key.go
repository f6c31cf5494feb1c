package index

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// EntryKey identifies one indexed chunk: the owning repository, the source
// path, and the chunk's sequence number within its indexing run.
type EntryKey struct {
	Repo string
	Path string
	Seq  int
}

// ID derives the deterministic store id for the key. The fields are hashed
// with NUL separators, so a path containing any delimiter sequence cannot
// collide with another key.
func (k EntryKey) ID() string {
	h := sha256.New()
	h.Write([]byte(k.Repo))
	h.Write([]byte{0})
	h.Write([]byte(k.Path))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(k.Seq)))
	return hex.EncodeToString(h.Sum(nil))
}
