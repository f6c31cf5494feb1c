// Package store is the persistence layer for indexed chunks: SQLite holds
// the durable entries (text, metadata, vector) and an in-process HNSW graph
// over the same ids serves nearest-neighbor queries.
package store

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Metadata is the fixed-shape record attached to every indexed entry.
// The field set is closed, so this is a struct rather than an open map.
type Metadata struct {
	Repo  string `json:"repo"`
	Path  string `json:"path"`
	URL   string `json:"url"`
	Index int    `json:"index"`
	Total int    `json:"total"`
}

// Entry is one persisted chunk: id, vector, original text, and metadata.
// The store never holds an entry without a vector.
type Entry struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata Metadata
}

// QueryMatch is one nearest-neighbor result. Distance is the cosine distance
// reported by the graph: 0 means identical direction, larger means less
// similar. Matches are returned in ascending distance order.
type QueryMatch struct {
	ID       string
	Text     string
	Metadata Metadata
	Distance float32
}

// ErrDimensionMismatch reports a vector whose length differs from the
// store's configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// encodeVector packs a float32 vector into a little-endian blob for SQLite.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector unpacks a blob written by encodeVector.
func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}
