// Package search turns a natural-language query into ranked passages from
// the indexed collection.
package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/docsift/docsift/internal/embed"
	"github.com/docsift/docsift/internal/store"
)

// DefaultTopK is the result count used when the caller passes none.
const DefaultTopK = 5

// Construction-time misuse sentinels.
var (
	ErrNilEmbedder = errors.New("embedder is required")
	ErrNilStore    = errors.New("store is required")
)

// Result is one ranked passage. Similarity is 1 - cosine distance: higher is
// more relevant. No similarity threshold is applied; callers see the weak
// matches too.
type Result struct {
	Text       string         `json:"text"`
	Metadata   store.Metadata `json:"metadata"`
	Similarity float64        `json:"similarity"`
}

// Retriever performs similarity search over the store's query surface.
// It holds a read-only reference and never mutates the collection. Safe for
// concurrent use.
type Retriever struct {
	embedder embed.Embedder
	store    *store.Store
}

// NewRetriever creates a Retriever.
func NewRetriever(embedder embed.Embedder, st *store.Store) (*Retriever, error) {
	if embedder == nil {
		return nil, ErrNilEmbedder
	}
	if st == nil {
		return nil, ErrNilStore
	}
	return &Retriever{embedder: embedder, store: st}, nil
}

// Search embeds the query and returns up to topK matches ordered by
// descending similarity. An empty store yields an empty slice, not an error.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.store.Query(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}

	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			Text:       m.Text,
			Metadata:   m.Metadata,
			Similarity: 1 - float64(m.Distance),
		}
	}
	return results, nil
}
