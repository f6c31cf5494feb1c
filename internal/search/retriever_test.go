package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsift/docsift/internal/chunk"
	"github.com/docsift/docsift/internal/crawl"
	"github.com/docsift/docsift/internal/embed"
	"github.com/docsift/docsift/internal/index"
	"github.com/docsift/docsift/internal/store"
)

// newIndexedFixture stands up a store with a few indexed documents using the
// deterministic static embedder.
func newIndexedFixture(t *testing.T) (*Retriever, *store.Store) {
	t.Helper()

	st, err := store.Open("", embed.StaticDimensions)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	chunker, err := chunk.NewChunker(0, 0)
	require.NoError(t, err)
	embedder := embed.NewStaticEmbedder()

	mgr, err := index.NewManager(chunker, embedder, st)
	require.NoError(t, err)

	docs := []crawl.Document{
		{
			Path:    "docs/server.md",
			Content: "# Server\nConfigure the http server port in config.yaml before starting.",
			URL:     "https://example.com/server.md",
			Repo:    "acme/widgets",
		},
		{
			Path:    "docs/animals.md",
			Content: "# Wildlife\nZebras and giraffes roam the savanna at dusk.",
			URL:     "https://example.com/animals.md",
			Repo:    "acme/widgets",
		},
		{
			Path:    "docs/install.md",
			Content: "# Install\nDownload the release tarball and unpack it.",
			URL:     "https://example.com/install.md",
			Repo:    "acme/widgets",
		},
	}
	_, err = mgr.Index(context.Background(), docs)
	require.NoError(t, err)

	r, err := NewRetriever(embedder, st)
	require.NoError(t, err)
	return r, st
}

func TestRetriever_RanksRelevantPassageFirst(t *testing.T) {
	r, _ := newIndexedFixture(t)

	results, err := r.Search(context.Background(), "how do I configure the http server port", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "docs/server.md", results[0].Metadata.Path)
}

func TestRetriever_SimilarityNonIncreasing(t *testing.T) {
	r, _ := newIndexedFixture(t)

	results, err := r.Search(context.Background(), "install the release", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}
}

func TestRetriever_RespectsTopK(t *testing.T) {
	r, _ := newIndexedFixture(t)

	results, err := r.Search(context.Background(), "documentation", 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 2)

	// Fewer entries than topK yields fewer results, not an error.
	results, err = r.Search(context.Background(), "documentation", 50)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestRetriever_EmptyStore(t *testing.T) {
	st, err := store.Open("", embed.StaticDimensions)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	r, err := NewRetriever(embed.NewStaticEmbedder(), st)
	require.NoError(t, err)

	results, err := r.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetriever_ResultsCarryMetadata(t *testing.T) {
	r, _ := newIndexedFixture(t)

	results, err := r.Search(context.Background(), "zebras on the savanna", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)

	m := results[0].Metadata
	assert.Equal(t, "acme/widgets", m.Repo)
	assert.NotEmpty(t, m.URL)
	assert.NotEmpty(t, results[0].Text)
	assert.Equal(t, 1, m.Total)
}

func TestNewRetriever_RequiresDependencies(t *testing.T) {
	st, err := store.Open("", embed.StaticDimensions)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	_, err = NewRetriever(nil, st)
	assert.ErrorIs(t, err, ErrNilEmbedder)

	_, err = NewRetriever(embed.NewStaticEmbedder(), nil)
	assert.ErrorIs(t, err, ErrNilStore)
}
