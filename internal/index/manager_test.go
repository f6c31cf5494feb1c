package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsift/docsift/internal/chunk"
	"github.com/docsift/docsift/internal/crawl"
	"github.com/docsift/docsift/internal/embed"
	"github.com/docsift/docsift/internal/store"
)

func newTestManager(t *testing.T, opts ...Option) (*Manager, *store.Store) {
	t.Helper()

	chunker, err := chunk.NewChunker(200, 40)
	require.NoError(t, err)

	st, err := store.Open("", embed.StaticDimensions)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	m, err := NewManager(chunker, embed.NewStaticEmbedder(), st, opts...)
	require.NoError(t, err)
	return m, st
}

func docsForRepo(repo string, n int) []crawl.Document {
	docs := make([]crawl.Document, n)
	for i := range docs {
		docs[i] = crawl.Document{
			Path:    fmt.Sprintf("docs/page%d.md", i),
			Content: fmt.Sprintf("# Page %d\nSome body text for page %d.", i, i),
			URL:     fmt.Sprintf("https://example.com/%s/page%d.md", repo, i),
			Repo:    repo,
		}
	}
	return docs
}

func TestManager_IndexRoundTripCount(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	count, err := m.Index(ctx, docsForRepo("acme/widgets", 5))
	require.NoError(t, err)
	assert.Equal(t, 5, count) // one chunk per small single-section document

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, count, stats.TotalChunks)
	assert.Equal(t, 1, stats.TotalRepos)
	assert.Equal(t, []string{"acme/widgets"}, stats.Repos)
}

func TestManager_IndexNoDocuments(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	before, err := m.Stats(ctx)
	require.NoError(t, err)

	count, err := m.Index(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, count)

	after, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestManager_IndexSkipsEmptyDocuments(t *testing.T) {
	m, _ := newTestManager(t)

	docs := []crawl.Document{
		{Path: "empty.md", Content: "", Repo: "acme/widgets"},
		{Path: "real.md", Content: "# Real\ncontent", URL: "u", Repo: "acme/widgets"},
	}
	count, err := m.Index(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestManager_IndexFlushesInBatches(t *testing.T) {
	// Flush threshold 3 with 5 single-chunk documents: two flushes.
	m, st := newTestManager(t, WithFlushSize(3))
	ctx := context.Background()

	count, err := m.Index(ctx, docsForRepo("acme/widgets", 5))
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

// failAfterEmbedder fails once a number of texts have been embedded.
type failAfterEmbedder struct {
	*embed.StaticEmbedder
	remaining int
}

func (f *failAfterEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.remaining < len(texts) {
		return nil, errors.New("embedding quota exhausted")
	}
	f.remaining -= len(texts)
	return f.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestManager_PartialFailureKeepsFlushedBatches(t *testing.T) {
	chunker, err := chunk.NewChunker(200, 40)
	require.NoError(t, err)
	st, err := store.Open("", embed.StaticDimensions)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	// Quota allows the first flush of 3 but not the second.
	failing := &failAfterEmbedder{StaticEmbedder: embed.NewStaticEmbedder(), remaining: 3}
	m, err := NewManager(chunker, failing, st, WithFlushSize(3))
	require.NoError(t, err)

	ctx := context.Background()
	count, err := m.Index(ctx, docsForRepo("acme/widgets", 5))

	// The error propagates, but the first flush stays durable.
	require.Error(t, err)
	assert.Equal(t, 3, count)

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestManager_ClearRepoRemovesOnlyThatRepo(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Index(ctx, docsForRepo("acme/widgets", 10))
	require.NoError(t, err)
	_, err = m.Index(ctx, docsForRepo("zephyr/docs", 4))
	require.NoError(t, err)

	require.NoError(t, m.ClearRepo(ctx, "acme/widgets"))

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalChunks)
	assert.Equal(t, []string{"zephyr/docs"}, stats.Repos)
}

func TestManager_ClearRepoIdempotent(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Index(ctx, docsForRepo("acme/widgets", 2))
	require.NoError(t, err)

	require.NoError(t, m.ClearRepo(ctx, "acme/widgets"))
	first, err := m.Stats(ctx)
	require.NoError(t, err)

	// Clearing again raises no error and leaves stats unchanged.
	require.NoError(t, m.ClearRepo(ctx, "acme/widgets"))
	second, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestManager_ClearAll(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Index(ctx, docsForRepo("acme/widgets", 3))
	require.NoError(t, err)

	require.NoError(t, m.ClearAll(ctx))

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalChunks)
	assert.Empty(t, stats.Repos)
}

func TestManager_ListReposSorted(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Index(ctx, docsForRepo("zephyr/docs", 1))
	require.NoError(t, err)
	_, err = m.Index(ctx, docsForRepo("acme/widgets", 1))
	require.NoError(t, err)

	repos, err := m.ListRepos(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/widgets", "zephyr/docs"}, repos)
}

func TestManager_LargeDocumentMultipleChunks(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	var b strings.Builder
	b.WriteString("# Big\n")
	for i := 0; i < 30; i++ {
		b.WriteString("A paragraph of filler text that pads the section out.\n\n")
	}
	doc := crawl.Document{Path: "big.md", Content: b.String(), URL: "u", Repo: "acme/widgets"}

	count, err := m.Index(ctx, []crawl.Document{doc})
	require.NoError(t, err)
	assert.Greater(t, count, 1)

	stats, err := m.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, count, stats.TotalChunks)
}

func TestNewManager_RequiresDependencies(t *testing.T) {
	chunker, err := chunk.NewChunker(0, 0)
	require.NoError(t, err)
	st, err := store.Open("", embed.StaticDimensions)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	_, err = NewManager(nil, embed.NewStaticEmbedder(), st)
	assert.ErrorIs(t, err, ErrNilChunker)

	_, err = NewManager(chunker, nil, st)
	assert.ErrorIs(t, err, ErrNilEmbedder)

	_, err = NewManager(chunker, embed.NewStaticEmbedder(), nil)
	assert.ErrorIs(t, err, ErrNilStore)
}

func TestEntryKey_Deterministic(t *testing.T) {
	a := EntryKey{Repo: "acme/widgets", Path: "docs/a.md", Seq: 7}
	b := EntryKey{Repo: "acme/widgets", Path: "docs/a.md", Seq: 7}
	assert.Equal(t, a.ID(), b.ID())

	// Any field change produces a different id, including delimiter abuse
	// in the path.
	c := EntryKey{Repo: "acme", Path: "widgets/docs/a.md", Seq: 7}
	assert.NotEqual(t, a.ID(), c.ID())

	d := EntryKey{Repo: "acme/widgets", Path: "docs/a.md", Seq: 8}
	assert.NotEqual(t, a.ID(), d.ID())
}
