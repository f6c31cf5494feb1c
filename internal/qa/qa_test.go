package qa

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsift/docsift/internal/chunk"
	"github.com/docsift/docsift/internal/crawl"
	"github.com/docsift/docsift/internal/embed"
	"github.com/docsift/docsift/internal/index"
	"github.com/docsift/docsift/internal/search"
	"github.com/docsift/docsift/internal/store"
)

// fakeGenerator records the prompt it was asked to complete.
type fakeGenerator struct {
	answer string
	err    error
	prompt string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeGenerator) ModelName() string { return "fake" }

// newFixture indexes docs into a fresh in-memory store and returns a
// retriever over it.
func newFixture(t *testing.T, docs []crawl.Document) *search.Retriever {
	t.Helper()

	embedder := embed.NewStaticEmbedder()
	st, err := store.Open("", embedder.Dimensions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	chunker, err := chunk.NewChunker(0, 0)
	require.NoError(t, err)
	mgr, err := index.NewManager(chunker, embedder, st)
	require.NoError(t, err)

	_, err = mgr.Index(context.Background(), docs)
	require.NoError(t, err)

	retriever, err := search.NewRetriever(embedder, st)
	require.NoError(t, err)
	return retriever
}

func testDocs() []crawl.Document {
	return []crawl.Document{
		{
			Repo:    "acme/gadgets",
			Path:    "docs/install.md",
			URL:     "https://github.com/acme/gadgets/blob/main/docs/install.md",
			Content: "# Installation\nRun the installer binary and follow the prompts to install gadgets.",
		},
		{
			Repo:    "acme/gadgets",
			Path:    "docs/config.md",
			URL:     "https://github.com/acme/gadgets/blob/main/docs/config.md",
			Content: "# Configuration\nGadgets reads settings from gadgets.yaml in the working directory.",
		},
	}
}

func TestEngine_Ask(t *testing.T) {
	// given
	retriever := newFixture(t, testDocs())
	gen := &fakeGenerator{answer: "Run the installer binary."}
	engine, err := NewEngine(retriever, gen)
	require.NoError(t, err)

	// when
	answer, err := engine.Ask(context.Background(), "how do I install gadgets?", 5)

	// then
	require.NoError(t, err)
	assert.Equal(t, "how do I install gadgets?", answer.Question)
	assert.Equal(t, "Run the installer binary.", answer.Text)
	require.NotEmpty(t, answer.Citations)

	// The prompt carries the retrieved passages and the question.
	assert.Contains(t, gen.prompt, "acme/gadgets/docs/install.md")
	assert.Contains(t, gen.prompt, "how do I install gadgets?")
	assert.Contains(t, gen.prompt, "[Source 1:")
}

func TestEngine_Ask_EmptyStore(t *testing.T) {
	retriever := newFixture(t, nil)
	gen := &fakeGenerator{answer: "should not be called"}
	engine, err := NewEngine(retriever, gen)
	require.NoError(t, err)

	answer, err := engine.Ask(context.Background(), "anything?", 5)

	require.NoError(t, err)
	assert.Equal(t, NoResultsAnswer, answer.Text)
	assert.Empty(t, answer.Citations)
	assert.Empty(t, gen.prompt, "generator must not be invoked without context")
}

func TestEngine_Ask_GeneratorError(t *testing.T) {
	retriever := newFixture(t, testDocs())
	gen := &fakeGenerator{err: errors.New("rate limited")}
	engine, err := NewEngine(retriever, gen)
	require.NoError(t, err)

	_, err = engine.Ask(context.Background(), "how do I install gadgets?", 5)
	assert.ErrorContains(t, err, "rate limited")
}

func TestCitationsFor_DeduplicatesByFile(t *testing.T) {
	results := []search.Result{
		{Text: "first chunk", Metadata: store.Metadata{Repo: "a/b", Path: "x.md", URL: "u1"}},
		{Text: "second chunk of the same file", Metadata: store.Metadata{Repo: "a/b", Path: "x.md", URL: "u1"}},
		{Text: "other file", Metadata: store.Metadata{Repo: "a/b", Path: "y.md", URL: "u2"}},
	}

	citations := citationsFor(results)

	require.Len(t, citations, 2)
	assert.Equal(t, "x.md", citations[0].Path)
	assert.Equal(t, "first chunk", citations[0].Snippet)
	assert.Equal(t, "y.md", citations[1].Path)
}

func TestSnippet_TruncatesLongText(t *testing.T) {
	long := strings.Repeat("word ", 100)
	got := snippet(long)
	assert.Len(t, []rune(got), snippetLen+3)
	assert.True(t, strings.HasSuffix(got, "..."))

	short := "brief"
	assert.Equal(t, short, snippet(short))
}

func TestAnswer_FormatMarkdown(t *testing.T) {
	a := &Answer{
		Question: "q?",
		Text:     "because",
		Citations: []Citation{
			{Repo: "a/b", Path: "doc.md", URL: "https://example.com/doc.md"},
		},
	}

	md := a.FormatMarkdown()
	assert.Contains(t, md, "**Question:** q?")
	assert.Contains(t, md, "**Answer:** because")
	assert.Contains(t, md, "1. [a/b/doc.md](https://example.com/doc.md)")
}

func TestNewEngine_NilDependencies(t *testing.T) {
	retriever := newFixture(t, nil)

	_, err := NewEngine(nil, &fakeGenerator{})
	assert.ErrorIs(t, err, ErrNilRetriever)

	_, err = NewEngine(retriever, nil)
	assert.ErrorIs(t, err, ErrNilGenerator)
}
