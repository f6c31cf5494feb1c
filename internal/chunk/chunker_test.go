package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsift/docsift/internal/crawl"
)

func testDoc(content string) crawl.Document {
	return crawl.Document{
		Path:    "docs/guide.md",
		Content: content,
		URL:     "https://github.com/acme/widgets/blob/main/docs/guide.md",
		Repo:    "acme/widgets",
	}
}

func TestChunker_SplitsAtHeaders(t *testing.T) {
	// Given: a document with two top-level sections, both well under the limit
	c, err := NewChunker(1000, 200)
	require.NoError(t, err)

	chunks := c.Chunk(testDoc("# A\nfoo bar\n# B\nbaz"))

	// Then: exactly one chunk per section, in order, with positional metadata
	require.Len(t, chunks, 2)
	assert.Equal(t, "# A\nfoo bar", chunks[0].Text)
	assert.Equal(t, "# B\nbaz", chunks[1].Text)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 2, chunks[0].Total)
	assert.Equal(t, 1, chunks[1].Index)
	assert.Equal(t, 2, chunks[1].Total)
}

func TestChunker_NoHeadersYieldsSingleChunk(t *testing.T) {
	c, err := NewChunker(1000, 200)
	require.NoError(t, err)

	chunks := c.Chunk(testDoc("just some prose\nwith two lines"))

	require.Len(t, chunks, 1)
	assert.Equal(t, "just some prose\nwith two lines", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[0].Total)
}

func TestChunker_EmptyDocument(t *testing.T) {
	c, err := NewChunker(1000, 200)
	require.NoError(t, err)

	assert.Empty(t, c.Chunk(testDoc("")))
	assert.Empty(t, c.Chunk(testDoc("   \n\n\t  ")))
}

func TestChunker_CarriesDocumentMetadata(t *testing.T) {
	c, err := NewChunker(1000, 200)
	require.NoError(t, err)

	chunks := c.Chunk(testDoc("# A\ncontent"))

	require.Len(t, chunks, 1)
	assert.Equal(t, "docs/guide.md", chunks[0].Path)
	assert.Equal(t, "acme/widgets", chunks[0].Repo)
	assert.Contains(t, chunks[0].URL, "docs/guide.md")
}

func TestChunker_SizeBound(t *testing.T) {
	// Given: a long headerless document made of short paragraphs
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("This paragraph is repeated to build a long document for splitting.\n\n")
	}

	c, err := NewChunker(200, 40)
	require.NoError(t, err)
	chunks := c.Chunk(testDoc(b.String()))

	// Then: every chunk respects the bound, since paragraph breaks exist
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 200, "chunk %d exceeds bound", ch.Index)
	}
}

func TestChunker_OversizedUnbreakableSegment(t *testing.T) {
	// A single run with no newlines at all cannot be cut on a boundary,
	// so the window falls back to raw size cuts.
	long := strings.Repeat("x", 550)

	c, err := NewChunker(200, 50)
	require.NoError(t, err)
	chunks := c.Chunk(testDoc(long))

	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 200)
	}

	// Reconstruction: dropping each chunk's leading overlap span reproduces
	// the original text.
	rebuilt := chunks[0].Text
	for i := 1; i < len(chunks); i++ {
		rebuilt += chunks[i].Text[50:]
	}
	assert.Equal(t, long, rebuilt)
}

func TestChunker_OverlapInvariant(t *testing.T) {
	// Sliding-window neighbors share a trailing/leading span of overlap
	// characters. Use content without whitespace at cut points so trimming
	// does not disturb the comparison.
	long := strings.Repeat("abcdefghij", 60) // 600 chars, no break points

	c, err := NewChunker(250, 50)
	require.NoError(t, err)
	chunks := c.Chunk(testDoc(long))

	require.Greater(t, len(chunks), 1)
	for i := 0; i+1 < len(chunks); i++ {
		tail := chunks[i].Text[len(chunks[i].Text)-50:]
		head := chunks[i+1].Text[:50]
		assert.Equal(t, tail, head, "chunks %d and %d do not overlap", i, i+1)
	}
}

func TestChunker_PrefersParagraphBoundaries(t *testing.T) {
	// Given: two paragraphs whose combined size exceeds the window
	first := strings.Repeat("a", 120)
	second := strings.Repeat("b", 120)
	doc := testDoc(first + "\n\n" + second)

	c, err := NewChunker(200, 20)
	require.NoError(t, err)
	chunks := c.Chunk(doc)

	// Then: the cut lands on the paragraph break, not mid-paragraph, and the
	// next window retreats by the overlap so the second chunk carries a 20-char
	// tail of the first paragraph.
	require.Len(t, chunks, 2)
	assert.Equal(t, first, chunks[0].Text)
	assert.Equal(t, strings.Repeat("a", 20)+"\n\n"+second, chunks[1].Text)
}

func TestNewChunker_Validation(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		overlap   int
		wantErr   bool
	}{
		{"defaults", 0, 0, false},
		{"valid", 1000, 200, false},
		{"zero overlap allowed", 100, 0, false},
		{"overlap equals size", 100, 100, true},
		{"overlap exceeds size", 100, 150, true},
		{"negative overlap", 100, -1, true},
		{"negative size", -5, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunker(tt.chunkSize, tt.overlap)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
