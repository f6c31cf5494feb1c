// Package chunk splits Markdown documents into bounded, semantically
// coherent chunks for embedding and retrieval.
package chunk

import "github.com/docsift/docsift/internal/crawl"

// Default chunking parameters, overridable via config.
const (
	// DefaultChunkSize is the maximum chunk length in characters.
	DefaultChunkSize = 1000

	// DefaultOverlap is the number of characters consecutive
	// sliding-window chunks share.
	DefaultOverlap = 200
)

// Chunk is a bounded span of document text with positional metadata.
// Chunks are ephemeral: they exist between segmentation and indexing,
// after which the persistent record is the store entry.
type Chunk struct {
	Text  string
	Path  string // source document path, repo-relative
	URL   string // source document permalink
	Repo  string // owning repository identifier
	Index int    // 0-based position within the document's chunk sequence
	Total int    // chunk count of the document
}

// fromDocument copies a document's provenance onto a chunk.
func fromDocument(doc crawl.Document, text string) Chunk {
	return Chunk{
		Text: text,
		Path: doc.Path,
		URL:  doc.URL,
		Repo: doc.Repo,
	}
}
