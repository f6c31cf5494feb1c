package chunk

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/docsift/docsift/internal/crawl"
)

// headerPattern matches ATX headers: # Title through ###### Title.
var headerPattern = regexp.MustCompile(`^#{1,6}\s+.+$`)

// Chunker splits documents by Markdown headers first, then re-splits
// oversized sections with a sliding window that prefers paragraph and
// line boundaries over raw size cuts. Stateless and safe for concurrent use.
type Chunker struct {
	chunkSize int
	overlap   int
}

// NewChunker creates a chunker. Overlap must be smaller than chunkSize;
// zero values select the defaults.
func NewChunker(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize == 0 && overlap == 0 {
		chunkSize = DefaultChunkSize
		overlap = DefaultOverlap
	}
	if chunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, chunk size), got %d with chunk size %d", overlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Chunk splits a document into an ordered chunk sequence. Every chunk is
// trimmed and non-empty; an empty or whitespace-only document yields an
// empty slice. Index and Total are filled on the final sequence.
func (c *Chunker) Chunk(doc crawl.Document) []Chunk {
	segments := splitByHeaders(doc.Content)

	var texts []string
	for _, seg := range segments {
		if len(seg) > c.chunkSize {
			texts = append(texts, c.splitBySize(seg)...)
		} else {
			texts = append(texts, seg)
		}
	}

	chunks := make([]Chunk, 0, len(texts))
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		chunks = append(chunks, fromDocument(doc, text))
	}

	for i := range chunks {
		chunks[i].Index = i
		chunks[i].Total = len(chunks)
	}
	return chunks
}

// splitByHeaders splits text at ATX heading lines. Each segment starts at a
// heading (except possibly the first) and runs to the next heading or end of
// text. Text with no headings yields a single segment.
func splitByHeaders(text string) []string {
	lines := strings.Split(text, "\n")

	var segments []string
	var current []string

	for _, line := range lines {
		if headerPattern.MatchString(line) && len(current) > 0 {
			segments = append(segments, strings.Join(current, "\n"))
			current = []string{line}
		} else {
			current = append(current, line)
		}
	}
	if len(current) > 0 {
		segments = append(segments, strings.Join(current, "\n"))
	}

	if len(segments) == 0 {
		return []string{text}
	}
	return segments
}

// splitBySize re-splits an oversized segment with a sliding window.
// Each cut lands on the last paragraph break inside the window if one exists
// past the window start, else the last newline, else the raw size boundary.
// The next window retreats by the overlap so consecutive chunks share a span.
func (c *Chunker) splitBySize(text string) []string {
	var out []string
	start := 0

	for start < len(text) {
		end := start + c.chunkSize

		if end < len(text) {
			if brk := strings.LastIndex(text[start:end], "\n\n"); brk > 0 {
				end = start + brk
			} else if nl := strings.LastIndex(text[start:end], "\n"); nl > 0 {
				end = start + nl
			}
		} else {
			end = len(text)
		}

		out = append(out, text[start:end])

		if end >= len(text) {
			break
		}
		next := end - c.overlap
		if next <= start {
			// Overlap would stall the cursor; advance past the cut instead.
			next = end
		}
		start = next
	}

	return out
}
