// Package qa answers questions over the indexed collection, grounding each
// answer in retrieved passages and citing their sources.
package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/docsift/docsift/internal/search"
)

const (
	// DefaultMaxTokens bounds the generated answer length.
	DefaultMaxTokens = 1000
	// snippetLen is the citation excerpt length in runes.
	snippetLen = 200
)

// Construction-time misuse sentinels.
var (
	ErrNilRetriever = errors.New("retriever is required")
	ErrNilGenerator = errors.New("generator is required")
)

// NoResultsAnswer is returned verbatim when retrieval finds nothing.
const NoResultsAnswer = "I couldn't find any relevant information in the indexed documentation to answer this question."

// Generator produces a completion for a prompt. Implementations wrap a
// specific LLM provider.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

// Citation points at a source passage that grounded the answer.
type Citation struct {
	Repo    string `json:"repo"`
	Path    string `json:"path"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Answer is a generated answer with its supporting citations, ordered by
// descending relevance of the underlying passages.
type Answer struct {
	Question  string     `json:"question"`
	Text      string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// FormatMarkdown renders the answer with a numbered source list.
func (a *Answer) FormatMarkdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Question:** %s\n\n", a.Question)
	fmt.Fprintf(&b, "**Answer:** %s\n\n", a.Text)
	if len(a.Citations) > 0 {
		b.WriteString("**Sources:**\n")
		for i, c := range a.Citations {
			fmt.Fprintf(&b, "%d. [%s/%s](%s)\n", i+1, c.Repo, c.Path, c.URL)
		}
	}
	return b.String()
}

// Engine ties retrieval and generation together.
type Engine struct {
	retriever *search.Retriever
	generator Generator
}

// NewEngine creates an Engine.
func NewEngine(retriever *search.Retriever, generator Generator) (*Engine, error) {
	if retriever == nil {
		return nil, ErrNilRetriever
	}
	if generator == nil {
		return nil, ErrNilGenerator
	}
	return &Engine{retriever: retriever, generator: generator}, nil
}

// Ask retrieves the topK most relevant passages for question, generates an
// answer grounded in them, and attaches one citation per distinct source
// file. When nothing relevant is indexed the answer says so and carries no
// citations.
func (e *Engine) Ask(ctx context.Context, question string, topK int) (*Answer, error) {
	results, err := e.retriever.Search(ctx, question, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	if len(results) == 0 {
		return &Answer{Question: question, Text: NoResultsAnswer}, nil
	}

	prompt := buildPrompt(question, results)
	text, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &Answer{
		Question:  question,
		Text:      text,
		Citations: citationsFor(results),
	}, nil
}

// buildPrompt assembles the grounding context and question.
func buildPrompt(question string, results []search.Result) string {
	var ctx strings.Builder
	for i, r := range results {
		if i > 0 {
			ctx.WriteString("\n\n")
		}
		fmt.Fprintf(&ctx, "[Source %d: %s/%s]\n%s\n", i+1, r.Metadata.Repo, r.Metadata.Path, r.Text)
	}

	return fmt.Sprintf(`You are a helpful assistant that answers questions based on documentation.

Use the following documentation excerpts to answer the question. If the answer cannot be found in the provided context, say so.

Documentation:
%s

Question: %s

Provide a clear, accurate answer based on the documentation above. Reference specific sources when relevant.`, ctx.String(), question)
}

// citationsFor keeps one citation per (repo, path), preserving the order the
// passages were ranked in. Multiple chunks of the same file cite it once.
func citationsFor(results []search.Result) []Citation {
	seen := make(map[string]struct{}, len(results))
	citations := make([]Citation, 0, len(results))
	for _, r := range results {
		key := r.Metadata.Repo + "\x00" + r.Metadata.Path
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		citations = append(citations, Citation{
			Repo:    r.Metadata.Repo,
			Path:    r.Metadata.Path,
			URL:     r.Metadata.URL,
			Snippet: snippet(r.Text),
		})
	}
	return citations
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetLen {
		return text
	}
	return string(runes[:snippetLen]) + "..."
}
