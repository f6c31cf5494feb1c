// Package index owns the durable collection of embedded chunks: it runs the
// chunker over incoming documents, batches the results through the embedding
// capability, and upserts them into the store.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/docsift/docsift/internal/chunk"
	"github.com/docsift/docsift/internal/crawl"
	"github.com/docsift/docsift/internal/embed"
	"github.com/docsift/docsift/internal/store"
)

// DefaultFlushSize is the chunk-buffer threshold at which accumulated chunks
// are embedded and persisted. It bounds peak memory to a small multiple of
// itself regardless of corpus size.
const DefaultFlushSize = 50

// Construction-time misuse sentinels.
var (
	ErrNilChunker  = errors.New("chunker is required")
	ErrNilEmbedder = errors.New("embedder is required")
	ErrNilStore    = errors.New("store is required")
)

// Stats summarizes the collection for observability.
type Stats struct {
	TotalChunks int      `json:"total_chunks"`
	TotalRepos  int      `json:"total_repos"`
	Repos       []string `json:"repos"`
}

// Manager converts documents into embedded, persisted entries and owns the
// store's contents. Mutating operations are serialized internally, so two
// concurrent Index calls cannot race on sequence numbers.
type Manager struct {
	chunker   *chunk.Chunker
	embedder  embed.Embedder
	store     *store.Store
	flushSize int

	mu sync.Mutex // guards Index, ClearRepo, ClearAll
}

// Option configures a Manager.
type Option func(*Manager)

// WithFlushSize overrides the chunk-buffer flush threshold.
func WithFlushSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.flushSize = n
		}
	}
}

// NewManager creates a Manager. All three dependencies are required.
func NewManager(chunker *chunk.Chunker, embedder embed.Embedder, st *store.Store, opts ...Option) (*Manager, error) {
	if chunker == nil {
		return nil, ErrNilChunker
	}
	if embedder == nil {
		return nil, ErrNilEmbedder
	}
	if st == nil {
		return nil, ErrNilStore
	}

	m := &Manager{
		chunker:   chunker,
		embedder:  embedder,
		store:     st,
		flushSize: DefaultFlushSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Index chunks each document, embeds the chunks in flush-sized batches, and
// upserts them into the store. It returns the total chunk count indexed.
//
// Indexing is not transactional across the whole call: a failure mid-run
// leaves earlier flushes durable. Sequence numbers are scoped to one Index
// call, so re-indexing a repository without clearing it first produces
// stale duplicates. Run ClearRepo beforehand to refresh.
func (m *Manager) Index(ctx context.Context, docs []crawl.Document) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buffer := make([]chunk.Chunk, 0, m.flushSize)
	seq := 0
	indexed := 0

	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		if err := m.flushChunks(ctx, buffer, seq-len(buffer)); err != nil {
			return err
		}
		indexed += len(buffer)
		buffer = buffer[:0]
		return nil
	}

	for _, doc := range docs {
		if doc.Content == "" {
			slog.Warn("skipping document without content",
				slog.String("repo", doc.Repo), slog.String("path", doc.Path))
			continue
		}

		for _, c := range m.chunker.Chunk(doc) {
			buffer = append(buffer, c)
			seq++
			if len(buffer) >= m.flushSize {
				if err := flush(); err != nil {
					return indexed, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return indexed, err
	}

	slog.Info("indexing complete", slog.Int("documents", len(docs)), slog.Int("chunks", indexed))
	return indexed, nil
}

// flushChunks embeds one buffered batch and upserts it. baseSeq is the
// call-scoped sequence number of the batch's first chunk.
func (m *Manager) flushChunks(ctx context.Context, chunks []chunk.Chunk, baseSeq int) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	// EmbedBatch sub-batches further if the provider imposes a smaller
	// per-call limit.
	vectors, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embed batch: expected %d vectors, got %d", len(chunks), len(vectors))
	}

	entries := make([]store.Entry, len(chunks))
	for i, c := range chunks {
		key := EntryKey{Repo: c.Repo, Path: c.Path, Seq: baseSeq + i}
		entries[i] = store.Entry{
			ID:     key.ID(),
			Vector: vectors[i],
			Text:   c.Text,
			Metadata: store.Metadata{
				Repo:  c.Repo,
				Path:  c.Path,
				URL:   c.URL,
				Index: c.Index,
				Total: c.Total,
			},
		}
	}

	if err := m.store.Upsert(ctx, entries); err != nil {
		return fmt.Errorf("upsert batch: %w", err)
	}

	slog.Debug("flushed chunk batch", slog.Int("chunks", len(entries)))
	return nil
}

// ClearRepo deletes every entry belonging to repo. Clearing an absent
// repository is a no-op, not an error.
func (m *Manager) ClearRepo(ctx context.Context, repo string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids, _, err := m.store.GetByRepo(ctx, repo)
	if err != nil {
		return fmt.Errorf("look up repo %s: %w", repo, err)
	}
	if len(ids) == 0 {
		slog.Info("no entries to clear", slog.String("repo", repo))
		return nil
	}

	if err := m.store.Delete(ctx, ids); err != nil {
		return fmt.Errorf("clear repo %s: %w", repo, err)
	}
	slog.Info("cleared repository", slog.String("repo", repo), slog.Int("chunks", len(ids)))
	return nil
}

// ClearAll resets the store to empty.
func (m *Manager) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Reset(ctx)
}

// ListRepos returns the distinct indexed repository names, sorted.
func (m *Manager) ListRepos(ctx context.Context) ([]string, error) {
	return m.store.Repos(ctx)
}

// Stats returns aggregate collection counts.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	count, err := m.store.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	repos, err := m.store.Repos(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{TotalChunks: count, TotalRepos: len(repos), Repos: repos}, nil
}
