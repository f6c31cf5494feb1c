package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docsift/docsift/internal/chunk"
	"github.com/docsift/docsift/internal/config"
	"github.com/docsift/docsift/internal/embed"
	"github.com/docsift/docsift/internal/index"
	"github.com/docsift/docsift/internal/search"
	"github.com/docsift/docsift/internal/store"
)

// app bundles the wired pipeline a command needs. Close releases the store
// and the embedder.
type app struct {
	cfg       *config.Config
	embedder  embed.Embedder
	store     *store.Store
	manager   *index.Manager
	retriever *search.Retriever
}

// newApp opens the store and constructs the pipeline from cfg.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	embedder, err := embed.New(ctx, embed.Config{
		Provider: cfg.Embeddings.Provider,
		Model:    cfg.Embeddings.Model,
		APIKey:   cfg.OpenAIAPIKey,
		Host:     cfg.Embeddings.Host,
	})
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	st, err := store.Open(cfg.DataDir, embedder.Dimensions())
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	chunker, err := chunk.NewChunker(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap)
	if err != nil {
		_ = st.Close()
		_ = embedder.Close()
		return nil, err
	}

	manager, err := index.NewManager(chunker, embedder, st,
		index.WithFlushSize(cfg.Indexing.FlushSize))
	if err != nil {
		_ = st.Close()
		_ = embedder.Close()
		return nil, err
	}

	retriever, err := search.NewRetriever(embedder, st)
	if err != nil {
		_ = st.Close()
		_ = embedder.Close()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		embedder:  embedder,
		store:     st,
		manager:   manager,
		retriever: retriever,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("closing store", "error", err)
	}
	if err := a.embedder.Close(); err != nil {
		slog.Warn("closing embedder", "error", err)
	}
}
