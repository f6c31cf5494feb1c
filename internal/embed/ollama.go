package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Ollama embedding defaults.
const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"

	// OllamaMaxBatchSize bounds the texts sent per /api/embed call. Local
	// models slow down sharply on very large inputs, so the limit is small.
	OllamaMaxBatchSize = 32

	// ollamaRequestTimeout covers a single embed call, including a cold
	// model load on the first request.
	ollamaRequestTimeout = 120 * time.Second
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	Host  string
	Model string
	Retry RetryConfig
}

// OllamaEmbedder generates embeddings through a local Ollama server's
// HTTP API.
type OllamaEmbedder struct {
	client *http.Client
	host   string
	model  string
	dims   int
	retry  RetryConfig
}

var _ Embedder = (*OllamaEmbedder)(nil)

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaEmbedder creates an Ollama embedder and probes the server with a
// one-token request to detect the model's embedding dimension. Construction
// fails if the server is unreachable or the model is missing.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}

	e := &OllamaEmbedder{
		// Per-request deadlines come from contexts so callers keep control;
		// the client itself carries no global timeout.
		client: &http.Client{},
		host:   cfg.Host,
		model:  cfg.Model,
		retry:  cfg.Retry,
	}

	probe, err := e.EmbedBatch(ctx, []string{"dimension probe"})
	if err != nil {
		return nil, fmt.Errorf("connect to ollama at %s: %w", cfg.Host, err)
	}
	e.dims = len(probe[0])

	return e, nil
}

// Embed generates an embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for texts in sub-batches, preserving order.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += OllamaMaxBatchSize {
		end := min(start+OllamaMaxBatchSize, len(texts))
		batch := texts[start:end]

		var vecs [][]float32
		err := withRetry(ctx, e.retry, func() error {
			var callErr error
			vecs, callErr = e.embedOnce(ctx, batch)
			return callErr
		})
		if err != nil {
			return nil, fmt.Errorf("ollama embeddings: %w", err)
		}

		for _, v := range vecs {
			out = append(out, normalizeVector(v))
		}
	}

	return out, nil
}

// embedOnce issues a single /api/embed call.
func (e *OllamaEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, ollamaRequestTimeout)
	defer cancel()

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(parsed.Embeddings))
	}
	return parsed.Embeddings, nil
}

// Dimensions returns the embedding dimension detected at construction.
func (e *OllamaEmbedder) Dimensions() int { return e.dims }

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string { return "ollama/" + e.model }

// MaxBatchSize returns the per-request input limit.
func (e *OllamaEmbedder) MaxBatchSize() int { return OllamaMaxBatchSize }

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
