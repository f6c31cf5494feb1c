package embed

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI embedding defaults.
const (
	// DefaultOpenAIModel is the embedding model used when none is configured.
	DefaultOpenAIModel = "text-embedding-3-small"

	// OpenAIMaxBatchSize is the per-request input limit we send to the API.
	OpenAIMaxBatchSize = 100
)

// openAIModelDims maps known embedding models to their dimensions.
var openAIModelDims = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIConfig configures the OpenAI embedder.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string      // optional, for API-compatible endpoints
	Retry   RetryConfig // zero value selects DefaultRetryConfig
}

// OpenAIEmbedder generates embeddings through the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dims   int
	retry  RetryConfig
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an OpenAI embedder. The API key is required;
// construction fails fast so misconfiguration surfaces before any
// document is processed.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	dims, ok := openAIModelDims[cfg.Model]
	if !ok {
		dims = openAIModelDims[DefaultOpenAIModel]
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		dims:   dims,
		retry:  cfg.Retry,
	}, nil
}

// Embed generates an embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for texts, splitting the request into
// API-sized sub-batches. Results preserve input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += OpenAIMaxBatchSize {
		end := min(start+OpenAIMaxBatchSize, len(texts))
		batch := texts[start:end]

		var resp openai.EmbeddingResponse
		err := withRetry(ctx, e.retry, func() error {
			var callErr error
			resp, callErr = e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Model: openai.EmbeddingModel(e.model),
				Input: batch,
			})
			return callErr
		})
		if err != nil {
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("openai embeddings: expected %d vectors, got %d", len(batch), len(resp.Data))
		}

		for _, item := range resp.Data {
			vec := make([]float32, len(item.Embedding))
			for j, f := range item.Embedding {
				vec[j] = float32(f)
			}
			out = append(out, normalizeVector(vec))
		}
	}

	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string { return "openai/" + e.model }

// MaxBatchSize returns the per-request input limit.
func (e *OpenAIEmbedder) MaxBatchSize() int { return OpenAIMaxBatchSize }

// Close releases resources. The OpenAI client holds none.
func (e *OpenAIEmbedder) Close() error { return nil }
