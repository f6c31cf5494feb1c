// Package config loads and validates the application configuration from an
// optional YAML file, a .env file, and environment variables (in increasing
// precedence).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultDataDir   = "./data"
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
	DefaultFlushSize = 50
	DefaultTopK      = 5
	DefaultAddr      = "localhost:8080"

	DefaultEmbeddingProvider = "openai"
	DefaultLLMProvider       = "openai"
	DefaultLLMModel          = "gpt-4o"
	DefaultAnthropicModel    = "claude-sonnet-4-20250514"
)

// Config is the complete application configuration.
type Config struct {
	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`

	Chunking   ChunkingConfig   `yaml:"chunking"`
	Indexing   IndexingConfig   `yaml:"indexing"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	LLM        LLMConfig        `yaml:"llm"`
	Server     ServerConfig     `yaml:"server"`

	// Credentials come from the environment only, never from YAML.
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	GitHubToken     string `yaml:"-"`
}

// ChunkingConfig bounds the segmenter.
type ChunkingConfig struct {
	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int `yaml:"chunk_size"`
	// Overlap is the span consecutive sliding-window chunks share.
	// Must be smaller than ChunkSize.
	Overlap int `yaml:"overlap"`
}

// IndexingConfig tunes the index manager.
type IndexingConfig struct {
	// FlushSize is the chunk-buffer threshold at which a batch is embedded
	// and persisted.
	FlushSize int `yaml:"flush_size"`
}

// RetrievalConfig tunes search.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	Provider string `yaml:"provider"` // openai, ollama, or static
	Model    string `yaml:"model"`
	Host     string `yaml:"host"` // ollama endpoint
}

// LLMConfig selects the answer-generation provider.
type LLMConfig struct {
	Provider string `yaml:"provider"` // openai or anthropic
	Model    string `yaml:"model"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:    DefaultDataDir,
		LogLevel:   "info",
		Chunking:   ChunkingConfig{ChunkSize: DefaultChunkSize, Overlap: DefaultOverlap},
		Indexing:   IndexingConfig{FlushSize: DefaultFlushSize},
		Retrieval:  RetrievalConfig{TopK: DefaultTopK},
		Embeddings: EmbeddingsConfig{Provider: DefaultEmbeddingProvider},
		LLM:        LLMConfig{Provider: DefaultLLMProvider, Model: DefaultLLMModel},
		Server:     ServerConfig{Addr: DefaultAddr},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is empty, "docsift.yaml" is used when present), then .env, then
// environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("docsift.yaml"); err == nil {
			path = "docsift.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// .env values become process env without overriding existing variables.
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the config.
func (c *Config) applyEnv() {
	c.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	c.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	c.GitHubToken = os.Getenv("GITHUB_TOKEN")

	setString(&c.DataDir, "DOCSIFT_DATA_DIR")
	setString(&c.LogLevel, "DOCSIFT_LOG_LEVEL")
	setString(&c.Embeddings.Provider, "DOCSIFT_EMBEDDING_PROVIDER")
	setString(&c.Embeddings.Model, "DOCSIFT_EMBEDDING_MODEL")
	setString(&c.Embeddings.Host, "DOCSIFT_OLLAMA_HOST")
	setString(&c.LLM.Provider, "DOCSIFT_LLM_PROVIDER")
	setString(&c.LLM.Model, "DOCSIFT_LLM_MODEL")
	setString(&c.Server.Addr, "DOCSIFT_ADDR")
	setInt(&c.Chunking.ChunkSize, "DOCSIFT_CHUNK_SIZE")
	setInt(&c.Chunking.Overlap, "DOCSIFT_CHUNK_OVERLAP")
	setInt(&c.Indexing.FlushSize, "DOCSIFT_FLUSH_SIZE")
	setInt(&c.Retrieval.TopK, "DOCSIFT_TOP_K")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate fails fast on misconfiguration, before any document is processed.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize < 1 {
		return fmt.Errorf("chunking: chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking: overlap must be in [0, chunk_size), got %d with chunk_size %d",
			c.Chunking.Overlap, c.Chunking.ChunkSize)
	}
	if c.Indexing.FlushSize < 1 {
		return fmt.Errorf("indexing: flush_size must be positive, got %d", c.Indexing.FlushSize)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval: top_k must be positive, got %d", c.Retrieval.TopK)
	}

	switch c.Embeddings.Provider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required when the embedding provider is openai")
		}
	case "ollama", "static":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embeddings.Provider)
	}

	switch c.LLM.Provider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required when the llm provider is openai")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return errors.New("ANTHROPIC_API_KEY is required when the llm provider is anthropic")
		}
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	return nil
}
