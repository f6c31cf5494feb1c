package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticConfig returns a config that needs no credentials.
func staticConfig() *Config {
	cfg := Default()
	cfg.Embeddings.Provider = "static"
	cfg.LLM.Provider = "anthropic"
	cfg.AnthropicAPIKey = "test-key"
	return cfg
}

func TestDefault_IsValidWithCredentials(t *testing.T) {
	cfg := Default()
	cfg.OpenAIAPIKey = "sk-test"

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultChunkSize, cfg.Chunking.ChunkSize)
	assert.Equal(t, DefaultOverlap, cfg.Chunking.Overlap)
	assert.Equal(t, DefaultFlushSize, cfg.Indexing.FlushSize)
}

func TestValidate_ChunkingRelationship(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		overlap   int
		wantErr   bool
	}{
		{"valid", 1000, 200, false},
		{"zero overlap", 1000, 0, false},
		{"overlap equals chunk size", 200, 200, true},
		{"overlap exceeds chunk size", 200, 300, true},
		{"negative overlap", 200, -1, true},
		{"zero chunk size", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := staticConfig()
			cfg.Chunking.ChunkSize = tt.chunkSize
			cfg.Chunking.Overlap = tt.overlap

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_MissingCredentials(t *testing.T) {
	cfg := Default() // openai everywhere, no keys
	assert.Error(t, cfg.Validate())

	cfg.OpenAIAPIKey = "sk-test"
	assert.NoError(t, cfg.Validate())

	cfg.LLM.Provider = "anthropic"
	assert.Error(t, cfg.Validate())

	cfg.AnthropicAPIKey = "test-key"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_UnknownProviders(t *testing.T) {
	cfg := staticConfig()
	cfg.Embeddings.Provider = "cohere"
	assert.Error(t, cfg.Validate())

	cfg = staticConfig()
	cfg.LLM.Provider = "llama"
	assert.Error(t, cfg.Validate())
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docsift.yaml")
	yaml := `
data_dir: /tmp/docsift-test
chunking:
  chunk_size: 500
  overlap: 50
embeddings:
  provider: static
llm:
  provider: anthropic
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/docsift-test", cfg.DataDir)
	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	// Unset fields keep their defaults.
	assert.Equal(t, DefaultFlushSize, cfg.Indexing.FlushSize)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docsift.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunking: {chunk_size: 500, overlap: 50}\nembeddings: {provider: static}\nllm: {provider: anthropic}\n"), 0644))

	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	t.Setenv("DOCSIFT_CHUNK_SIZE", "800")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Chunking.ChunkSize)
}

func TestLoad_InvalidConfigFailsFast(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docsift.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunking: {chunk_size: 100, overlap: 100}\nembeddings: {provider: static}\nllm: {provider: anthropic}\n"), 0644))
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	_, err := Load(path)
	assert.Error(t, err)
}
