package qa

import (
	"fmt"

	"github.com/docsift/docsift/internal/config"
)

// NewGenerator builds the Generator selected by cfg.LLM.
func NewGenerator(cfg *config.Config) (Generator, error) {
	switch cfg.LLM.Provider {
	case "openai":
		model := cfg.LLM.Model
		if model == "" {
			model = config.DefaultLLMModel
		}
		return NewOpenAIGenerator(cfg.OpenAIAPIKey, model)
	case "anthropic":
		model := cfg.LLM.Model
		if model == "" {
			model = config.DefaultAnthropicModel
		}
		return NewAnthropicGenerator(cfg.AnthropicAPIKey, model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
