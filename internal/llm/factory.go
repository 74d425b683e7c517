package llm

import (
	"fmt"

	"github.com/faragon/langlab/internal/config"
)

// NewEmbeddingGenerator creates the appropriate EmbeddingGenerator for the
// configured provider.
func NewEmbeddingGenerator(cfg config.EmbeddingConfig, apiKey string) (EmbeddingGenerator, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIEmbeddingClient(OpenAIEmbeddingConfig{
			APIKey: apiKey,
			Model:  cfg.Model,
		}), nil
	case "ollama":
		return NewOllamaClient(OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Provider)
	}
}
