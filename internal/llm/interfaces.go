package llm

import "context"

// ChatCompleter is the surface the gateway needs from a provider client.
// model selects the model identifier for this call; an empty string uses the
// client's configured default. temperature < 0 uses the client's default.
type ChatCompleter interface {
	CompleteModel(ctx context.Context, prompt, model string, temperature float64) (string, error)
	GetModel() string
}

// EmbeddingGenerator is the interface for generating vector embeddings.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}

// CompletionFunc is a reusable completion callable bound to a model, for
// composition into multi-step chains without re-specifying credentials.
type CompletionFunc func(ctx context.Context, prompt string) (string, error)
