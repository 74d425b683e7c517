package llm

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/faragon/langlab/internal/config"
)

// ErrModelUnavailable is returned when both the primary and the fallback
// model calls failed.
var ErrModelUnavailable = errors.New("model unavailable")

// Gateway wraps a hosted chat-completion provider with a single deterministic
// fallback substitution: any failure of the primary call is retried exactly
// once against the configured fallback model with identical parameters.
//
// Primary and fallback use separate clients so that a tripped circuit breaker
// on the primary does not reject the fallback attempt.
type Gateway struct {
	primary       ChatCompleter
	fallback      ChatCompleter
	defaultModel  string
	fallbackModel string
}

// NewGateway builds a gateway from provider configuration.
func NewGateway(cfg config.LLMConfig) *Gateway {
	primary := NewOpenAIClient(OpenAIConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.DefaultModel,
		Temperature: cfg.Temperature,
	})
	fallback := NewOpenAIClient(OpenAIConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.FallbackModel,
		Temperature: cfg.Temperature,
	})
	return &Gateway{
		primary:       primary,
		fallback:      fallback,
		defaultModel:  cfg.DefaultModel,
		fallbackModel: cfg.FallbackModel,
	}
}

// NewGatewayWithClients builds a gateway over preconstructed clients.
// Used by tests to inject fakes.
func NewGatewayWithClients(primary, fallback ChatCompleter, defaultModel, fallbackModel string) *Gateway {
	return &Gateway{
		primary:       primary,
		fallback:      fallback,
		defaultModel:  defaultModel,
		fallbackModel: fallbackModel,
	}
}

// Complete sends prompt to the given model (or the configured default when
// model is empty). On any failure it retries exactly once against the
// fallback model; a second failure returns ErrModelUnavailable.
func (g *Gateway) Complete(ctx context.Context, prompt, model string) (string, error) {
	return g.complete(ctx, prompt, model, -1)
}

func (g *Gateway) complete(ctx context.Context, prompt, model string, temperature float64) (string, error) {
	if model == "" {
		model = g.defaultModel
	}

	answer, primaryErr := g.primary.CompleteModel(ctx, prompt, model, temperature)
	if primaryErr == nil {
		return answer, nil
	}
	log.Printf("gateway: model %q failed, substituting fallback %q: %v", model, g.fallbackModel, primaryErr)

	answer, fallbackErr := g.fallback.CompleteModel(ctx, prompt, g.fallbackModel, temperature)
	if fallbackErr == nil {
		return answer, nil
	}

	return "", fmt.Errorf("%w: primary: %v; fallback: %v", ErrModelUnavailable, primaryErr, fallbackErr)
}

// Handle returns a reusable completion callable bound to a model and
// temperature, with the same fallback substitution as Complete. Chains can
// compose these without re-specifying credentials for each call.
func (g *Gateway) Handle(model string, temperature float64) CompletionFunc {
	if model == "" {
		model = g.defaultModel
	}
	return func(ctx context.Context, prompt string) (string, error) {
		return g.complete(ctx, prompt, model, temperature)
	}
}

// DefaultModel returns the configured primary model identifier.
func (g *Gateway) DefaultModel() string {
	return g.defaultModel
}
