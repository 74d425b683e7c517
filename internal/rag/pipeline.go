package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/faragon/langlab/internal/llm"
	"github.com/faragon/langlab/internal/vectorstore"
)

// Completer is the completion surface the pipelines need from the LLM
// gateway. Kept minimal so tests can substitute a fake.
type Completer interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
}

// ScoredSource is a retrieved fragment with its similarity score, as exposed
// by the advanced query endpoint.
type ScoredSource struct {
	Text  string  `json:"source"`
	Score float64 `json:"score"`
}

// SimilarityScore converts a distance to the reported similarity, 1/(1+d)
// rounded to four decimals. Identical vectors score 1.0 and the score decays
// toward zero with distance.
func SimilarityScore(distance float32) float64 {
	return math.Round(10000/(1+float64(distance))) / 10000
}

// Pipeline answers questions grounded in one vector-store collection. The
// three Answer variants share retrieval and differ in prompt shape and
// response post-processing.
type Pipeline struct {
	store      vectorstore.Store
	embedder   llm.EmbeddingGenerator
	completer  Completer
	collection string
	topK       int
}

// NewPipeline creates a retrieval pipeline over the given collection.
func NewPipeline(store vectorstore.Store, embedder llm.EmbeddingGenerator, completer Completer, collection string, topK int) *Pipeline {
	if topK <= 0 {
		topK = 3
	}
	return &Pipeline{
		store:      store,
		embedder:   embedder,
		completer:  completer,
		collection: collection,
		topK:       topK,
	}
}

// Retrieve embeds the question and returns the topK nearest chunks.
func (p *Pipeline) Retrieve(ctx context.Context, question string) ([]vectorstore.Result, error) {
	vec, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("rag: embed question: %w", err)
	}
	results, err := p.store.Query(ctx, p.collection, vec, p.topK, nil)
	if err != nil {
		return nil, fmt.Errorf("rag: query %s: %w", p.collection, err)
	}
	return results, nil
}

// AnswerBasic runs the grounded-prompt variant: retrieved chunks are joined
// into a context block and the model must answer from it alone. It returns
// the answer and the chunk texts used as sources.
func (p *Pipeline) AnswerBasic(ctx context.Context, question string) (string, []string, error) {
	results, err := p.Retrieve(ctx, question)
	if err != nil {
		return "", nil, err
	}
	texts := resultTexts(results)

	prompt := llm.RAGBasicPrompt(strings.Join(texts, "\n\n"), question)
	answer, err := p.completer.Complete(ctx, prompt, "")
	if err != nil {
		return "", nil, err
	}
	return strings.TrimSpace(answer), texts, nil
}

// AnswerJSON runs the structured variant: the model is asked for a JSON
// envelope and the answer field is extracted tolerantly. When the model
// response is not valid JSON the raw text is used as the answer instead of
// failing the request. Sources are always the retrieved chunks, never the
// model's claim of what it used.
func (p *Pipeline) AnswerJSON(ctx context.Context, question string) (string, []string, error) {
	results, err := p.Retrieve(ctx, question)
	if err != nil {
		return "", nil, err
	}
	texts := resultTexts(results)

	prompt := llm.RAGJSONPrompt(strings.Join(texts, "\n"), question)
	raw, err := p.completer.Complete(ctx, prompt, "")
	if err != nil {
		return "", nil, err
	}

	answer := strings.TrimSpace(raw)
	if cleaned, ok := llm.ExtractJSON(raw); ok {
		var parsed struct {
			Answer string `json:"answer"`
		}
		if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil && parsed.Answer != "" {
			answer = parsed.Answer
		} else {
			log.Printf("rag: model returned malformed JSON, using raw text")
		}
	}
	return answer, texts, nil
}

// AnswerCompressed runs the advanced variant: retrieved chunks are first
// compressed by a summarization call, then the compressed context feeds the
// answer prompt. Sources carry similarity scores.
func (p *Pipeline) AnswerCompressed(ctx context.Context, question string) (string, []ScoredSource, error) {
	results, err := p.Retrieve(ctx, question)
	if err != nil {
		return "", nil, err
	}

	sources := make([]ScoredSource, 0, len(results))
	texts := make([]string, 0, len(results))
	for _, r := range results {
		sources = append(sources, ScoredSource{Text: r.Text, Score: SimilarityScore(r.Distance)})
		texts = append(texts, r.Text)
	}

	compressed, err := p.completer.Complete(ctx, llm.CompressPrompt(strings.Join(texts, "\n\n")), "")
	if err != nil {
		return "", nil, fmt.Errorf("rag: compress context: %w", err)
	}

	prompt := llm.RAGCompressedPrompt(strings.TrimSpace(compressed), question)
	answer, err := p.completer.Complete(ctx, prompt, "")
	if err != nil {
		return "", nil, err
	}
	return strings.TrimSpace(answer), sources, nil
}

func resultTexts(results []vectorstore.Result) []string {
	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Text)
	}
	return texts
}
