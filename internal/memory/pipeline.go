package memory

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/faragon/langlab/internal/llm"
	"github.com/faragon/langlab/internal/vectorstore"
)

// Degradation reasons reported in Result.Degraded. Each names a best-effort
// step that failed without aborting the turn.
const (
	DegradedMemoryWrite = "memory_write"
	DegradedMemoryRead  = "memory_read"
	DegradedAnswer      = "answer"
)

// Meta keys threaded through the pipeline state.
const (
	MetaLastUserQuestion     = "last_user_question"
	MetaLastAssistantMessage = "last_assistant_message"
)

// answerFallback is returned when both the primary and fallback answer calls
// fail; the turn still completes with degraded quality.
const answerFallback = "Sorry, I could not generate an answer right now."

// summaryWindow bounds how many recent turns feed the rolling summary, and
// recallWindow how many stored fragments feed the answer prompt.
const (
	summaryWindow = 10
	recallWindow  = 10
	recallFetch   = 100
)

// Completer is the completion surface the pipeline needs from the gateway.
type Completer interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
}

// Result is a completed pipeline run: the final state plus the names of any
// best-effort steps that failed along the way.
type Result struct {
	State    State
	Degraded []string
}

// MemoryUsed lists the state components that contributed to the answer.
func (r Result) MemoryUsed() []string {
	used := []string{}
	if r.State.Summary != "" {
		used = append(used, "summary")
	}
	if len(r.State.Messages) > 0 {
		used = append(used, "buffer")
	}
	return used
}

type stage func(ctx context.Context, s State) (State, []string, error)

// Pipeline runs one conversational turn as a fixed sequence of stages:
// buffer upkeep, rolling summarization, then memory write/recall and answer
// generation. Memory persistence is best effort; answer generation always
// produces something.
type Pipeline struct {
	completer  Completer
	embedder   llm.EmbeddingGenerator
	store      vectorstore.Store
	collection string
	stages     []stage
}

// NewPipeline wires a pipeline over its collaborators. collection names the
// vector-store collection holding per-user memory fragments.
func NewPipeline(completer Completer, embedder llm.EmbeddingGenerator, store vectorstore.Store, collection string) *Pipeline {
	p := &Pipeline{
		completer:  completer,
		embedder:   embedder,
		store:      store,
		collection: collection,
	}
	p.stages = []stage{p.ensureBuffer, p.summarize, p.recallRespond}
	return p
}

// Run normalizes raw input state and executes the stages in order. Stage
// errors abort the run; best-effort failures accumulate in Result.Degraded.
func (p *Pipeline) Run(ctx context.Context, raw any) (Result, error) {
	s := Normalize(raw).Clone()

	var degraded []string
	for _, st := range p.stages {
		var (
			d   []string
			err error
		)
		s, d, err = st(ctx, s)
		if err != nil {
			return Result{}, err
		}
		degraded = append(degraded, d...)
	}
	return Result{State: s, Degraded: degraded}, nil
}

// ensureBuffer guarantees the message buffer and meta map exist so later
// stages can append without nil checks.
func (p *Pipeline) ensureBuffer(ctx context.Context, s State) (State, []string, error) {
	if s.Messages == nil {
		s.Messages = []Message{}
	}
	if s.Meta == nil {
		s.Meta = map[string]string{}
	}
	return s, nil, nil
}

// summarize rebuilds the rolling summary from the most recent turns. It is a
// plain transcript digest, no model call, so it never degrades.
func (p *Pipeline) summarize(ctx context.Context, s State) (State, []string, error) {
	if len(s.Messages) == 0 {
		return s, nil, nil
	}

	recent := s.Messages
	if len(recent) > summaryWindow {
		recent = recent[len(recent)-summaryWindow:]
	}
	lines := make([]string, 0, len(recent))
	for _, m := range recent {
		lines = append(lines, m.Role+": "+m.Content)
	}
	s.Summary = strings.Join(lines, "\n")
	return s, nil, nil
}

// recallRespond is the heart of the turn: distill the user's last message
// into a memory fragment, persist it, recall stored fragments, and answer
// with memory in context. Persistence and recall failures degrade; the
// answer itself falls back to an apology only if the gateway fails twice.
func (p *Pipeline) recallRespond(ctx context.Context, s State) (State, []string, error) {
	var degraded []string
	lastUser := s.LastUserMessage()

	if s.UserID != "" && lastUser != "" {
		if err := p.storeMemory(ctx, s.UserID, lastUser); err != nil {
			log.Printf("memory: failed to store fragment for %s: %v", s.UserID, err)
			degraded = append(degraded, DegradedMemoryWrite)
		}
	}

	memoryText := ""
	if s.UserID != "" {
		recalled, err := p.recall(ctx, s.UserID)
		if err != nil {
			log.Printf("memory: failed to recall fragments for %s: %v", s.UserID, err)
			degraded = append(degraded, DegradedMemoryRead)
		} else {
			memoryText = recalled
		}
	}

	question := s.Meta[MetaLastUserQuestion]
	if question == "" {
		question = lastUser
	}

	answer, err := p.completer.Complete(ctx, llm.MemoryAnswerPrompt(memoryText, question), "")
	if err != nil {
		log.Printf("memory: answer generation failed for %s: %v", s.UserID, err)
		answer = answerFallback
		degraded = append(degraded, DegradedAnswer)
	}
	answer = strings.TrimSpace(answer)

	s.Messages = append(s.Messages, Message{Role: RoleAssistant, Content: answer})
	s.Meta[MetaLastAssistantMessage] = answer
	if question != "" {
		s.Meta[MetaLastUserQuestion] = question
	}
	return s, degraded, nil
}

// storeMemory asks the model to distill input into a memory fragment and
// persists it when the cleaned result is informative.
func (p *Pipeline) storeMemory(ctx context.Context, userID, input string) error {
	raw, err := p.completer.Complete(ctx, llm.MemoryExtractionPrompt(input), "")
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	cleaned := Clean(raw)
	if cleaned == "" {
		return nil
	}

	vec, err := p.embedder.Embed(ctx, cleaned)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	id := userID + "_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	entry := vectorstore.Entry{
		ID:        id,
		Text:      cleaned,
		Embedding: vec,
		Metadata:  map[string]string{"user_id": userID},
	}
	if err := p.store.Upsert(ctx, p.collection, []vectorstore.Entry{entry}); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

// recall bulk-fetches the user's fragments and joins the most recent ones
// into the memory block for the answer prompt.
func (p *Pipeline) recall(ctx context.Context, userID string) (string, error) {
	entries, err := p.store.List(ctx, p.collection, map[string]string{"user_id": userID}, recallFetch)
	if err != nil {
		return "", err
	}
	if len(entries) > recallWindow {
		entries = entries[len(entries)-recallWindow:]
	}
	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		texts = append(texts, e.Text)
	}
	return strings.Join(texts, "\n"), nil
}

// Fragments returns every stored memory fragment for a user, in insertion
// order, up to the bulk-fetch bound.
func (p *Pipeline) Fragments(ctx context.Context, userID string) ([]string, error) {
	entries, err := p.store.List(ctx, p.collection, map[string]string{"user_id": userID}, recallFetch)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		texts = append(texts, e.Text)
	}
	return texts, nil
}

// Forget deletes every stored fragment for a user.
func (p *Pipeline) Forget(ctx context.Context, userID string) error {
	return p.store.DeleteWhere(ctx, p.collection, map[string]string{"user_id": userID})
}
