package rag

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faragon/langlab/internal/vectorstore"
)

// memStore is an in-memory vectorstore.Store for pipeline tests.
type memStore struct {
	entries map[string][]vectorstore.Entry // keyed by collection
	err     error
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string][]vectorstore.Entry)}
}

func (m *memStore) Upsert(ctx context.Context, collection string, entries []vectorstore.Entry) error {
	if m.err != nil {
		return m.err
	}
	for _, e := range entries {
		exists := false
		for _, have := range m.entries[collection] {
			if have.ID == e.ID {
				exists = true
				break
			}
		}
		if !exists {
			m.entries[collection] = append(m.entries[collection], e)
		}
	}
	return nil
}

func (m *memStore) Query(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]vectorstore.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	var results []vectorstore.Result
	for _, e := range m.entries[collection] {
		if !vectorstore.MatchesFilter(e.Metadata, filter) {
			continue
		}
		var d float32
		for i := 0; i < len(vector) && i < len(e.Embedding); i++ {
			diff := vector[i] - e.Embedding[i]
			d += diff * diff
		}
		results = append(results, vectorstore.Result{Entry: e, Distance: d})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *memStore) List(ctx context.Context, collection string, filter map[string]string, limit int) ([]vectorstore.Entry, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []vectorstore.Entry
	for _, e := range m.entries[collection] {
		if vectorstore.MatchesFilter(e.Metadata, filter) {
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) Existing(ctx context.Context, collection string, ids []string) (map[string]bool, error) {
	if m.err != nil {
		return nil, m.err
	}
	present := make(map[string]bool)
	for _, e := range m.entries[collection] {
		for _, id := range ids {
			if e.ID == id {
				present[id] = true
			}
		}
	}
	return present, nil
}

func (m *memStore) Delete(ctx context.Context, collection string, ids []string) error {
	var kept []vectorstore.Entry
	for _, e := range m.entries[collection] {
		drop := false
		for _, id := range ids {
			if e.ID == id {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, e)
		}
	}
	m.entries[collection] = kept
	return nil
}

func (m *memStore) DeleteWhere(ctx context.Context, collection string, filter map[string]string) error {
	var kept []vectorstore.Entry
	for _, e := range m.entries[collection] {
		if !vectorstore.MatchesFilter(e.Metadata, filter) {
			kept = append(kept, e)
		}
	}
	m.entries[collection] = kept
	return nil
}

func (m *memStore) Close() error { return nil }

// fakeEmbedder maps text to a one-dimensional vector from its length, which
// makes distances deterministic.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text))}, nil
}

func (f *fakeEmbedder) GetModel() string { return "fake-embedder" }

// scriptedCompleter returns queued responses in order.
type scriptedCompleter struct {
	responses []string
	prompts   []string
	err       error
}

func (s *scriptedCompleter) Complete(ctx context.Context, prompt, model string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", errors.New("no scripted response left")
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func seedCollection(t *testing.T, store *memStore, collection string, texts ...string) {
	t.Helper()
	embedder := &fakeEmbedder{}
	entries := make([]vectorstore.Entry, 0, len(texts))
	for _, text := range texts {
		vec, err := embedder.Embed(context.Background(), text)
		require.NoError(t, err)
		entries = append(entries, vectorstore.Entry{ID: ChunkID(text), Text: text, Embedding: vec})
	}
	require.NoError(t, store.Upsert(context.Background(), collection, entries))
}

func TestSimilarityScore(t *testing.T) {
	assert.Equal(t, 1.0, SimilarityScore(0), "identical vectors score 1.0")
	assert.Equal(t, 0.5, SimilarityScore(1))
	assert.Equal(t, 0.0099, SimilarityScore(100), "rounded to four decimals")

	// Monotonic: closer is never scored lower.
	assert.Greater(t, SimilarityScore(0.5), SimilarityScore(2.0))

	// Bounded (0, 1].
	for _, d := range []float32{0, 0.1, 1, 10, 1000} {
		s := SimilarityScore(d)
		assert.Greater(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}

func TestPipeline_AnswerBasicReturnsRetrievedSources(t *testing.T) {
	store := newMemStore()
	seedCollection(t, store, "docs", "short", "medium text", "quite a bit longer text")

	completer := &scriptedCompleter{responses: []string{"  grounded answer  "}}
	p := NewPipeline(store, &fakeEmbedder{}, completer, "docs", 2)

	answer, sources, err := p.AnswerBasic(context.Background(), "size?")
	require.NoError(t, err)
	assert.Equal(t, "grounded answer", answer)
	assert.Len(t, sources, 2, "topK bounds the sources")

	// The prompt carries the retrieved context and the question.
	require.Len(t, completer.prompts, 1)
	assert.Contains(t, completer.prompts[0], sources[0])
	assert.Contains(t, completer.prompts[0], "size?")
}

func TestPipeline_AnswerJSONParsesEnvelope(t *testing.T) {
	store := newMemStore()
	seedCollection(t, store, "docs", "alpha", "beta")

	completer := &scriptedCompleter{responses: []string{"```json\n{\"answer\": \"from json\", \"sources\": [\"ignored\"]}\n```"}}
	p := NewPipeline(store, &fakeEmbedder{}, completer, "docs", 3)

	answer, sources, err := p.AnswerJSON(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "from json", answer)
	// Sources are the retrieved chunks, not whatever the model claimed.
	assert.ElementsMatch(t, []string{"alpha", "beta"}, sources)
}

func TestPipeline_AnswerJSONFallsBackToRawText(t *testing.T) {
	store := newMemStore()
	seedCollection(t, store, "docs", "alpha")

	completer := &scriptedCompleter{responses: []string{"Plain prose, no JSON here."}}
	p := NewPipeline(store, &fakeEmbedder{}, completer, "docs", 3)

	answer, _, err := p.AnswerJSON(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "Plain prose, no JSON here.", answer)
}

func TestPipeline_AnswerCompressedScoresSources(t *testing.T) {
	store := newMemStore()
	seedCollection(t, store, "docs", "aa", "aaaa")

	completer := &scriptedCompleter{responses: []string{"compressed context", "final answer"}}
	p := NewPipeline(store, &fakeEmbedder{}, completer, "docs", 2)

	answer, sources, err := p.AnswerCompressed(context.Background(), "aa")
	require.NoError(t, err)
	assert.Equal(t, "final answer", answer)
	require.Len(t, sources, 2)

	// Ordered by ascending distance, so scores never increase.
	assert.GreaterOrEqual(t, sources[0].Score, sources[1].Score)
	for _, s := range sources {
		assert.Greater(t, s.Score, 0.0)
		assert.LessOrEqual(t, s.Score, 1.0)
	}

	// Two model calls: compression then answer; the answer prompt carries
	// the compressed context.
	require.Len(t, completer.prompts, 2)
	assert.Contains(t, completer.prompts[1], "compressed context")
}

func TestPipeline_AnswerCompressedPropagatesCompressionFailure(t *testing.T) {
	store := newMemStore()
	seedCollection(t, store, "docs", "alpha")

	completer := &scriptedCompleter{err: errors.New("model down")}
	p := NewPipeline(store, &fakeEmbedder{}, completer, "docs", 3)

	_, _, err := p.AnswerCompressed(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "compress"))
}

func TestPipeline_EmbedFailureSurfaces(t *testing.T) {
	p := NewPipeline(newMemStore(), &fakeEmbedder{err: errors.New("no embedder")}, &scriptedCompleter{}, "docs", 3)
	_, _, err := p.AnswerBasic(context.Background(), "q")
	assert.Error(t, err)
}
