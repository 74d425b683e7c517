package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faragon/langlab/internal/vectorstore"
	"github.com/faragon/langlab/internal/vectorstore/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func entry(id, text string, vec []float32, meta map[string]string) vectorstore.Entry {
	return vectorstore.Entry{ID: id, Text: text, Embedding: vec, Metadata: meta}
}

func TestStore_UpsertKeepsExistingOnCollision(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "docs", []vectorstore.Entry{
		entry("id1", "original", []float32{1}, nil),
	}))
	require.NoError(t, store.Upsert(ctx, "docs", []vectorstore.Entry{
		entry("id1", "replacement", []float32{2}, nil),
	}))

	entries, err := store.List(ctx, "docs", nil, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "original", entries[0].Text, "insert-if-absent keeps the first write")
}

func TestStore_ListPreservesInsertionOrder(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, store.Upsert(ctx, "docs", []vectorstore.Entry{
			entry(id, "text-"+id, []float32{1}, nil),
		}))
	}

	entries, err := store.List(ctx, "docs", nil, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "c", entries[0].ID)
	assert.Equal(t, "a", entries[1].ID)
	assert.Equal(t, "b", entries[2].ID)
}

func TestStore_ListFiltersByMetadata(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "memory", []vectorstore.Entry{
		entry("a1", "alice fact", []float32{1}, map[string]string{"user_id": "alice"}),
		entry("b1", "bob fact", []float32{1}, map[string]string{"user_id": "bob"}),
		entry("a2", "alice fact 2", []float32{1}, map[string]string{"user_id": "alice"}),
	}))

	entries, err := store.List(ctx, "memory", map[string]string{"user_id": "alice"}, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "alice", e.Metadata["user_id"])
	}
}

func TestStore_ListRespectsLimit(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	var entries []vectorstore.Entry
	for _, id := range []string{"1", "2", "3", "4"} {
		entries = append(entries, entry(id, "t"+id, []float32{1}, nil))
	}
	require.NoError(t, store.Upsert(ctx, "docs", entries))

	got, err := store.List(ctx, "docs", nil, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestStore_QueryOrdersByDistance(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "docs", []vectorstore.Entry{
		entry("far", "far", []float32{10, 0}, nil),
		entry("near", "near", []float32{1, 0}, nil),
		entry("mid", "mid", []float32{5, 0}, nil),
	}))

	results, err := store.Query(ctx, "docs", []float32{0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].ID)
	assert.Equal(t, "mid", results[1].ID)
	assert.Less(t, results[0].Distance, results[1].Distance)
}

func TestStore_QueryHonorsFilter(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "memory", []vectorstore.Entry{
		entry("a1", "alice", []float32{1}, map[string]string{"user_id": "alice"}),
		entry("b1", "bob", []float32{1}, map[string]string{"user_id": "bob"}),
	}))

	results, err := store.Query(ctx, "memory", []float32{1}, 10, map[string]string{"user_id": "bob"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b1", results[0].ID)
}

func TestStore_EmbeddingRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	vec := []float32{0.1, -2.5, 3.75, 0}
	require.NoError(t, store.Upsert(ctx, "docs", []vectorstore.Entry{
		entry("id1", "text", vec, nil),
	}))

	entries, err := store.List(ctx, "docs", nil, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, vec, entries[0].Embedding)
}

func TestStore_Existing(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "docs", []vectorstore.Entry{
		entry("have", "x", []float32{1}, nil),
	}))

	present, err := store.Existing(ctx, "docs", []string{"have", "missing"})
	require.NoError(t, err)
	assert.True(t, present["have"])
	assert.False(t, present["missing"])

	empty, err := store.Existing(ctx, "docs", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_DeleteWhere(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "memory", []vectorstore.Entry{
		entry("a1", "alice", []float32{1}, map[string]string{"user_id": "alice"}),
		entry("a2", "alice 2", []float32{1}, map[string]string{"user_id": "alice"}),
		entry("b1", "bob", []float32{1}, map[string]string{"user_id": "bob"}),
	}))

	require.NoError(t, store.DeleteWhere(ctx, "memory", map[string]string{"user_id": "alice"}))

	remaining, err := store.List(ctx, "memory", nil, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "b1", remaining[0].ID)
}

func TestStore_CollectionsAreIsolated(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "a3_docs", []vectorstore.Entry{
		entry("id1", "doc", []float32{1}, nil),
	}))

	entries, err := store.List(ctx, "a6_memory", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
