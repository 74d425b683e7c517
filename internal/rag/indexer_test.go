package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlitestore "github.com/faragon/langlab/internal/vectorstore/sqlite"
)

// captureNotifier records broadcast events.
type captureNotifier struct {
	events []IndexEvent
}

func (c *captureNotifier) Notify(event IndexEvent) {
	c.events = append(c.events, event)
}

func newTestStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	store, err := sqlitestore.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestIndexer_ChunkIDIsStable(t *testing.T) {
	assert.Equal(t, ChunkID("hello"), ChunkID("hello"))
	assert.NotEqual(t, ChunkID("hello"), ChunkID("hello!"))
	assert.Len(t, ChunkID("hello"), 64, "sha256 hex digest")
}

func TestIndexer_IndexDocumentsIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ix := NewIndexer(store, &fakeEmbedder{}, NewChunker(100, 0), "docs", nil)

	docs := []Document{
		{Content: "First paragraph.\n\nSecond paragraph.", Source: "a.txt"},
	}

	added, err := ix.IndexDocuments(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	// Re-indexing identical content is a strict no-op.
	added, err = ix.IndexDocuments(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	entries, err := store.List(context.Background(), "docs", nil, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestIndexer_OnlyNewChunksAreAdded(t *testing.T) {
	store := newTestStore(t)
	ix := NewIndexer(store, &fakeEmbedder{}, NewChunker(100, 0), "docs", nil)

	_, err := ix.IndexDocuments(context.Background(), []Document{
		{Content: "Shared paragraph.", Source: "a.txt"},
	})
	require.NoError(t, err)

	added, err := ix.IndexDocuments(context.Background(), []Document{
		{Content: "Shared paragraph.\n\nBrand new paragraph.", Source: "b.txt"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added, "only the unseen chunk is embedded and stored")
}

func TestIndexer_IndexDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("Markdown notes."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plain.txt"), []byte("Plain text."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{0x89, 0x50}, 0o644))

	store := newTestStore(t)
	ix := NewIndexer(store, &fakeEmbedder{}, NewChunker(100, 0), "docs", nil)

	added, err := ix.IndexDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, added, "only .txt and .md files are indexed")

	entries, err := store.List(context.Background(), "docs", nil, 0)
	require.NoError(t, err)
	sources := make(map[string]bool)
	for _, e := range entries {
		sources[filepath.Base(e.Metadata["source"])] = true
	}
	assert.True(t, sources["notes.md"])
	assert.True(t, sources["plain.txt"])
}

func TestIndexer_MissingDirectoryIsNotAnError(t *testing.T) {
	store := newTestStore(t)
	ix := NewIndexer(store, &fakeEmbedder{}, NewChunker(100, 0), "docs", nil)

	added, err := ix.IndexDirectory(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Zero(t, added)
}

func TestIndexer_NotifiesProgress(t *testing.T) {
	store := newTestStore(t)
	notifier := &captureNotifier{}
	ix := NewIndexer(store, &fakeEmbedder{}, NewChunker(100, 0), "docs", notifier)

	_, err := ix.IndexDocuments(context.Background(), []Document{
		{Content: "Some content.", Source: "a.txt"},
	})
	require.NoError(t, err)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "indexed", notifier.events[0].Type)
	assert.Equal(t, "docs", notifier.events[0].Collection)
	assert.Equal(t, 1, notifier.events[0].Added)
}
