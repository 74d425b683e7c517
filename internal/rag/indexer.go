package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/faragon/langlab/internal/llm"
	"github.com/faragon/langlab/internal/vectorstore"
)

// Document is a unit of source material handed to the indexer: raw content
// plus a source label (file path or URL) carried into chunk metadata.
type Document struct {
	Content string
	Source  string
}

// IndexEvent describes indexing progress, broadcast to connected observers.
type IndexEvent struct {
	Type       string `json:"type"`
	Collection string `json:"collection"`
	Source     string `json:"source,omitempty"`
	Chunks     int    `json:"chunks,omitempty"`
	Added      int    `json:"added,omitempty"`
	Skipped    int    `json:"skipped,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Notifier receives indexing progress events. The websocket hub implements
// it; a nil notifier disables broadcasting.
type Notifier interface {
	Notify(event IndexEvent)
}

// Indexer ingests documents into one collection of the vector store. Chunk
// ids are content hashes, so re-indexing unchanged material is a no-op: the
// indexer only embeds and writes chunks the store has not seen.
type Indexer struct {
	store      vectorstore.Store
	embedder   llm.EmbeddingGenerator
	chunker    *Chunker
	collection string
	notifier   Notifier
}

// NewIndexer creates an indexer for the given collection.
func NewIndexer(store vectorstore.Store, embedder llm.EmbeddingGenerator, chunker *Chunker, collection string, notifier Notifier) *Indexer {
	return &Indexer{
		store:      store,
		embedder:   embedder,
		chunker:    chunker,
		collection: collection,
		notifier:   notifier,
	}
}

// Collection returns the name of the collection this indexer writes to.
func (ix *Indexer) Collection() string {
	return ix.collection
}

// ChunkID derives the stable identifier of a chunk from its exact text.
func ChunkID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// IndexDirectory loads every .txt and .md file under dir (recursively) and
// indexes them. A missing directory indexes nothing and is not an error.
func (ix *Indexer) IndexDirectory(ctx context.Context, dir string) (int, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		log.Printf("indexer: data directory %s does not exist, skipping", dir)
		return 0, nil
	}

	var docs []Document
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
		default:
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("indexer: read %s: %w", path, err)
		}
		docs = append(docs, Document{Content: string(content), Source: path})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return ix.IndexDocuments(ctx, docs)
}

// IndexURLs scrapes each URL and indexes the extracted text. A failed scrape
// is logged and skipped so one dead link does not abort the whole batch.
func (ix *Indexer) IndexURLs(ctx context.Context, urls []string) (int, error) {
	var docs []Document
	for _, url := range urls {
		text, err := ScrapeURL(ctx, url)
		if err != nil {
			log.Printf("indexer: skipping %s: %v", url, err)
			ix.notify(IndexEvent{Type: "scrape_failed", Collection: ix.collection, Source: url, Error: err.Error()})
			continue
		}
		docs = append(docs, Document{Content: text, Source: url})
	}
	return ix.IndexDocuments(ctx, docs)
}

// IndexDocuments chunks, deduplicates, embeds and stores the given documents.
// It returns the number of newly added chunks.
func (ix *Indexer) IndexDocuments(ctx context.Context, docs []Document) (int, error) {
	type candidate struct {
		id     string
		text   string
		source string
	}

	var candidates []candidate
	seen := make(map[string]bool)
	for _, doc := range docs {
		for _, chunk := range ix.chunker.Split(doc.Content) {
			id := ChunkID(chunk)
			if seen[id] {
				continue
			}
			seen[id] = true
			candidates = append(candidates, candidate{id: id, text: chunk, source: doc.Source})
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	existing, err := ix.store.Existing(ctx, ix.collection, ids)
	if err != nil {
		return 0, fmt.Errorf("indexer: check existing chunks: %w", err)
	}

	var entries []vectorstore.Entry
	for _, c := range candidates {
		if existing[c.id] {
			continue
		}
		vec, err := ix.embedder.Embed(ctx, c.text)
		if err != nil {
			return 0, fmt.Errorf("indexer: embed chunk from %s: %w", c.source, err)
		}
		entries = append(entries, vectorstore.Entry{
			ID:        c.id,
			Text:      c.text,
			Embedding: vec,
			Metadata:  map[string]string{"source": c.source},
		})
	}

	skipped := len(candidates) - len(entries)
	if len(entries) > 0 {
		if err := ix.store.Upsert(ctx, ix.collection, entries); err != nil {
			return 0, fmt.Errorf("indexer: store chunks: %w", err)
		}
	}

	log.Printf("indexer: collection %s: %d chunks added, %d already present", ix.collection, len(entries), skipped)
	ix.notify(IndexEvent{
		Type:       "indexed",
		Collection: ix.collection,
		Chunks:     len(candidates),
		Added:      len(entries),
		Skipped:    skipped,
	})
	return len(entries), nil
}

func (ix *Indexer) notify(event IndexEvent) {
	if ix.notifier != nil {
		ix.notifier.Notify(event)
	}
}
