// Package chromem provides a vector-store engine backed by chromem-go, a
// pure-Go embedded vector database. chromem has no filtered-listing API, so
// List returns ErrNotSupported; the memory service documents that it needs
// the sqlite or postgres engine.
package chromem

import (
	"context"
	"fmt"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/faragon/langlab/internal/vectorstore"
)

// Store implements vectorstore.Store (minus List) over chromem-go.
type Store struct {
	db          *chromemgo.DB
	mu          sync.Mutex
	collections map[string]*chromemgo.Collection
}

// New creates a persistent chromem store rooted at path. An empty path keeps
// everything in memory.
func New(path string) (*Store, error) {
	var (
		db  *chromemgo.DB
		err error
	)
	if path == "" {
		db = chromemgo.NewDB()
	} else {
		db, err = chromemgo.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("chromem: failed to open persistent db: %w", err)
		}
	}
	return &Store{
		db:          db,
		collections: make(map[string]*chromemgo.Collection),
	}, nil
}

// collection returns the named collection, creating it on first use.
// Embeddings are always provided by the caller, so no embedding func is set.
func (s *Store) collection(name string) (*chromemgo.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if col, ok := s.collections[name]; ok {
		return col, nil
	}
	col, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create collection %s: %v", vectorstore.ErrStoreUnavailable, name, err)
	}
	s.collections[name] = col
	return col, nil
}

// Upsert adds entries, skipping ids already present.
func (s *Store) Upsert(ctx context.Context, collection string, entries []vectorstore.Entry) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if _, err := col.GetByID(ctx, e.ID); err == nil {
			continue // insert-if-absent
		}
		doc := chromemgo.Document{
			ID:        e.ID,
			Content:   e.Text,
			Embedding: e.Embedding,
			Metadata:  e.Metadata,
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("%w: add document %s: %v", vectorstore.ErrStoreUnavailable, e.ID, err)
		}
	}
	return nil
}

// Query returns up to k entries by ascending distance. chromem reports
// cosine similarity; distance is 1 - similarity.
func (s *Store) Query(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]vectorstore.Result, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection size.
	if count := col.Count(); count < k {
		k = count
	}
	if k <= 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, vector, k, filter, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", vectorstore.ErrStoreUnavailable, err)
	}

	out := make([]vectorstore.Result, 0, len(results))
	for _, r := range results {
		out = append(out, vectorstore.Result{
			Entry: vectorstore.Entry{
				ID:        r.ID,
				Text:      r.Content,
				Embedding: r.Embedding,
				Metadata:  r.Metadata,
			},
			Distance: 1 - r.Similarity,
		})
	}
	return out, nil
}

// List is not supported: chromem-go exposes no filtered listing.
func (s *Store) List(ctx context.Context, collection string, filter map[string]string, limit int) ([]vectorstore.Entry, error) {
	return nil, fmt.Errorf("%w: chromem cannot list by filter", vectorstore.ErrNotSupported)
}

// Existing reports which ids are already stored.
func (s *Store) Existing(ctx context.Context, collection string, ids []string) (map[string]bool, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, err := col.GetByID(ctx, id); err == nil {
			present[id] = true
		}
	}
	return present, nil
}

// Delete removes the entries with the given ids.
func (s *Store) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("%w: delete: %v", vectorstore.ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteWhere removes every entry whose metadata matches filter.
func (s *Store) DeleteWhere(ctx context.Context, collection string, filter map[string]string) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, filter, nil); err != nil {
		return fmt.Errorf("%w: delete where: %v", vectorstore.ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases resources. chromem persists on write, nothing to flush.
func (s *Store) Close() error {
	return nil
}

// Compile-time assertion.
var _ vectorstore.Store = (*Store)(nil)
