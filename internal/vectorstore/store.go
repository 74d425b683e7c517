// Package vectorstore defines the persistent vector-collection contract used
// by the retrieval pipelines and the memory service, plus engine selection.
package vectorstore

import (
	"context"
	"errors"
)

var (
	// ErrStoreUnavailable indicates a persistence backend failure. Read
	// paths in the memory pipeline degrade on it; explicit indexing and
	// query endpoints propagate it.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrNotSupported indicates the selected engine does not implement an
	// operation (e.g. filtered listing on chromem).
	ErrNotSupported = errors.New("operation not supported by this store engine")
)

// Entry is a persisted record in a named collection.
type Entry struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  map[string]string
}

// Result is an Entry returned from a similarity query, with its distance to
// the query vector. Smaller distance means more similar.
type Result struct {
	Entry
	Distance float32
}

// Store is a persistent vector collection keyed by text id.
//
// Upsert uses insert-if-absent semantics: an id collision keeps the existing
// entry, so re-indexing identical content is a strict no-op. Callers must not
// assume a collection exists until the first successful write.
type Store interface {
	// Upsert adds entries to the collection, skipping ids already present.
	Upsert(ctx context.Context, collection string, entries []Entry) error

	// Query returns up to k entries ordered by ascending distance to vector.
	// filter restricts results to entries whose metadata contains every
	// given key/value pair.
	Query(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]Result, error)

	// List bulk-fetches up to limit entries matching filter in insertion
	// order, without similarity ranking.
	List(ctx context.Context, collection string, filter map[string]string, limit int) ([]Entry, error)

	// Existing reports which of the given ids are already stored.
	Existing(ctx context.Context, collection string, ids []string) (map[string]bool, error)

	// Delete removes the entries with the given ids.
	Delete(ctx context.Context, collection string, ids []string) error

	// DeleteWhere removes every entry whose metadata matches filter.
	DeleteWhere(ctx context.Context, collection string, filter map[string]string) error

	Close() error
}

// MatchesFilter reports whether metadata contains every key/value pair of
// filter. A nil or empty filter matches everything.
func MatchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}
