// Package sqlite provides the default vector-store engine backed by SQLite.
// Embeddings are serialized as little-endian float32 BLOBs and similarity
// search is a brute-force L2 scan, which is plenty for collections of
// teaching-repo size.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/faragon/langlab/internal/vectorstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	text       TEXT NOT NULL,
	embedding  BLOB,
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_entries_collection ON entries(collection);
`

// Store implements vectorstore.Store using a single SQLite database file.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database file at path and applies the schema.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// Serialize writers; the store is a process-wide shared resource.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Upsert inserts entries, keeping existing rows on id collision.
func (s *Store) Upsert(ctx context.Context, collection string, entries []vectorstore.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", vectorstore.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO entries (collection, id, text, embedding, metadata)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", vectorstore.ErrStoreUnavailable, err)
	}
	defer stmt.Close()

	for _, e := range entries {
		meta, err := json.Marshal(orEmpty(e.Metadata))
		if err != nil {
			return fmt.Errorf("sqlite: failed to marshal metadata for %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, collection, e.ID, e.Text, serializeEmbedding(e.Embedding), string(meta)); err != nil {
			return fmt.Errorf("%w: insert %s: %v", vectorstore.ErrStoreUnavailable, e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", vectorstore.ErrStoreUnavailable, err)
	}
	return nil
}

// Query brute-force scans the collection, filters by metadata and returns
// the k nearest entries by L2 distance.
func (s *Store) Query(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]vectorstore.Result, error) {
	if k <= 0 {
		return nil, nil
	}

	entries, err := s.scan(ctx, collection, filter, 0)
	if err != nil {
		return nil, err
	}

	results := make([]vectorstore.Result, 0, len(entries))
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			continue
		}
		results = append(results, vectorstore.Result{
			Entry:    e,
			Distance: l2Distance(vector, e.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// List returns up to limit matching entries in insertion (rowid) order.
func (s *Store) List(ctx context.Context, collection string, filter map[string]string, limit int) ([]vectorstore.Entry, error) {
	return s.scan(ctx, collection, filter, limit)
}

// Existing reports which ids are already stored in the collection.
func (s *Store) Existing(ctx context.Context, collection string, ids []string) (map[string]bool, error) {
	present := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return present, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM entries WHERE collection = ? AND id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("%w: existing: %v", vectorstore.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan id: %v", vectorstore.ErrStoreUnavailable, err)
		}
		present[id] = true
	}
	return present, rows.Err()
}

// Delete removes the entries with the given ids.
func (s *Store) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM entries WHERE collection = ? AND id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("%w: delete: %v", vectorstore.ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteWhere removes every entry whose metadata matches filter. Metadata is
// stored as JSON text, so matching happens application-side.
func (s *Store) DeleteWhere(ctx context.Context, collection string, filter map[string]string) error {
	entries, err := s.scan(ctx, collection, filter, 0)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return s.Delete(ctx, collection, ids)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// scan loads entries for a collection in insertion order, filtering by
// metadata application-side. limit <= 0 means no limit.
func (s *Store) scan(ctx context.Context, collection string, filter map[string]string, limit int) ([]vectorstore.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, text, embedding, metadata FROM entries WHERE collection = ? ORDER BY rowid ASC", collection)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", vectorstore.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var entries []vectorstore.Entry
	for rows.Next() {
		var (
			e        vectorstore.Entry
			blob     []byte
			metaJSON string
		)
		if err := rows.Scan(&e.ID, &e.Text, &blob, &metaJSON); err != nil {
			return nil, fmt.Errorf("%w: scan row: %v", vectorstore.ErrStoreUnavailable, err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &e.Metadata); err != nil {
			return nil, fmt.Errorf("sqlite: corrupt metadata for %s: %w", e.ID, err)
		}
		if !vectorstore.MatchesFilter(e.Metadata, filter) {
			continue
		}
		e.Embedding = deserializeEmbedding(blob)
		entries = append(entries, e)
		if limit > 0 && len(entries) >= limit {
			break
		}
	}
	return entries, rows.Err()
}

// serializeEmbedding converts a float32 slice to little-endian bytes.
func serializeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeEmbedding converts little-endian bytes back to a float32 slice.
func deserializeEmbedding(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	embedding := make([]float32, len(buf)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return embedding
}

// l2Distance computes the Euclidean distance between two vectors. Length
// mismatches compare only the shared prefix; embedding models are fixed-
// dimension so this only matters for malformed input.
func l2Distance(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// Compile-time assertion.
var _ vectorstore.Store = (*Store)(nil)
