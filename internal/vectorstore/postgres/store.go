// Package postgres provides a PostgreSQL vector-store engine. When the
// pgvector extension is available, similarity queries run server-side with
// the <-> operator; otherwise the engine degrades to a brute-force scan over
// raw embeddings, so the store keeps working on vanilla PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/faragon/langlab/internal/vectorstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	text       TEXT NOT NULL,
	embedding_raw BYTEA,
	metadata   JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ DEFAULT NOW(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_entries_collection ON entries(collection);
`

const migrationPgvector = `
ALTER TABLE entries ADD COLUMN IF NOT EXISTS embedding vector;
`

// Store implements vectorstore.Store using PostgreSQL.
type Store struct {
	db                *sql.DB
	pgvectorAvailable bool
}

// New opens a connection with the given DSN and applies the schema.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping: %v", vectorstore.ErrStoreUnavailable, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to apply schema: %w", err)
	}

	s := &Store{db: db}

	// pgvector may be missing on the server; degrade to brute-force scans.
	if _, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		log.Printf("postgres: pgvector extension not available (falling back to brute-force search): %v", err)
	} else if _, err := db.Exec(migrationPgvector); err != nil {
		log.Printf("postgres: failed to add vector column (falling back to brute-force search): %v", err)
	} else {
		s.pgvectorAvailable = true
	}

	return s, nil
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

	for _, e := range entries {
		meta, err := json.Marshal(orEmpty(e.Metadata))
		if err != nil {
			return fmt.Errorf("postgres: failed to marshal metadata for %s: %w", e.ID, err)
		}

		if s.pgvectorAvailable && len(e.Embedding) > 0 {
			vec := pgvector.NewVector(e.Embedding)
			_, err = tx.ExecContext(ctx, `
				INSERT INTO entries (collection, id, text, embedding_raw, embedding, metadata)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (collection, id) DO NOTHING
			`, collection, e.ID, e.Text, serializeEmbedding(e.Embedding), vec, string(meta))
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO entries (collection, id, text, embedding_raw, metadata)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (collection, id) DO NOTHING
			`, collection, e.ID, e.Text, serializeEmbedding(e.Embedding), string(meta))
		}
		if err != nil {
			return fmt.Errorf("%w: insert %s: %v", vectorstore.ErrStoreUnavailable, e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", vectorstore.ErrStoreUnavailable, err)
	}
	return nil
}

// Query returns the k nearest entries by L2 distance, server-side when
// pgvector is available.
func (s *Store) Query(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]vectorstore.Result, error) {
	if k <= 0 {
		return nil, nil
	}

	if s.pgvectorAvailable {
		return s.queryPgvector(ctx, collection, vector, k, filter)
	}
	return s.queryBruteForce(ctx, collection, vector, k, filter)
}

func (s *Store) queryPgvector(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]vectorstore.Result, error) {
	filterJSON, err := json.Marshal(orEmpty(filter))
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to marshal filter: %w", err)
	}

	vec := pgvector.NewVector(vector)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, embedding_raw, metadata, embedding <-> $1 AS distance
		FROM entries
		WHERE collection = $2 AND embedding IS NOT NULL AND metadata @> $3::jsonb
		ORDER BY distance ASC
		LIMIT $4
	`, vec, collection, string(filterJSON), k)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", vectorstore.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var results []vectorstore.Result
	for rows.Next() {
		var (
			r        vectorstore.Result
			blob     []byte
			metaJSON string
			distance float64
		)
		if err := rows.Scan(&r.ID, &r.Text, &blob, &metaJSON, &distance); err != nil {
			return nil, fmt.Errorf("%w: scan row: %v", vectorstore.ErrStoreUnavailable, err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &r.Metadata); err != nil {
			return nil, fmt.Errorf("postgres: corrupt metadata for %s: %w", r.ID, err)
		}
		r.Embedding = deserializeEmbedding(blob)
		r.Distance = float32(distance)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) queryBruteForce(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]vectorstore.Result, error) {
	entries, err := s.List(ctx, collection, filter, 0)
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

// List returns up to limit matching entries in insertion order.
func (s *Store) List(ctx context.Context, collection string, filter map[string]string, limit int) ([]vectorstore.Entry, error) {
	filterJSON, err := json.Marshal(orEmpty(filter))
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to marshal filter: %w", err)
	}

	query := `
		SELECT id, text, embedding_raw, metadata
		FROM entries
		WHERE collection = $1 AND metadata @> $2::jsonb
		ORDER BY created_at ASC, id ASC
	`
	args := []interface{}{collection, string(filterJSON)}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", vectorstore.ErrStoreUnavailable, err)
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
			return nil, fmt.Errorf("postgres: corrupt metadata for %s: %w", e.ID, err)
		}
		e.Embedding = deserializeEmbedding(blob)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Existing reports which ids are already stored in the collection.
func (s *Store) Existing(ctx context.Context, collection string, ids []string) (map[string]bool, error) {
	present := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return present, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM entries WHERE collection = $1 AND id = ANY($2)",
		collection, pq.Array(ids))
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
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM entries WHERE collection = $1 AND id = ANY($2)",
		collection, pq.Array(ids)); err != nil {
		return fmt.Errorf("%w: delete: %v", vectorstore.ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteWhere removes every entry whose metadata matches filter.
func (s *Store) DeleteWhere(ctx context.Context, collection string, filter map[string]string) error {
	filterJSON, err := json.Marshal(orEmpty(filter))
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal filter: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM entries WHERE collection = $1 AND metadata @> $2::jsonb",
		collection, string(filterJSON)); err != nil {
		return fmt.Errorf("%w: delete where: %v", vectorstore.ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

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
