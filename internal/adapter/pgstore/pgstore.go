package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"lawrag/internal/domain"
	"lawrag/internal/port"
)

// Store is the pgvector-backed chunk store. Nearest-neighbor ordering is
// delegated to the database via the cosine distance operator; distances
// are converted to similarities with 1 - distance before leaving this
// package (range -1..1, kept as-is).
type Store struct {
	db       *sql.DB
	table    string
	embedder port.Embedder
}

// New opens a connection pool and returns a store instance.
func New(databaseURL, table string, embedder port.Embedder) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if table == "" {
		table = "document_embeddings"
	}

	return &Store{db: db, table: table, embedder: embedder}, nil
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureReady enables the pgvector extension and creates the chunk table
// if needed. Idempotent; call once per deployment lifetime.
func (s *Store) EnsureReady(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("enable pgvector extension: %w", err)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id bigserial PRIMARY KEY,
		content text NOT NULL,
		embedding vector(%d) NOT NULL,
		source text NOT NULL DEFAULT 'unknown',
		section text,
		title text,
		act_type text,
		extra_data jsonb,
		created_at timestamptz NOT NULL DEFAULT now()
	)`, s.table, s.embedder.Dimension())

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// BuildHNSWIndex creates a graph-based ANN index over the embedding
// column. m bounds per-node connectivity, efConstruction the build-time
// search breadth; larger values trade build cost and memory for recall.
// Safe to call when the index already exists.
func (s *Store) BuildHNSWIndex(ctx context.Context, m, efConstruction int) error {
	if m <= 0 {
		m = 16
	}
	if efConstruction <= 0 {
		efConstruction = 64
	}

	// WITH options cannot be bound parameters; both values are ints.
	stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_hnsw_idx
		ON %s USING hnsw (embedding vector_cosine_ops)
		WITH (m = %d, ef_construction = %d)`, s.table, s.table, m, efConstruction)

	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create hnsw index: %w", err)
	}
	return nil
}

// InsertBatch embeds and inserts records, one transaction per batch.
// A failure rolls back only the current batch; the returned count covers
// the batches that committed.
func (s *Store) InsertBatch(ctx context.Context, records []domain.Record, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	inserted := 0
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		n, err := s.insertOne(ctx, batch)
		inserted += n
		if err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

func (s *Store) insertOne(ctx context.Context, batch []domain.Record) (int, error) {
	texts := make([]string, len(batch))
	for i, rec := range batch {
		texts[i] = rec.Content
	}

	// Embeddings are computed immediately before insertion.
	embeddings, err := s.embedder.Embed(texts)
	if err != nil {
		return 0, fmt.Errorf("embed batch: %w", err)
	}
	if len(embeddings) != len(batch) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d texts", len(embeddings), len(batch))
	}
	dim := s.embedder.Dimension()
	for i, emb := range embeddings {
		if len(emb) != dim {
			return 0, fmt.Errorf("embedding dimension mismatch at record %d: expected %d, got %d", i, dim, len(emb))
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (content, embedding, source, section, title, act_type, extra_data)
		 VALUES ($1, $2::vector, $3, $4, $5, $6, $7)`, s.table))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range batch {
		meta := rec.Metadata
		source := meta.Source
		if source == "" {
			source = "unknown"
		}
		extra, err := json.Marshal(meta.Extra)
		if err != nil {
			return 0, fmt.Errorf("marshal extra metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			rec.Content,
			vectorToString(embeddings[i]),
			source,
			nullable(meta.Section),
			nullable(meta.Title),
			nullable(meta.ActType),
			extra,
		); err != nil {
			return 0, fmt.Errorf("insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return len(batch), nil
}

// Search returns the k nearest chunks by cosine distance, converted to
// similarity with 1 - distance.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if len(vector) != s.embedder.Dimension() {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.embedder.Dimension(), len(vector))
	}

	query := fmt.Sprintf(
		`SELECT id, content, source, section, title, act_type, extra_data,
		        1 - (embedding <=> $1::vector) AS similarity
		 FROM %s
		 ORDER BY embedding <=> $1::vector
		 LIMIT $2`, s.table)

	rows, err := s.db.QueryContext(ctx, query, vectorToString(vector), k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	results := make([]domain.ScoredChunk, 0, k)
	for rows.Next() {
		var (
			id                      int64
			content, source         string
			section, title, actType sql.NullString
			extraData               []byte
			similarity              float64
		)
		if err := rows.Scan(&id, &content, &source, &section, &title, &actType, &extraData, &similarity); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}

		var extra map[string]string
		if len(extraData) > 0 {
			if err := json.Unmarshal(extraData, &extra); err != nil {
				return nil, fmt.Errorf("decode extra metadata for chunk %d: %w", id, err)
			}
		}

		results = append(results, domain.ScoredChunk{
			Chunk: domain.Chunk{
				ID:      strconv.FormatInt(id, 10),
				Content: content,
				Metadata: domain.Metadata{
					Source:  source,
					Section: section.String,
					Title:   title.String,
					ActType: actType.String,
					Extra:   extra,
				},
			},
			Score: similarity,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT count(*) FROM %s", s.table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// Clear deletes all chunks. Destructive; never called implicitly.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// vectorToString converts a float32 slice to pgvector text format: [0.1,0.2,0.3].
func vectorToString(v []float32) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = strconv.FormatFloat(float64(val), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
