package memindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"lawrag/internal/domain"
	"lawrag/internal/port"
)

var (
	// ErrSnapshotNotFound means the snapshot directory does not exist.
	// This is the normal "not yet built" state, not a data error.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotInvalid means the snapshot directory exists but is
	// structurally broken or does not match the configured embedder.
	ErrSnapshotInvalid = errors.New("snapshot invalid")
)

var bucketChunks = []byte("chunks")

const manifestFile = "manifest.json"
const indexFile = "index.db"

// Index is a self-contained vector index: all chunks live in memory and
// search is brute-force cosine similarity. Persistence is a snapshot
// directory holding a bbolt file plus a manifest.
type Index struct {
	mu       sync.RWMutex
	embedder port.Embedder
	chunks   map[string]domain.Chunk
}

type manifest struct {
	Dimension int    `json:"dimension"`
	Model     string `json:"model"`
	Count     int    `json:"count"`
}

type storedChunk struct {
	Content   string            `json:"c"`
	Embedding []float32         `json:"v"`
	Source    string            `json:"source"`
	Section   string            `json:"section,omitempty"`
	Title     string            `json:"title,omitempty"`
	ActType   string            `json:"act_type,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// New creates an empty index bound to the given embedder.
func New(embedder port.Embedder) *Index {
	return &Index{
		embedder: embedder,
		chunks:   make(map[string]domain.Chunk),
	}
}

// BuildFrom embeds all records and rebuilds the index from scratch.
func (idx *Index) BuildFrom(ctx context.Context, records []domain.Record) error {
	fresh := make(map[string]domain.Chunk, len(records))

	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.Content
	}
	embeddings, err := idx.embedder.Embed(texts)
	if err != nil {
		return fmt.Errorf("embed records: %w", err)
	}
	if len(embeddings) != len(records) {
		return fmt.Errorf("embedder returned %d vectors for %d texts", len(embeddings), len(records))
	}

	dim := idx.embedder.Dimension()
	for i, rec := range records {
		if len(embeddings[i]) != dim {
			return fmt.Errorf("embedding dimension mismatch at record %d: expected %d, got %d", i, dim, len(embeddings[i]))
		}
		id := uuid.NewString()
		fresh[id] = domain.Chunk{
			ID:        id,
			Content:   rec.Content,
			Embedding: embeddings[i],
			Metadata:  rec.Metadata,
		}
	}

	idx.mu.Lock()
	idx.chunks = fresh
	idx.mu.Unlock()
	return nil
}

// InsertBatch embeds and adds records in batches, keeping existing
// chunks. Returns the number of records inserted.
func (idx *Index) InsertBatch(ctx context.Context, records []domain.Record, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	dim := idx.embedder.Dimension()
	inserted := 0

	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		texts := make([]string, len(batch))
		for i, rec := range batch {
			texts[i] = rec.Content
		}
		embeddings, err := idx.embedder.Embed(texts)
		if err != nil {
			return inserted, fmt.Errorf("embed batch: %w", err)
		}
		if len(embeddings) != len(batch) {
			return inserted, fmt.Errorf("embedder returned %d vectors for %d texts", len(embeddings), len(batch))
		}

		idx.mu.Lock()
		for i, rec := range batch {
			if len(embeddings[i]) != dim {
				idx.mu.Unlock()
				return inserted, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", dim, len(embeddings[i]))
			}
			id := uuid.NewString()
			idx.chunks[id] = domain.Chunk{
				ID:        id,
				Content:   rec.Content,
				Embedding: embeddings[i],
				Metadata:  rec.Metadata,
			}
		}
		idx.mu.Unlock()
		inserted += len(batch)
	}
	return inserted, nil
}

// Search returns the k most similar chunks by cosine similarity,
// highest first. An empty index yields an empty result.
func (idx *Index) Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if len(vector) != idx.embedder.Dimension() {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", idx.embedder.Dimension(), len(vector))
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.chunks) == 0 {
		return []domain.ScoredChunk{}, nil
	}

	scores := make([]domain.ScoredChunk, 0, len(idx.chunks))
	for _, chunk := range idx.chunks {
		scores = append(scores, domain.ScoredChunk{
			Chunk: chunk,
			Score: cosineSimilarity(vector, chunk.Embedding),
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})

	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

// Count returns the number of stored chunks.
func (idx *Index) Count(ctx context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.chunks), nil
}

// Clear drops all chunks from memory. The snapshot on disk, if any, is
// untouched until the next Save.
func (idx *Index) Clear(ctx context.Context) error {
	idx.mu.Lock()
	idx.chunks = make(map[string]domain.Chunk)
	idx.mu.Unlock()
	return nil
}

// Save serializes the index into dir as a snapshot: index.db with the
// chunk data and manifest.json describing the embedding space.
func (idx *Index) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	db, err := bbolt.Open(filepath.Join(dir, indexFile), 0600, nil)
	if err != nil {
		return fmt.Errorf("open snapshot db: %w", err)
	}
	defer db.Close()

	err = db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketChunks) != nil {
			if err := tx.DeleteBucket(bucketChunks); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(bucketChunks)
		if err != nil {
			return err
		}
		for id, chunk := range idx.chunks {
			data, err := json.Marshal(storedChunk{
				Content:   chunk.Content,
				Embedding: chunk.Embedding,
				Source:    chunk.Metadata.Source,
				Section:   chunk.Metadata.Section,
				Title:     chunk.Metadata.Title,
				ActType:   chunk.Metadata.ActType,
				Extra:     chunk.Metadata.Extra,
			})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(id), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write snapshot db: %w", err)
	}

	m := manifest{
		Dimension: idx.embedder.Dimension(),
		Model:     idx.embedder.ModelName(),
		Count:     len(idx.chunks),
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Load deserializes a snapshot written by Save. A missing directory is
// ErrSnapshotNotFound; a directory that exists but fails validation is
// ErrSnapshotInvalid. The two must stay distinguishable so callers can
// tell "not built yet" from corruption.
func (idx *Index) Load(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, dir)
		}
		return fmt.Errorf("stat snapshot dir: %w", err)
	}

	manifestPath := filepath.Join(dir, manifestFile)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("%w: missing manifest: %v", ErrSnapshotInvalid, err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: malformed manifest: %v", ErrSnapshotInvalid, err)
	}

	// An index built under a different provider or dimension is not
	// reusable; reject rather than mix embedding spaces.
	if m.Dimension != idx.embedder.Dimension() {
		return fmt.Errorf("%w: snapshot dimension %d does not match embedder dimension %d (model %s)",
			ErrSnapshotInvalid, m.Dimension, idx.embedder.Dimension(), m.Model)
	}

	dbPath := filepath.Join(dir, indexFile)
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("%w: missing index file: %v", ErrSnapshotInvalid, err)
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("%w: open index file: %v", ErrSnapshotInvalid, err)
	}
	defer db.Close()

	loaded := make(map[string]domain.Chunk, m.Count)
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		if b == nil {
			return fmt.Errorf("%w: chunks bucket missing", ErrSnapshotInvalid)
		}
		return b.ForEach(func(k, v []byte) error {
			var stored storedChunk
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("%w: malformed chunk %s: %v", ErrSnapshotInvalid, k, err)
			}
			if len(stored.Embedding) != m.Dimension {
				return fmt.Errorf("%w: chunk %s has dimension %d, manifest says %d",
					ErrSnapshotInvalid, k, len(stored.Embedding), m.Dimension)
			}
			id := string(k)
			loaded[id] = domain.Chunk{
				ID:        id,
				Content:   stored.Content,
				Embedding: stored.Embedding,
				Metadata: domain.Metadata{
					Source:  stored.Source,
					Section: stored.Section,
					Title:   stored.Title,
					ActType: stored.ActType,
					Extra:   stored.Extra,
				},
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	idx.mu.Lock()
	idx.chunks = loaded
	idx.mu.Unlock()
	return nil
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
