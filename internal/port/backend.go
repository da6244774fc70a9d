package port

import (
	"context"

	"lawrag/internal/domain"
)

// VectorBackend stores chunks and answers nearest-neighbor queries.
// Exactly one backend serves live queries at a time; the index manager
// picks which at load time.
type VectorBackend interface {
	// InsertBatch embeds and inserts records in batches. Embeddings are
	// computed immediately before insertion. Returns the number of
	// records actually inserted; on error that count reflects the
	// batches that committed before the failure.
	InsertBatch(ctx context.Context, records []domain.Record, batchSize int) (int, error)

	// Search returns the k nearest chunks to the query vector, ordered
	// by similarity descending. Scores are cosine similarity, higher is
	// better. An empty store yields an empty, non-nil result.
	Search(ctx context.Context, vector []float32, k int) ([]domain.ScoredChunk, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Clear deletes all stored chunks. Destructive and irreversible;
	// never called implicitly.
	Clear(ctx context.Context) error
}
