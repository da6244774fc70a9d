package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"lawrag/internal/adapter/retriever"
	"lawrag/internal/domain"
)

// RetrieveUseCase composes the query enhancer and the index manager,
// and shapes raw hits into citable sources and grounded context for the
// generation step.
type RetrieveUseCase struct {
	manager    *IndexManager
	enhancer   *retriever.Enhancer
	logger     *zap.Logger
	previewLen int
}

// NewRetrieveUseCase creates a retrieve use case. previewLen bounds the
// content carried in citation records.
func NewRetrieveUseCase(manager *IndexManager, logger *zap.Logger, previewLen int) *RetrieveUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if previewLen <= 0 {
		previewLen = 500
	}
	return &RetrieveUseCase{
		manager:    manager,
		enhancer:   retriever.NewEnhancer(),
		logger:     logger,
		previewLen: previewLen,
	}
}

// Retrieve enhances the query and returns the top-k chunks. An empty
// result means "nothing relevant found" and is not an error.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, k int) ([]domain.Chunk, error) {
	enhanced := u.enhancer.Enhance(query)
	u.logger.Info("retrieving documents",
		zap.Int("top_k", k),
		zap.String("query", truncate(enhanced, 100)))

	results, err := u.manager.SimilaritySearch(ctx, enhanced, k)
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, len(results))
	for i, r := range results {
		chunks[i] = r.Chunk
	}
	u.logger.Info("retrieved documents", zap.Int("count", len(chunks)))
	return chunks, nil
}

// RetrieveWithScores returns scored results without the hybrid
// re-ranking pass. Scores are similarities (higher is better), so a
// positive threshold keeps results scoring at or above it.
func (u *RetrieveUseCase) RetrieveWithScores(ctx context.Context, query string, k int, threshold float64) ([]domain.ScoredChunk, error) {
	results, err := u.manager.SimilaritySearchWithScore(ctx, query, k)
	if err != nil {
		return nil, err
	}

	if threshold == 0 {
		return results, nil
	}
	filtered := make([]domain.ScoredChunk, 0, len(results))
	for _, r := range results {
		if r.Score >= threshold {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// FormatSources maps chunk metadata into the stable citation shape
// consumed downstream, truncating content to the preview length.
func (u *RetrieveUseCase) FormatSources(chunks []domain.Chunk) []domain.LegalSource {
	sources := make([]domain.LegalSource, len(chunks))
	for i, chunk := range chunks {
		act := chunk.Metadata.ActType
		if act == "" {
			act = "Unknown Act"
		}
		content := chunk.Content
		if len(content) > u.previewLen {
			content = content[:u.previewLen]
		}
		sources[i] = domain.LegalSource{
			Act:     act,
			Section: chunk.Metadata.Section,
			Title:   chunk.Metadata.Title,
			Content: content,
		}
	}
	return sources
}

// FormatContext renders retrieved chunks as the structured context
// block handed to the generation step.
func (u *RetrieveUseCase) FormatContext(chunks []domain.Chunk) string {
	if len(chunks) == 0 {
		return "No relevant documents found in the legal database."
	}

	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		var sb strings.Builder
		fmt.Fprintf(&sb, "[Document %d]\n", i+1)

		act := chunk.Metadata.ActType
		if act == "" {
			act = "Unknown Act"
		}
		sb.WriteString("Source: " + act)
		if chunk.Metadata.Section != "" {
			sb.WriteString(", " + chunk.Metadata.Section)
		}
		if chunk.Metadata.Title != "" {
			sb.WriteString(" - " + chunk.Metadata.Title)
		}
		sb.WriteString("\nContent:\n" + chunk.Content + "\n")
		parts[i] = sb.String()
	}
	return strings.Join(parts, "\n---\n")
}

// Run executes a full retrieval pass: enhance, search, format. The
// result carries the fallback signal and latency for the caller.
func (u *RetrieveUseCase) Run(ctx context.Context, query string, k int) (domain.RetrievalResult, error) {
	start := time.Now()

	chunks, err := u.Retrieve(ctx, query, k)
	if err != nil {
		return domain.RetrievalResult{}, err
	}

	result := domain.RetrievalResult{
		Chunks:     chunks,
		Sources:    u.FormatSources(chunks),
		Context:    u.FormatContext(chunks),
		IsFallback: len(chunks) == 0,
		LatencyMS:  time.Since(start).Milliseconds(),
	}
	if result.IsFallback {
		u.logger.Warn("no documents found", zap.String("query", truncate(query, 100)))
	}
	return result, nil
}

// IsReady reports whether the store holds at least one chunk. Used as a
// startup health signal.
func (u *RetrieveUseCase) IsReady(ctx context.Context) bool {
	count, err := u.manager.Count(ctx)
	if err != nil {
		return false
	}
	return count > 0
}
