package usecase

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"lawrag/internal/adapter/memindex"
	"lawrag/internal/adapter/pgstore"
	"lawrag/internal/adapter/retriever"
	"lawrag/internal/domain"
	"lawrag/internal/port"
)

type backendState int

const (
	stateUnloaded backendState = iota
	stateLoadedDB
	stateLoadedMemory
	stateLoadFailed
)

// IndexManager owns backend selection and the similarity-search
// algorithm. Exactly one backend serves queries at a time: the database
// when it is preferred and holds data, otherwise the in-memory index
// restored from a snapshot. When neither is available the manager
// degrades to empty results; retrieval failure is never fatal to the
// pipeline.
type IndexManager struct {
	embedder    port.Embedder
	pg          *pgstore.Store // nil when no database is configured
	snapshotDir string
	preferDB    bool
	booster     *retriever.KeywordBooster
	logger      *zap.Logger

	mu    sync.Mutex
	state backendState
	mem   *memindex.Index
}

// NewIndexManager wires a manager. pg may be nil when the database
// backend is not configured.
func NewIndexManager(
	embedder port.Embedder,
	pg *pgstore.Store,
	snapshotDir string,
	preferDB bool,
	logger *zap.Logger,
) *IndexManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexManager{
		embedder:    embedder,
		pg:          pg,
		snapshotDir: snapshotDir,
		preferDB:    preferDB,
		booster:     retriever.NewKeywordBooster(),
		logger:      logger,
	}
}

// Load picks a backend: the database first, when preferred and holding
// at least one chunk, otherwise a snapshot of the in-memory index.
// Returns false when neither is available; that state is terminal until
// Reload. Safe to call concurrently; the winning handle is built fully
// before it is published.
func (m *IndexManager) Load(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(ctx)
}

func (m *IndexManager) loadLocked(ctx context.Context) bool {
	if m.state == stateLoadedDB || m.state == stateLoadedMemory {
		return true
	}
	// LoadFailed is terminal; Reload is the explicit way back.
	if m.state == stateLoadFailed {
		return false
	}

	if m.preferDB && m.pg != nil {
		if m.probeDB(ctx) {
			m.logger.Info("using pgvector backend")
			m.state = stateLoadedDB
			return true
		}
	}

	idx := memindex.New(m.embedder)
	err := idx.Load(m.snapshotDir)
	if err == nil {
		m.logger.Info("loaded in-memory index from snapshot", zap.String("path", m.snapshotDir))
		m.mem = idx
		m.state = stateLoadedMemory
		return true
	}
	if errors.Is(err, memindex.ErrSnapshotInvalid) {
		// Corrupt data, not "no data". Keep it loud in the logs.
		m.logger.Error("snapshot is invalid", zap.String("path", m.snapshotDir), zap.Error(err))
	} else if !errors.Is(err, memindex.ErrSnapshotNotFound) {
		m.logger.Error("snapshot load failed", zap.String("path", m.snapshotDir), zap.Error(err))
	}

	m.logger.Warn("no vector store data found (neither pgvector nor snapshot)")
	m.state = stateLoadFailed
	return false
}

// probeDB is a fallible has-data check. Probe errors are logged and
// treated as "no data" so a flaky database degrades instead of failing
// the query path.
func (m *IndexManager) probeDB(ctx context.Context) bool {
	count, err := m.pg.Count(ctx)
	if err != nil {
		m.logger.Warn("could not check pgvector backend", zap.Error(err))
		return false
	}
	return count > 0
}

// Reload resets a failed or loaded manager so the next call re-runs
// backend selection. This is the explicit retry out of LoadFailed.
func (m *IndexManager) Reload() {
	m.mu.Lock()
	m.state = stateUnloaded
	m.mem = nil
	m.mu.Unlock()
}

// ensureLoaded lazily loads on first use. LoadFailed stays terminal.
func (m *IndexManager) ensureLoaded(ctx context.Context) (backendState, *memindex.Index) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == stateUnloaded {
		m.logger.Info("lazy loading vector store for first request")
		m.loadLocked(ctx)
	}
	return m.state, m.mem
}

// SimilaritySearch returns the k chunks most relevant to the query.
// The database path delegates directly; the in-memory path over-fetches
// 2k candidates and applies the keyword-boost re-ranker, which corrects
// exact-citation lookups that pure vector similarity misses.
// An unavailable store yields an empty result, never an error.
func (m *IndexManager) SimilaritySearch(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	state, mem := m.ensureLoaded(ctx)
	if state == stateLoadFailed {
		m.logger.Warn("vector store not available", zap.String("query", truncate(query, 100)))
		return []domain.ScoredChunk{}, nil
	}

	vec, err := m.embedder.EmbedOne(query)
	if err != nil {
		return nil, err
	}

	switch state {
	case stateLoadedDB:
		// The document count can change under us; re-probe before
		// every delegated search.
		if !m.probeDB(ctx) {
			m.logger.Warn("pgvector backend has no data")
			return []domain.ScoredChunk{}, nil
		}
		return m.pg.Search(ctx, vec, k)

	case stateLoadedMemory:
		candidates, err := mem.Search(ctx, vec, 2*k)
		if err != nil {
			return nil, err
		}
		return m.booster.Rerank(query, candidates, k), nil
	}

	return []domain.ScoredChunk{}, nil
}

// SimilaritySearchWithScore is the same dispatch without the hybrid
// re-ranking pass: scores stay directly comparable, which the keyword
// boost would corrupt. Results are ordered by similarity descending.
func (m *IndexManager) SimilaritySearchWithScore(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	state, mem := m.ensureLoaded(ctx)
	if state == stateLoadFailed {
		m.logger.Warn("vector store not available", zap.String("query", truncate(query, 100)))
		return []domain.ScoredChunk{}, nil
	}

	vec, err := m.embedder.EmbedOne(query)
	if err != nil {
		return nil, err
	}

	switch state {
	case stateLoadedDB:
		if !m.probeDB(ctx) {
			m.logger.Warn("pgvector backend has no data")
			return []domain.ScoredChunk{}, nil
		}
		return m.pg.Search(ctx, vec, k)

	case stateLoadedMemory:
		return mem.Search(ctx, vec, k)
	}

	return []domain.ScoredChunk{}, nil
}

// Count reports the number of chunks in the active backend, 0 when no
// backend is loaded.
func (m *IndexManager) Count(ctx context.Context) (int, error) {
	state, mem := m.ensureLoaded(ctx)
	switch state {
	case stateLoadedDB:
		return m.pg.Count(ctx)
	case stateLoadedMemory:
		return mem.Count(ctx)
	}
	return 0, nil
}

// Backend names the active backend for status reporting.
func (m *IndexManager) Backend() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case stateLoadedDB:
		return "database"
	case stateLoadedMemory:
		return "memory"
	}
	return "none"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
