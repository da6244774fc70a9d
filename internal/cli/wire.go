package cli

import (
	"fmt"

	"lawrag/internal/adapter/embedding"
	"lawrag/internal/adapter/pgstore"
	"lawrag/internal/port"
	"lawrag/internal/usecase"
)

// newEmbedder builds the configured embedding provider. Missing
// credentials and unknown provider names fail here, before any work.
func newEmbedder() (port.Embedder, error) {
	return embedding.New(cfg.Embedding)
}

// newPgStore connects the pgvector backend, or returns nil when no
// database URL is configured.
func newPgStore(embedder port.Embedder) (*pgstore.Store, error) {
	url := cfg.DatabaseURL()
	if url == "" {
		return nil, nil
	}
	store, err := pgstore.New(url, cfg.Database.Table, embedder)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return store, nil
}

// newManager wires the index manager over whichever backends are
// configured. The returned cleanup closes the database pool.
func newManager() (*usecase.IndexManager, func(), error) {
	embedder, err := newEmbedder()
	if err != nil {
		return nil, nil, err
	}

	pg, err := newPgStore(embedder)
	if err != nil {
		return nil, nil, err
	}

	manager := usecase.NewIndexManager(
		embedder,
		pg,
		cfg.SnapshotPath(rootDir),
		cfg.Database.Prefer,
		logger,
	)
	cleanup := func() {
		if pg != nil {
			pg.Close()
		}
	}
	return manager, cleanup, nil
}

func newRetrieveUseCase(manager *usecase.IndexManager) *usecase.RetrieveUseCase {
	return usecase.NewRetrieveUseCase(manager, logger, cfg.Retrieve.ContentPreview)
}
