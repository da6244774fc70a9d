package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"lawrag/internal/adapter/dataset"
	"lawrag/internal/adapter/fs"
	"lawrag/internal/domain"
	"lawrag/internal/port"
)

// IngestUseCase bulk-loads pre-chunked dataset files into a backend.
type IngestUseCase struct {
	walker    *fs.Walker
	backend   port.VectorBackend
	batchSize int
	logger    *zap.Logger

	// Progress, when set, is called after each batch with the running
	// record counts. The CLI uses it to drive a progress bar.
	Progress func(processed, total int)
}

// NewIngestUseCase creates an ingest use case against the given backend.
func NewIngestUseCase(walker *fs.Walker, backend port.VectorBackend, batchSize int, logger *zap.Logger) *IngestUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &IngestUseCase{
		walker:    walker,
		backend:   backend,
		batchSize: batchSize,
		logger:    logger,
	}
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	Files    int
	Records  int
	Inserted int
	Errors   []string
}

// Ingest walks root for dataset files, parses their records, and
// inserts them batch by batch. Each batch commits independently, so a
// crash loses at most the batch in flight. File-level parse failures
// are recorded and skipped; insert failures stop the run because later
// batches would land behind a gap.
func (u *IngestUseCase) Ingest(ctx context.Context, root string) (*IngestResult, error) {
	result := &IngestResult{}

	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("walk dataset dir: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no dataset files found under %s", root)
	}

	var records []domain.Record
	for _, file := range files {
		recs, err := dataset.LoadFile(file)
		if err != nil {
			u.logger.Warn("skipping dataset file", zap.String("file", file), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", file, err))
			continue
		}
		records = append(records, recs...)
		result.Files++
	}
	result.Records = len(records)
	if len(records) == 0 {
		return result, fmt.Errorf("no records parsed from %d files", len(files))
	}

	u.logger.Info("ingesting records",
		zap.Int("files", result.Files),
		zap.Int("records", result.Records),
		zap.Int("batch_size", u.batchSize))

	for start := 0; start < len(records); start += u.batchSize {
		end := start + u.batchSize
		if end > len(records) {
			end = len(records)
		}

		n, err := u.backend.InsertBatch(ctx, records[start:end], u.batchSize)
		result.Inserted += n
		if err != nil {
			return result, fmt.Errorf("insert batch at record %d: %w", start, err)
		}
		if u.Progress != nil {
			u.Progress(end, len(records))
		}
	}

	u.logger.Info("ingestion complete", zap.Int("inserted", result.Inserted))
	return result, nil
}

// Clear wipes the backend. Callers must confirm; this is destructive
// and irreversible.
func (u *IngestUseCase) Clear(ctx context.Context) error {
	return u.backend.Clear(ctx)
}
