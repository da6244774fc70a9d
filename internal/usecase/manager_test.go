package usecase

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"lawrag/internal/adapter/embedding"
	"lawrag/internal/adapter/memindex"
	"lawrag/internal/domain"
)

func legalRecords() []domain.Record {
	return []domain.Record{
		{
			Content:  "Section 302 of the Indian Penal Code prescribes the punishment for murder",
			Metadata: domain.Metadata{Source: "ipc", Section: "Section 302", ActType: "Indian Penal Code"},
		},
		{
			Content:  "Section 420 of the Indian Penal Code covers cheating and dishonest inducement",
			Metadata: domain.Metadata{Source: "ipc", Section: "Section 420", ActType: "Indian Penal Code"},
		},
		{
			Content:  "general constitutional law text about the structure of government",
			Metadata: domain.Metadata{Source: "constitution"},
		},
	}
}

// buildSnapshot writes a snapshot holding legalRecords and returns its path.
func buildSnapshot(t *testing.T, dim int) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "snapshot")

	idx := memindex.New(embedding.NewMockEmbedder(dim))
	if err := idx.BuildFrom(context.Background(), legalRecords()); err != nil {
		t.Fatal(err)
	}
	if err := idx.Save(dir); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestSimilaritySearch_NoBackend(t *testing.T) {
	manager := NewIndexManager(
		embedding.NewMockEmbedder(64),
		nil,
		filepath.Join(t.TempDir(), "missing"),
		true,
		zap.NewNop(),
	)

	results, err := manager.SimilaritySearch(context.Background(), "any question", 5)
	if err != nil {
		t.Fatalf("unavailable store must not error: %v", err)
	}
	if results == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
	if manager.Backend() != "none" {
		t.Errorf("expected backend none, got %s", manager.Backend())
	}
}

func TestLoad_SnapshotBackend(t *testing.T) {
	dir := buildSnapshot(t, 64)
	manager := NewIndexManager(embedding.NewMockEmbedder(64), nil, dir, true, zap.NewNop())

	if !manager.Load(context.Background()) {
		t.Fatal("expected load to succeed from snapshot")
	}
	if manager.Backend() != "memory" {
		t.Errorf("expected memory backend, got %s", manager.Backend())
	}

	count, err := manager.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected 3 chunks, got %d", count)
	}
}

func TestSimilaritySearch_HybridCitation(t *testing.T) {
	dir := buildSnapshot(t, 64)
	manager := NewIndexManager(embedding.NewMockEmbedder(64), nil, dir, true, zap.NewNop())

	// Lazy load: no explicit Load call before the first search.
	results, err := manager.SimilaritySearch(context.Background(), "Section 302 punishment", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.Metadata.Section != "Section 302" {
		t.Errorf("murder chunk must rank first for a Section 302 query, got %q (%q)",
			results[0].Chunk.Metadata.Section, results[0].Chunk.Content)
	}
}

func TestSimilaritySearchWithScore_Ordering(t *testing.T) {
	dir := buildSnapshot(t, 64)
	manager := NewIndexManager(embedding.NewMockEmbedder(64), nil, dir, true, zap.NewNop())

	results, err := manager.SimilaritySearchWithScore(context.Background(), "cheating property", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("scores must be non-increasing, got %f after %f",
				results[i].Score, results[i-1].Score)
		}
	}
}

func TestReload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "late-snapshot")
	manager := NewIndexManager(embedding.NewMockEmbedder(64), nil, dir, true, zap.NewNop())

	if manager.Load(context.Background()) {
		t.Fatal("load should fail before the snapshot exists")
	}

	// Snapshot appears after the failed load; the failed state is
	// terminal until an explicit Reload.
	idx := memindex.New(embedding.NewMockEmbedder(64))
	if err := idx.BuildFrom(context.Background(), legalRecords()); err != nil {
		t.Fatal(err)
	}
	if err := idx.Save(dir); err != nil {
		t.Fatal(err)
	}

	if manager.Load(context.Background()) {
		t.Fatal("LoadFailed must stay terminal without Reload")
	}

	manager.Reload()
	if !manager.Load(context.Background()) {
		t.Fatal("expected load to succeed after Reload")
	}
}
