package usecase

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"lawrag/internal/adapter/embedding"
	"lawrag/internal/domain"
)

func newTestRetrieveUC(t *testing.T) *RetrieveUseCase {
	t.Helper()
	dir := buildSnapshot(t, 64)
	manager := NewIndexManager(embedding.NewMockEmbedder(64), nil, dir, true, zap.NewNop())
	return NewRetrieveUseCase(manager, zap.NewNop(), 40)
}

func TestRetrieve(t *testing.T) {
	uc := newTestRetrieveUC(t)

	chunks, err := uc.Retrieve(context.Background(), "Section 302 punishment", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Metadata.Section != "Section 302" {
		t.Errorf("expected the Section 302 chunk first, got %q", chunks[0].Metadata.Section)
	}
}

func TestRetrieve_EmptyStore(t *testing.T) {
	manager := NewIndexManager(embedding.NewMockEmbedder(64), nil, t.TempDir()+"/none", true, zap.NewNop())
	uc := NewRetrieveUseCase(manager, zap.NewNop(), 500)

	chunks, err := uc.Retrieve(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("empty store must not error: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestRetrieveWithScores_Threshold(t *testing.T) {
	uc := newTestRetrieveUC(t)
	ctx := context.Background()

	all, err := uc.RetrieveWithScores(ctx, "cheating property", 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 unfiltered results, got %d", len(all))
	}

	// Filter strictly between the best and worst scores: the floor
	// keeps high-similarity results and drops the rest.
	threshold := (all[0].Score + all[len(all)-1].Score) / 2
	filtered, err := uc.RetrieveWithScores(ctx, "cheating property", 3, threshold)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) == 0 || len(filtered) >= len(all) {
		t.Fatalf("expected a strict subset, got %d of %d", len(filtered), len(all))
	}
	for _, r := range filtered {
		if r.Score < threshold {
			t.Errorf("result below threshold survived: %f < %f", r.Score, threshold)
		}
	}
}

func TestFormatSources(t *testing.T) {
	uc := newTestRetrieveUC(t)

	long := strings.Repeat("x", 100)
	sources := uc.FormatSources([]domain.Chunk{
		{
			Content:  long,
			Metadata: domain.Metadata{Section: "Section 302", ActType: "Indian Penal Code", Title: "Murder"},
		},
		{Content: "short"},
	})

	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].Act != "Indian Penal Code" || sources[0].Section != "Section 302" {
		t.Errorf("unexpected citation fields: %+v", sources[0])
	}
	if len(sources[0].Content) != 40 {
		t.Errorf("content should be truncated to the preview length, got %d", len(sources[0].Content))
	}
	if sources[1].Act != "Unknown Act" {
		t.Errorf("missing act should default, got %q", sources[1].Act)
	}
}

func TestFormatContext(t *testing.T) {
	uc := newTestRetrieveUC(t)

	if got := uc.FormatContext(nil); !strings.Contains(got, "No relevant documents") {
		t.Errorf("empty chunk list should yield the not-found message, got %q", got)
	}

	got := uc.FormatContext([]domain.Chunk{
		{
			Content:  "murder text",
			Metadata: domain.Metadata{Section: "Section 302", ActType: "Indian Penal Code"},
		},
	})
	if !strings.Contains(got, "[Document 1]") {
		t.Errorf("expected numbered document header, got %q", got)
	}
	if !strings.Contains(got, "Indian Penal Code, Section 302") {
		t.Errorf("expected source line, got %q", got)
	}
}

func TestRun(t *testing.T) {
	uc := newTestRetrieveUC(t)

	result, err := uc.Run(context.Background(), "Section 302 punishment", 2)
	if err != nil {
		t.Fatal(err)
	}
	if result.IsFallback {
		t.Error("expected a non-fallback result")
	}
	if len(result.Chunks) != len(result.Sources) {
		t.Errorf("chunks and sources must align: %d vs %d", len(result.Chunks), len(result.Sources))
	}
	if result.LatencyMS < 0 {
		t.Errorf("latency must be non-negative, got %d", result.LatencyMS)
	}
	if result.Context == "" {
		t.Error("expected formatted context")
	}
}

func TestRun_Fallback(t *testing.T) {
	manager := NewIndexManager(embedding.NewMockEmbedder(64), nil, t.TempDir()+"/none", true, zap.NewNop())
	uc := NewRetrieveUseCase(manager, zap.NewNop(), 500)

	result, err := uc.Run(context.Background(), "anything", 3)
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsFallback {
		t.Error("expected fallback signal for empty retrieval")
	}
	if len(result.Sources) != 0 {
		t.Errorf("fallback result must carry no sources, got %d", len(result.Sources))
	}
}

func TestIsReady(t *testing.T) {
	uc := newTestRetrieveUC(t)
	if !uc.IsReady(context.Background()) {
		t.Error("expected ready with a populated snapshot")
	}

	empty := NewRetrieveUseCase(
		NewIndexManager(embedding.NewMockEmbedder(64), nil, t.TempDir()+"/none", true, zap.NewNop()),
		zap.NewNop(), 500)
	if empty.IsReady(context.Background()) {
		t.Error("expected not ready without data")
	}
}
