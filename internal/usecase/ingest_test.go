package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"lawrag/internal/adapter/embedding"
	"lawrag/internal/adapter/fs"
	"lawrag/internal/adapter/memindex"
)

func TestIngest(t *testing.T) {
	root := t.TempDir()
	data := `[
		{"content": "Section 302 prescribes punishment for murder", "metadata": {"source": "ipc", "section": "Section 302"}},
		{"content": "Section 420 covers cheating", "metadata": {"source": "ipc", "section": "Section 420"}}
	]`
	if err := os.WriteFile(filepath.Join(root, "ipc.json"), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	// A file that fails to parse is reported, not fatal.
	if err := os.WriteFile(filepath.Join(root, "broken.json"), []byte("{oops"), 0644); err != nil {
		t.Fatal(err)
	}

	idx := memindex.New(embedding.NewMockEmbedder(32))
	walker := fs.NewWalker([]string{"**/*.json"}, nil)
	uc := NewIngestUseCase(walker, idx, 1, zap.NewNop())

	var progressCalls int
	uc.Progress = func(processed, total int) {
		progressCalls++
		if total != 2 {
			t.Errorf("expected total 2, got %d", total)
		}
	}

	result, err := uc.Ingest(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	if result.Files != 1 {
		t.Errorf("expected 1 parsed file, got %d", result.Files)
	}
	if result.Inserted != 2 {
		t.Errorf("expected 2 inserted, got %d", result.Inserted)
	}
	if len(result.Errors) != 1 {
		t.Errorf("expected 1 recorded file error, got %v", result.Errors)
	}
	if progressCalls == 0 {
		t.Error("expected progress callbacks")
	}

	count, _ := idx.Count(context.Background())
	if count != 2 {
		t.Errorf("backend should hold 2 chunks, got %d", count)
	}
}

func TestIngest_NoFiles(t *testing.T) {
	idx := memindex.New(embedding.NewMockEmbedder(8))
	uc := NewIngestUseCase(fs.NewWalker([]string{"**/*.json"}, nil), idx, 10, zap.NewNop())

	if _, err := uc.Ingest(context.Background(), t.TempDir()); err == nil {
		t.Fatal("expected error for an empty dataset directory")
	}
}

func TestClear(t *testing.T) {
	idx := memindex.New(embedding.NewMockEmbedder(8))
	uc := NewIngestUseCase(fs.NewWalker(nil, nil), idx, 10, zap.NewNop())

	if err := uc.Clear(context.Background()); err != nil {
		t.Fatal(err)
	}
}
