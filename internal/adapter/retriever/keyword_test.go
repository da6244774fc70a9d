package retriever

import (
	"testing"

	"lawrag/internal/domain"
)

func TestExtractKeywords(t *testing.T) {
	keywords := ExtractKeywords("What is the punishment under Section 302?")

	want := map[string]bool{
		"punishment":  false,
		"Section":     false,
		"302":         false,
		"Section 302": false,
	}
	for _, kw := range keywords {
		if _, ok := want[kw]; ok {
			want[kw] = true
		}
		switch kw {
		case "What", "is", "the", "under":
			t.Errorf("stopword %q should have been dropped", kw)
		}
	}
	for kw, found := range want {
		if !found {
			t.Errorf("expected keyword %q, got %v", kw, keywords)
		}
	}
}

func TestExtractKeywords_ShortTokens(t *testing.T) {
	for _, kw := range ExtractKeywords("go at it now") {
		if len(kw) <= 2 {
			t.Errorf("token %q of length <= 2 should have been dropped", kw)
		}
	}
}

func TestExtractKeywords_NoCitation(t *testing.T) {
	keywords := ExtractKeywords("right against self incrimination")
	for _, kw := range keywords {
		if kw == "Section " || kw == "Section" {
			t.Errorf("no citation tokens expected, got %v", keywords)
		}
	}
}

func candidates() []domain.ScoredChunk {
	return []domain.ScoredChunk{
		// Ordered by raw vector similarity: the general text happens to
		// score highest, the murder chunk lowest.
		{
			Chunk: domain.Chunk{
				ID:      "c3",
				Content: "general constitutional law text",
			},
			Score: 0.9,
		},
		{
			Chunk: domain.Chunk{
				ID:       "c2",
				Content:  "Section 420 of the IPC covers cheating",
				Metadata: domain.Metadata{Section: "Section 420"},
			},
			Score: 0.8,
		},
		{
			Chunk: domain.Chunk{
				ID:       "c1",
				Content:  "Section 302 of the IPC prescribes punishment for murder",
				Metadata: domain.Metadata{Section: "Section 302"},
			},
			Score: 0.7,
		},
	}
}

func TestRerank_CitationWins(t *testing.T) {
	b := NewKeywordBooster()

	results := b.Rerank("Section 302 punishment", candidates(), 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.ID != "c1" {
		t.Errorf("chunk with matching section metadata must rank first, got %s", results[0].Chunk.ID)
	}
}

func TestRerank_StableOnNoKeywords(t *testing.T) {
	b := NewKeywordBooster()

	// Every keyword misses every candidate: the vector order must
	// survive untouched.
	results := b.Rerank("zzz qqq", candidates(), 3)
	for i, want := range []string{"c3", "c2", "c1"} {
		if results[i].Chunk.ID != want {
			t.Errorf("rank %d: expected %s, got %s", i+1, want, results[i].Chunk.ID)
		}
	}
}

func TestRerank_MissingSectionMetadata(t *testing.T) {
	b := NewKeywordBooster()

	cands := []domain.ScoredChunk{
		{Chunk: domain.Chunk{ID: "a", Content: "nothing relevant"}, Score: 0.5},
	}
	// Must not fail scoring when section metadata is absent.
	results := b.Rerank("Section 302 murder", cands, 1)
	if len(results) != 1 || results[0].Chunk.ID != "a" {
		t.Fatalf("unexpected results: %v", results)
	}
}

func TestRerank_KSmallerThanPool(t *testing.T) {
	b := NewKeywordBooster()

	results := b.Rerank("cheating", candidates(), 10)
	if len(results) != 3 {
		t.Fatalf("k larger than pool should return the whole pool, got %d", len(results))
	}
	if results[0].Chunk.ID != "c2" {
		t.Errorf("cheating keyword should promote c2, got %s", results[0].Chunk.ID)
	}
}
