package domain

// Record is a pre-chunked unit of source text as supplied by upstream
// loaders. The core does not re-chunk.
type Record struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Metadata carries the provenance of a chunk. Section and Title may be
// empty; Extra holds loader-specific fields.
type Metadata struct {
	Source  string            `json:"source"`
	Section string            `json:"section,omitempty"`
	Title   string            `json:"title,omitempty"`
	ActType string            `json:"act_type,omitempty"`
	Extra   map[string]string `json:"extra,omitempty"`
}

// Chunk is a stored, retrievable unit: text plus its embedding.
// The embedding dimension must match the configured embedder.
type Chunk struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  Metadata
}

// ScoredChunk pairs a chunk with its cosine similarity to the query.
// Higher is always better; backends that report distance convert
// before returning results.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// LegalSource is the citation record handed to the generation step.
type LegalSource struct {
	Act     string `json:"act"`
	Section string `json:"section,omitempty"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
}

// RetrievalResult is the full output of one retrieval pass.
type RetrievalResult struct {
	Chunks     []Chunk       `json:"chunks"`
	Sources    []LegalSource `json:"sources"`
	Context    string        `json:"context"`
	IsFallback bool          `json:"is_fallback"`
	LatencyMS  int64         `json:"latency_ms"`
}
