package embedding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"lawrag/config"
	"lawrag/internal/port"
)

// Client talks to an OpenAI-compatible embeddings endpoint
// (POST /embeddings with {model, input}). Jina, OpenAI, and Ollama all
// speak this shape.
type Client struct {
	apiKey    string
	model     string
	baseURL   string
	dimension int
	client    *http.Client
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// New constructs the embedder named by cfg. Unsupported provider names
// and missing credentials are errors here, not at first use.
func New(cfg config.EmbeddingConfig) (port.Embedder, error) {
	switch cfg.Provider {
	case "jina":
		return NewJinaEmbedder(cfg.APIKeyEnv, cfg.Model, cfg.BaseURL)
	case "openai":
		return NewOpenAIEmbedder(cfg.APIKeyEnv, cfg.Model, cfg.BaseURL)
	case "ollama":
		return NewOllamaEmbedder(cfg.Model, cfg.BaseURL)
	case "mock":
		dim := cfg.Dimension
		if dim == 0 {
			dim = 768
		}
		return NewMockEmbedder(dim), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Provider)
	}
}

// NewJinaEmbedder creates a client for the Jina AI embeddings API.
func NewJinaEmbedder(apiKeyEnv, model, baseURL string) (*Client, error) {
	if model == "" {
		model = "jina-embeddings-v2-base-en"
	}
	if baseURL == "" {
		baseURL = "https://api.jina.ai/v1"
	}
	return newRemoteClient(apiKeyEnv, model, baseURL)
}

// NewOpenAIEmbedder creates a client for the OpenAI embeddings API.
func NewOpenAIEmbedder(apiKeyEnv, model, baseURL string) (*Client, error) {
	if model == "" {
		model = "text-embedding-3-small"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return newRemoteClient(apiKeyEnv, model, baseURL)
}

// NewOllamaEmbedder creates a client for a local Ollama instance. No
// credential is required.
func NewOllamaEmbedder(model, baseURL string) (*Client, error) {
	if model == "" {
		model = "nomic-embed-text"
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}

	return &Client{
		apiKey:    "ollama",
		model:     model,
		baseURL:   baseURL,
		dimension: modelDimension(model),
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

func newRemoteClient(apiKeyEnv, model, baseURL string) (*Client, error) {
	if apiKeyEnv == "" {
		return nil, fmt.Errorf("no API key environment variable configured for model %s", model)
	}
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}

	return &Client{
		apiKey:    apiKey,
		model:     model,
		baseURL:   baseURL,
		dimension: modelDimension(model),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// modelDimension returns the declared output dimension for known models.
// Unknown models report 0; callers should resolve via ProbeDimension.
func modelDimension(model string) int {
	switch model {
	case "jina-embeddings-v2-base-en":
		return 768
	case "jina-embeddings-v3":
		return 1024
	case "jina-embeddings-v4":
		return 2048
	case "text-embedding-3-small":
		return 1536
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-ada-002":
		return 1536
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	}
	return 0
}

// Embed generates embeddings for the given texts, batching requests.
// The client does not retry; backoff policy belongs to the caller.
func (e *Client) Embed(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	const maxBatch = 100
	var allEmbeddings [][]float32

	for i := 0; i < len(texts); i += maxBatch {
		end := i + maxBatch
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		embeddings, err := e.embedBatch(batch)
		if err != nil {
			return nil, err
		}
		allEmbeddings = append(allEmbeddings, embeddings...)
	}

	return allEmbeddings, nil
}

// EmbedOne generates an embedding for a single text.
func (e *Client) EmbedOne(text string) ([]float32, error) {
	embeddings, err := e.Embed([]string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 || embeddings[0] == nil {
		return nil, fmt.Errorf("embedding returned empty result")
	}
	return embeddings[0], nil
}

func (e *Client) embedBatch(texts []string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Input: texts,
		Model: e.model,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", e.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, string(body))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200]
		}
		return nil, fmt.Errorf("failed to parse response (body: %s): %w", bodyPreview, err)
	}

	if embResp.Error != nil {
		return nil, fmt.Errorf("embedding API error: %s", embResp.Error.Message)
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index < len(embeddings) {
			embeddings[data.Index] = data.Embedding
		}
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, fmt.Errorf("embedding API response missing vector for input %d", i)
		}
	}

	return embeddings, nil
}

// Dimension returns the embedding vector dimension.
func (e *Client) Dimension() int {
	return e.dimension
}

// ModelName returns the name of the embedding model.
func (e *Client) ModelName() string {
	return e.model
}

// ProbeDimension measures the output dimension of an embedder whose
// model is not in the known table. Last resort only: costs one API call.
func ProbeDimension(e port.Embedder) (int, error) {
	if d := e.Dimension(); d > 0 {
		return d, nil
	}
	vec, err := e.EmbedOne("test")
	if err != nil {
		return 0, fmt.Errorf("dimension probe failed: %w", err)
	}
	return len(vec), nil
}

// MockEmbedder produces deterministic vectors for tests. Texts sharing
// a prefix get similar vectors.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = make([]float32, e.dimension)

		for j, r := range texts[i] {
			if j < e.dimension {
				embeddings[i][j] = float32(r) / 1000.0
			}
		}
	}
	return embeddings, nil
}

func (e *MockEmbedder) EmbedOne(text string) ([]float32, error) {
	embeddings, err := e.Embed([]string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
