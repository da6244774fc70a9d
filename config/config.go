package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the retrieval service.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Database  DatabaseConfig  `yaml:"database"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`    // "jina", "openai", "ollama", "mock"
	Model     string `yaml:"model"`       // e.g. "jina-embeddings-v2-base-en"
	APIKeyEnv string `yaml:"api_key_env"` // Environment variable holding the API key
	BaseURL   string `yaml:"base_url"`    // Override for self-hosted endpoints
	Dimension int    `yaml:"dimension"`   // 0 = derive from model
	BatchSize int    `yaml:"batch_size"`
}

// DatabaseConfig holds the pgvector backend configuration.
type DatabaseConfig struct {
	URLEnv             string `yaml:"url_env"` // Environment variable holding the connection URL
	Prefer             bool   `yaml:"prefer"`  // Prefer the database backend when it has data
	Table              string `yaml:"table"`
	HNSWM              int    `yaml:"hnsw_m"`
	HNSWEfConstruction int    `yaml:"hnsw_ef_construction"`
}

// SnapshotConfig holds the in-memory index snapshot location.
type SnapshotConfig struct {
	Path string `yaml:"path"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK           int     `yaml:"top_k"`
	ScoreThreshold float64 `yaml:"score_threshold"` // Similarity floor for scored retrieval (0 = disabled)
	ContentPreview int     `yaml:"content_preview"` // Citation content truncation length
}

// IngestConfig holds dataset ingestion configuration.
type IngestConfig struct {
	Includes  []string `yaml:"includes"`
	Excludes  []string `yaml:"excludes"`
	BatchSize int      `yaml:"batch_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:  "jina",
			Model:     "jina-embeddings-v2-base-en",
			APIKeyEnv: "JINA_API_KEY",
			Dimension: 0,
			BatchSize: 100,
		},
		Database: DatabaseConfig{
			URLEnv:             "DATABASE_URL",
			Prefer:             true,
			Table:              "document_embeddings",
			HNSWM:              16,
			HNSWEfConstruction: 64,
		},
		Snapshot: SnapshotConfig{
			Path: ".lawrag/index",
		},
		Retrieve: RetrieveConfig{
			TopK:           5,
			ScoreThreshold: 0,
			ContentPreview: 500,
		},
		Ingest: IngestConfig{
			Includes:  []string{"**/*.json", "**/*.jsonl"},
			Excludes:  []string{"**/.git/**"},
			BatchSize: 100,
		},
		Logging: LoggingConfig{
			Debug: false,
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for lawrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "lawrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".lawrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DatabaseURL resolves the database connection URL from the environment.
// Empty means the database backend is not configured.
func (c *Config) DatabaseURL() string {
	if c.Database.URLEnv == "" {
		return ""
	}
	return os.Getenv(c.Database.URLEnv)
}

// SnapshotPath returns the snapshot directory resolved against root.
func (c *Config) SnapshotPath(root string) string {
	if filepath.IsAbs(c.Snapshot.Path) {
		return c.Snapshot.Path
	}
	return filepath.Join(root, c.Snapshot.Path)
}
