package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for reporag.
type Config struct {
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Answer    AnswerConfig    `yaml:"answer"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Store     StoreConfig     `yaml:"store"`
	GitHub    GitHubConfig    `yaml:"github"`
	Server    ServerConfig    `yaml:"server"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// IngestConfig controls extraction and chunking.
type IngestConfig struct {
	Includes           []string `yaml:"includes"`
	Excludes           []string `yaml:"excludes"`
	ExcludedExtensions []string `yaml:"excluded_extensions"`
	MaxChunkSize       int      `yaml:"max_chunk_size"` // characters
	MaxFileBytes       int64    `yaml:"max_file_bytes"`
	Workers            int      `yaml:"workers"`
	BatchSize          int      `yaml:"batch_size"`
	Snapshot           bool     `yaml:"snapshot"`
	SnapshotDir        string   `yaml:"snapshot_dir"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"` // Filter results below this score (0 = disabled)

	// Query embeddings are cached in memory; size 0 disables the cache.
	QueryCacheSize int           `yaml:"query_cache_size"`
	QueryCacheTTL  time.Duration `yaml:"query_cache_ttl"`
}

// AnswerConfig holds prompt assembly settings.
type AnswerConfig struct {
	ContextTokenBudget int `yaml:"context_token_budget"` // 0 = unlimited
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "openai", "hash"
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
}

// LLMConfig holds the answering model configuration.
type LLMConfig struct {
	Provider     string        `yaml:"provider"` // "openai"
	Model        string        `yaml:"model"`
	APIKeyEnv    string        `yaml:"api_key_env"`
	BaseURL      string        `yaml:"base_url"`
	Temperature  float32       `yaml:"temperature"`
	MaxTokens    int           `yaml:"max_tokens"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// StoreConfig selects the vector collection backend.
type StoreConfig struct {
	Backend string       `yaml:"backend"` // "bolt", "qdrant", "memory"
	Path    string       `yaml:"path"`
	Qdrant  QdrantConfig `yaml:"qdrant"`
}

type QdrantConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	APIKeyEnv string `yaml:"api_key_env"`
	UseTLS    bool   `yaml:"use_tls"`
}

// GitHubConfig configures the contents API extractor.
type GitHubConfig struct {
	APIURL   string `yaml:"api_url"`
	Ref      string `yaml:"ref"`
	TokenEnv string `yaml:"token_env"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// MetricsConfig holds metrics export configuration.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // write a node_exporter textfile after each command
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console", "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			Includes: []string{"**/*"},
			Excludes: []string{"**/.git/**", "**/node_modules/**", "**/vendor/**", "**/dist/**", "**/build/**", "**/__pycache__/**", "**/.reporag/**"},
			ExcludedExtensions: []string{
				".png", ".jpg", ".jpeg", ".gif", ".bmp", ".svg",
				".mp4", ".mp3", ".wav", ".avi", ".mov",
			},
			MaxChunkSize: 1500,
			MaxFileBytes: 1 << 20,
			Workers:      8,
			BatchSize:    64,
			Snapshot:     false,
			SnapshotDir:  ".",
		},
		Retrieve: RetrieveConfig{
			TopK:           5,
			MinScore:       0,
			QueryCacheSize: 256,
			QueryCacheTTL:  10 * time.Minute,
		},
		Answer: AnswerConfig{
			ContextTokenBudget: 6000,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
		},
		LLM: LLMConfig{
			Provider:     "openai",
			Model:        "gpt-4",
			APIKeyEnv:    "OPENAI_API_KEY",
			Temperature:  0.2,
			MaxTokens:    1000,
			MaxRetries:   3,
			RetryBackoff: time.Second,
		},
		Store: StoreConfig{
			Backend: "bolt",
			Path:    filepath.Join(".reporag", "index.db"),
			Qdrant: QdrantConfig{
				Host:      "localhost",
				Port:      6334,
				APIKeyEnv: "QDRANT_API_KEY",
			},
		},
		GitHub: GitHubConfig{
			APIURL:   "https://api.github.com",
			Ref:      "main",
			TokenEnv: "GITHUB_TOKEN",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
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
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for reporag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "reporag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".reporag", "config.yaml")
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

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Ingest.MaxChunkSize <= 0 {
		return fmt.Errorf("ingest.max_chunk_size must be positive, got %d", c.Ingest.MaxChunkSize)
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest.workers must be positive, got %d", c.Ingest.Workers)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batch_size must be positive, got %d", c.Ingest.BatchSize)
	}
	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("retrieve.top_k must be positive, got %d", c.Retrieve.TopK)
	}
	if c.Retrieve.QueryCacheSize < 0 {
		return fmt.Errorf("retrieve.query_cache_size must not be negative")
	}
	if c.Answer.ContextTokenBudget < 0 {
		return fmt.Errorf("answer.context_token_budget must not be negative")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative")
	}

	switch c.Embedding.Provider {
	case "openai":
	case "hash":
		if c.Embedding.Dimension <= 0 {
			return fmt.Errorf("embedding.dimension must be positive for the hash provider")
		}
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}

	if c.LLM.Provider != "openai" {
		return fmt.Errorf("unsupported llm provider: %s", c.LLM.Provider)
	}

	switch c.Store.Backend {
	case "bolt":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the bolt backend")
		}
	case "qdrant", "memory":
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Backend)
	}

	return nil
}

// StorePath resolves the bolt database path against dir.
func (c *Config) StorePath(dir string) string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(dir, c.Store.Path)
}

// EnsureStoreDir creates the directory holding the bolt database.
func (c *Config) EnsureStoreDir(dir string) error {
	return os.MkdirAll(filepath.Dir(c.StorePath(dir)), 0755)
}
