// Package config defines the engine configuration schema with YAML loading
// and validation. All tuning constants (re-rank weights, importance
// heuristics, batch sizes) live here as configurable defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete RAG engine configuration.
type Config struct {
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Update     UpdateConfig     `yaml:"update" json:"update"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// ChunkingConfig configures hierarchical chunking and enhancement.
type ChunkingConfig struct {
	// MaxChunksPerFile caps the chunks emitted per document.
	MaxChunksPerFile int `yaml:"max_chunks_per_file" json:"max_chunks_per_file"`

	// MaxFindingsPerGroup is the number of medium/low findings grouped
	// into a single group chunk before splitting.
	MaxFindingsPerGroup int `yaml:"max_findings_per_group" json:"max_findings_per_group"`

	// WindowContextChars is the size of the sliding-window excerpt taken
	// from neighboring chunks during enhancement.
	WindowContextChars int `yaml:"window_context_chars" json:"window_context_chars"`
}

// EmbeddingsConfig configures the embedding provider and cache.
type EmbeddingsConfig struct {
	// Endpoint is the embedding API base URL.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// APIKey authenticates requests; empty means no auth header.
	APIKey string `yaml:"api_key" json:"api_key"`

	// Model is the embedding model identifier.
	Model string `yaml:"model" json:"model"`

	// Dimensions is the embedding vector dimensionality.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// MaxBatchSize is the provider's per-call item cap.
	MaxBatchSize int `yaml:"max_batch_size" json:"max_batch_size"`

	// CacheSize is the LRU embedding cache entry limit.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// MaxRetries bounds rate-limit retries per batch call.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// RequestsPerSecond throttles outbound provider calls (0 = unlimited).
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`

	// Timeout is the per-call provider timeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// SearchConfig configures selective search and re-ranking.
// The weights are empirically tuned defaults, not derived constants.
type SearchConfig struct {
	// MaxResults is the default result limit per search.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// SimilarityThreshold is the minimum cosine similarity for candidates.
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`

	// ImportanceWeight scales the stored importance score during re-ranking.
	ImportanceWeight float64 `yaml:"importance_weight" json:"importance_weight"`

	// FrameworkWeight scales the framework-overlap fraction during re-ranking.
	FrameworkWeight float64 `yaml:"framework_weight" json:"framework_weight"`

	// RecencyWeight scales the recency factor during re-ranking.
	RecencyWeight float64 `yaml:"recency_weight" json:"recency_weight"`

	// RecencyWindowDays is the window over which recency decays to zero.
	RecencyWindowDays int `yaml:"recency_window_days" json:"recency_window_days"`

	// TelemetryBuffer is the queue size of the async query-pattern logger.
	TelemetryBuffer int `yaml:"telemetry_buffer" json:"telemetry_buffer"`
}

// UpdateConfig configures incremental repository updates.
type UpdateConfig struct {
	// BatchSize is the number of file changes processed per batch.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// Concurrency is the number of files processed in parallel per batch.
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	// ChunkSize is the sliding-window size in characters.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`

	// ChunkOverlap is the overlap between consecutive windows.
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`

	// MaxChunksPerFile caps windows per file.
	MaxChunksPerFile int `yaml:"max_chunks_per_file" json:"max_chunks_per_file"`

	// IncludePatterns are glob patterns for files to process (empty = all).
	IncludePatterns []string `yaml:"include_patterns" json:"include_patterns"`

	// ExcludePatterns are glob patterns for files to skip (wins on conflict).
	ExcludePatterns []string `yaml:"exclude_patterns" json:"exclude_patterns"`

	// RetentionDays is how long stored chunks live before cleanup.
	RetentionDays int `yaml:"retention_days" json:"retention_days"`

	// ExtractMetadata enables code metadata extraction for code files.
	ExtractMetadata bool `yaml:"extract_metadata" json:"extract_metadata"`

	// ComputeImportance enables the importance-score heuristic.
	ComputeImportance bool `yaml:"compute_importance" json:"compute_importance"`

	// GenerateEmbeddings enables per-window embedding generation.
	GenerateEmbeddings bool `yaml:"generate_embeddings" json:"generate_embeddings"`
}

// StorageConfig configures the local document store.
type StorageConfig struct {
	// Path is the data directory for SQLite and the vector index.
	// Empty means in-memory (testing).
	Path string `yaml:"path" json:"path"`
}

// LoggingConfig mirrors logging.Config for YAML loading.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			MaxChunksPerFile:    50,
			MaxFindingsPerGroup: 5,
			WindowContextChars:  200,
		},
		Embeddings: EmbeddingsConfig{
			Endpoint:          "http://localhost:11434/v1",
			Model:             "text-embedding-3-large",
			Dimensions:        768,
			MaxBatchSize:      100,
			CacheSize:         1000,
			MaxRetries:        3,
			RequestsPerSecond: 0,
			Timeout:           60 * time.Second,
		},
		Search: SearchConfig{
			MaxResults:          10,
			SimilarityThreshold: 0.3,
			ImportanceWeight:    0.3,
			FrameworkWeight:     0.2,
			RecencyWeight:       0.1,
			RecencyWindowDays:   30,
			TelemetryBuffer:     256,
		},
		Update: UpdateConfig{
			BatchSize:          10,
			Concurrency:        4,
			ChunkSize:          1500,
			ChunkOverlap:       200,
			MaxChunksPerFile:   20,
			ExcludePatterns:    []string{"**/node_modules/**", "**/.git/**", "**/dist/**"},
			RetentionDays:      90,
			ExtractMetadata:    true,
			ComputeImportance:  true,
			GenerateEmbeddings: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file, layering it over defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Chunking.MaxChunksPerFile <= 0 {
		return fmt.Errorf("chunking.max_chunks_per_file must be positive, got %d", c.Chunking.MaxChunksPerFile)
	}
	if c.Chunking.WindowContextChars < 0 {
		return fmt.Errorf("chunking.window_context_chars must be non-negative, got %d", c.Chunking.WindowContextChars)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.MaxBatchSize <= 0 {
		return fmt.Errorf("embeddings.max_batch_size must be positive, got %d", c.Embeddings.MaxBatchSize)
	}
	if c.Search.SimilarityThreshold < -1 || c.Search.SimilarityThreshold > 1 {
		return fmt.Errorf("search.similarity_threshold must be in [-1,1], got %f", c.Search.SimilarityThreshold)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	if c.Update.ChunkOverlap >= c.Update.ChunkSize {
		return fmt.Errorf("update.chunk_overlap (%d) must be smaller than update.chunk_size (%d)",
			c.Update.ChunkOverlap, c.Update.ChunkSize)
	}
	if c.Update.BatchSize <= 0 {
		return fmt.Errorf("update.batch_size must be positive, got %d", c.Update.BatchSize)
	}
	if c.Update.Concurrency <= 0 {
		return fmt.Errorf("update.concurrency must be positive, got %d", c.Update.Concurrency)
	}
	return nil
}
