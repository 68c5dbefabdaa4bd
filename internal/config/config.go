// Package config loads repoindex configuration.
//
// Precedence (highest to lowest):
//  1. Environment variables (REPOINDEX_EMBEDDING_BATCH_SIZE -> embedding.batch_size)
//  2. Legacy variables: OPENAI_API_KEY, VECTOR_EMBEDDING_DIM, DATABASE_URL
//  3. YAML config file
//  4. Defaults()
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the root configuration
type Config struct {
	Storage   Storage   `koanf:"storage"`
	Embedding Embedding `koanf:"embedding"`
	Chunking  Chunking  `koanf:"chunking"`
	Indexer   Indexer   `koanf:"indexer"`
	Scanner   Scanner   `koanf:"scanner"`
	Logging   Logging   `koanf:"logging"`
	Progress  Progress  `koanf:"progress"`
	Metrics   Metrics   `koanf:"metrics"`
}

// Storage selects and configures the vector store backend
type Storage struct {
	Driver          string `koanf:"driver"` // "sqlite" or "postgres"
	SQLitePath      string `koanf:"sqlite_path"`
	PostgresDSN     string `koanf:"postgres_dsn"`
	MaxConns        int32  `koanf:"max_conns"`
	InsertBatchSize int    `koanf:"insert_batch_size"`
}

// Embedding configures the embedding client and provider
type Embedding struct {
	Provider    string        `koanf:"provider"` // "openai", "jina" or "local"
	Model       string        `koanf:"model"`    // empty = the provider's default model
	BaseURL     string        `koanf:"base_url"`
	APIKey      string        `koanf:"api_key"`
	Dimension   int           `koanf:"dimension"` // 0 = static table, then probe
	BatchSize   int           `koanf:"batch_size"`
	Parallelism int           `koanf:"parallelism"`
	MaxRetries  int           `koanf:"max_retries"`
	BaseDelay   time.Duration `koanf:"base_delay"`
	MaxDelay    time.Duration `koanf:"max_delay"`
	RateLimit   float64       `koanf:"rate_limit"` // requests per second, 0 = unlimited
	Timeout     time.Duration `koanf:"timeout"`
	CacheSize   int           `koanf:"cache_size"`
}

// Chunking configures target chunk size and overlap in characters
type Chunking struct {
	TargetSize int `koanf:"target_size"`
	Overlap    int `koanf:"overlap"`
}

// Indexer configures the orchestrator
type Indexer struct {
	Workers      int `koanf:"workers"`
	SampleFiles  int `koanf:"sample_files"`
	CacheEntries int `koanf:"cache_entries"`
}

// Scanner overrides the default include/exclude rules when non-empty
type Scanner struct {
	SkipDirs        []string `koanf:"skip_dirs"`
	SkipExtensions  []string `koanf:"skip_extensions"`
	AllowExtensions []string `koanf:"allow_extensions"`
	MaxFileSize     int64    `koanf:"max_file_size"`
}

// Logging configures the zap logger
type Logging struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "json" or "console"
}

// Progress configures the external progress sink
type Progress struct {
	NATSURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// Metrics configures the Prometheus endpoint
type Metrics struct {
	Addr string `koanf:"addr"` // empty disables the endpoint
}

// Defaults returns a Config with sensible defaults
func Defaults() *Config {
	return &Config{
		Storage: Storage{
			Driver:          "sqlite",
			SQLitePath:      "repoindex.db",
			MaxConns:        10,
			InsertBatchSize: 2000,
		},
		Embedding: Embedding{
			Provider:    "openai",
			BaseURL:     "https://api.openai.com",
			BatchSize:   64,
			Parallelism: 4,
			MaxRetries:  3,
			BaseDelay:   1500 * time.Millisecond,
			MaxDelay:    30 * time.Second,
			Timeout:     60 * time.Second,
			CacheSize:   10000,
		},
		Chunking: Chunking{
			TargetSize: 1200,
			Overlap:    150,
		},
		Indexer: Indexer{
			Workers:      8,
			SampleFiles:  20,
			CacheEntries: 256,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Progress: Progress{
			SubjectPrefix: "repoindex.progress",
		},
	}
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite driver"))
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver))
	}
	if c.Storage.InsertBatchSize < 1 {
		errs = append(errs, errors.New("storage.insert_batch_size must be >= 1"))
	}
	if c.Embedding.BatchSize < 1 {
		errs = append(errs, errors.New("embedding.batch_size must be >= 1"))
	}
	if c.Embedding.Parallelism < 1 {
		errs = append(errs, errors.New("embedding.parallelism must be >= 1"))
	}
	if c.Embedding.MaxRetries < 0 {
		errs = append(errs, errors.New("embedding.max_retries must be >= 0"))
	}
	if c.Embedding.Dimension < 0 {
		errs = append(errs, errors.New("embedding.dimension must be >= 0"))
	}
	if c.Chunking.TargetSize < 1 {
		errs = append(errs, errors.New("chunking.target_size must be >= 1"))
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.TargetSize {
		errs = append(errs, errors.New("chunking.overlap must be >= 0 and < chunking.target_size"))
	}
	if c.Indexer.Workers < 1 {
		errs = append(errs, errors.New("indexer.workers must be >= 1"))
	}
	return errors.Join(errs...)
}
