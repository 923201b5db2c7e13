package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the routine service.
type Config struct {
	Catalog    CatalogConfig    `yaml:"catalog"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Store      StoreConfig      `yaml:"store"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Search     SearchConfig     `yaml:"search"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// CatalogConfig holds the e-commerce catalog connection.
type CatalogConfig struct {
	Provider     string        `yaml:"provider"`     // "shopify"
	ShopDomain   string        `yaml:"shop_domain"`  // e.g., "example.myshopify.com"
	APIVersion   string        `yaml:"api_version"`  // e.g., "2024-10"
	TokenEnv     string        `yaml:"token_env"`    // Environment variable for the access token
	ChannelID    string        `yaml:"channel_id"`   // Optional publication filter
	StatusFilter string        `yaml:"status"`       // e.g., "active"
	PageSize     int           `yaml:"page_size"`
	Timeout      time.Duration `yaml:"timeout"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"`    // "openai", "ollama", "mock"
	Model     string        `yaml:"model"`       // e.g., "text-embedding-3-small"
	APIKeyEnv string        `yaml:"api_key_env"` // Environment variable for API key
	BaseURL   string        `yaml:"base_url"`
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout"`
	Breaker   bool          `yaml:"circuit_breaker"`
}

// GenerationConfig holds text generation configuration.
type GenerationConfig struct {
	Provider    string        `yaml:"provider"` // "openai", "deepseek", "ollama", "none"
	Model       string        `yaml:"model"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	BaseURL     string        `yaml:"base_url"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	Breaker     bool          `yaml:"circuit_breaker"`
}

// StoreConfig selects the product store backend.
type StoreConfig struct {
	Driver  string        `yaml:"driver"` // "bolt", "postgres"
	Path    string        `yaml:"path"`   // bolt database file
	DSNEnv  string        `yaml:"dsn_env"`
	Table   string        `yaml:"table"`
	Timeout time.Duration `yaml:"timeout"`
}

// IngestConfig holds catalog sync tuning.
type IngestConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	MaxItems      int           `yaml:"max_items"`
	MaxInputChars int           `yaml:"max_input_chars"`
	Delay         time.Duration `yaml:"delay"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
}

// SearchConfig holds search and recommendation defaults.
type SearchConfig struct {
	DefaultLimit   int           `yaml:"default_limit"`
	RecommendLimit int           `yaml:"recommend_limit"`
	Industry       string        `yaml:"industry"`
	CacheSize      int           `yaml:"cache_size"` // query embeddings kept; 0 disables
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	SyncInterval time.Duration `yaml:"sync_interval"` // 0 disables scheduled sync
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Provider:     "shopify",
			APIVersion:   "2024-10",
			TokenEnv:     "SHOPIFY_ACCESS_TOKEN",
			StatusFilter: "active",
			PageSize:     250,
			Timeout:      30 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			Timeout:   30 * time.Second,
			Breaker:   true,
		},
		Generation: GenerationConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   200,
			Temperature: 0.7,
			Timeout:     30 * time.Second,
			Breaker:     true,
		},
		Store: StoreConfig{
			Driver:  "bolt",
			Path:    filepath.Join(".routine", "catalog.db"),
			DSNEnv:  "DATABASE_URL",
			Table:   "products",
			Timeout: 30 * time.Second,
		},
		Ingest: IngestConfig{
			BatchSize:     20,
			MaxItems:      8000,
			MaxInputChars: 8000,
			Delay:         500 * time.Millisecond,
			RetryBackoff:  2 * time.Second,
		},
		Search: SearchConfig{
			DefaultLimit:   10,
			RecommendLimit: 30,
			Industry:       "haircare",
			CacheSize:      256,
			CacheTTL:       10 * time.Minute,
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
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for routine.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "routine.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".routine", "config.yaml")
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

// Validate checks values the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batch_size must be positive, got %d", c.Ingest.BatchSize)
	}
	if c.Ingest.MaxItems <= 0 {
		return fmt.Errorf("ingest.max_items must be positive, got %d", c.Ingest.MaxItems)
	}
	if c.Ingest.Delay < 0 || c.Ingest.RetryBackoff < 0 {
		return fmt.Errorf("ingest delays must not be negative")
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	switch c.Store.Driver {
	case "bolt", "postgres":
	default:
		return fmt.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if c.Search.DefaultLimit < 1 || c.Search.DefaultLimit > 100 {
		return fmt.Errorf("search.default_limit must be between 1 and 100, got %d", c.Search.DefaultLimit)
	}
	return nil
}

// StorePath resolves the bolt database path relative to dir.
func (c *Config) StorePath(dir string) string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(dir, c.Store.Path)
}

// EnsureDir ensures the parent directory of path exists.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}
