// Package config provides configuration management for LangLab.
// It loads settings from environment variables with the LANGLAB_ prefix
// and provides sensible defaults for all configuration options.
//
// Indexing sources (data directories, scrape URLs, chunking parameters) can
// additionally be supplied through an optional YAML file; values from the
// file take precedence over the built-in defaults.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the LangLab server.
type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Storage   StorageConfig
	Security  SecurityConfig
	Indexing  IndexingConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 8000)
	Host string // Server host (default: 127.0.0.1)
}

// LLMConfig contains model-provider configuration. The provider speaks the
// OpenAI chat-completions protocol; by default it points at OpenRouter.
type LLMConfig struct {
	APIKey        string  // Provider API key
	BaseURL       string  // Provider base URL (default: https://openrouter.ai/api/v1)
	DefaultModel  string  // Primary model identifier
	FallbackModel string  // Substituted once when the primary call fails
	Temperature   float64 // Sampling temperature (default: 0.7)
}

// EmbeddingConfig contains embedding-model configuration.
type EmbeddingConfig struct {
	Provider  string // Embedding provider: openai, ollama (default: openai)
	Model     string // Embedding model identifier
	OllamaURL string // Ollama API URL when Provider is ollama
}

// StorageConfig contains vector-store configuration.
type StorageConfig struct {
	Engine      string // Store engine: sqlite, postgres, chromem (default: sqlite)
	DataPath    string // Path to data directory for embedded engines (default: ./data)
	PostgresDSN string // Connection string when Engine is postgres
}

// SecurityConfig contains security and authentication settings.
// Development mode also gates exposure of the /docs route catalog.
type SecurityConfig struct {
	Mode     string // development or production (default: development)
	APIToken string // Bearer token required in production mode
}

// IndexingConfig describes the document sources indexed at startup.
type IndexingConfig struct {
	BasicDataPath    string   `yaml:"basic_data_path"`
	V2DataPath       string   `yaml:"v2_data_path"`
	AdvancedDataPath string   `yaml:"advanced_data_path"`
	ScrapeURLs       []string `yaml:"scrape_urls"`
	ChunkSize        int      `yaml:"chunk_size"`
	ChunkOverlap     int      `yaml:"chunk_overlap"`
}

// yamlFile is the on-disk shape of the optional configuration file.
type yamlFile struct {
	Indexing IndexingConfig `yaml:"indexing"`
}

// LoadConfig loads configuration from environment variables with sensible
// defaults, then merges the optional YAML file named by LANGLAB_CONFIG
// (or ./langlab.yaml when present).
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("LANGLAB_PORT", 8000),
			Host: getEnv("LANGLAB_HOST", "127.0.0.1"),
		},
		LLM: LLMConfig{
			APIKey:        getEnv("LANGLAB_OPENROUTER_API_KEY", ""),
			BaseURL:       getEnv("LANGLAB_OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			DefaultModel:  getEnv("LANGLAB_DEFAULT_MODEL", "meta-llama/llama-3.3-8b-instruct:free"),
			FallbackModel: getEnv("LANGLAB_FALLBACK_MODEL", "mistralai/mistral-7b-instruct:free"),
			Temperature:   getEnvFloat("LANGLAB_TEMPERATURE", 0.7),
		},
		Embedding: EmbeddingConfig{
			Provider:  getEnv("LANGLAB_EMBEDDING_PROVIDER", "openai"),
			Model:     getEnv("LANGLAB_EMBEDDING_MODEL", "text-embedding-3-small"),
			OllamaURL: getEnv("LANGLAB_OLLAMA_URL", "http://localhost:11434"),
		},
		Storage: StorageConfig{
			Engine:      getEnv("LANGLAB_STORAGE_ENGINE", "sqlite"),
			DataPath:    getEnv("LANGLAB_DATA_PATH", "./data"),
			PostgresDSN: getEnv("LANGLAB_POSTGRES_DSN", ""),
		},
		Security: SecurityConfig{
			Mode:     getEnv("LANGLAB_SECURITY_MODE", "development"),
			APIToken: getEnv("LANGLAB_API_TOKEN", ""),
		},
		Indexing: IndexingConfig{
			BasicDataPath:    "./data/a3",
			V2DataPath:       "./data/a3v2",
			AdvancedDataPath: "./data/a4v2",
			ChunkSize:        600,
			ChunkOverlap:     100,
		},
	}

	path := getEnv("LANGLAB_CONFIG", "")
	if path == "" {
		if _, err := os.Stat("langlab.yaml"); err == nil {
			path = "langlab.yaml"
		}
	}
	if path != "" {
		if err := cfg.mergeYAML(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// mergeYAML overlays indexing settings from the YAML file at path.
// Empty file values leave the defaults untouched.
func (c *Config) mergeYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	if f.Indexing.BasicDataPath != "" {
		c.Indexing.BasicDataPath = f.Indexing.BasicDataPath
	}
	if f.Indexing.V2DataPath != "" {
		c.Indexing.V2DataPath = f.Indexing.V2DataPath
	}
	if f.Indexing.AdvancedDataPath != "" {
		c.Indexing.AdvancedDataPath = f.Indexing.AdvancedDataPath
	}
	if len(f.Indexing.ScrapeURLs) > 0 {
		c.Indexing.ScrapeURLs = f.Indexing.ScrapeURLs
	}
	if f.Indexing.ChunkSize > 0 {
		c.Indexing.ChunkSize = f.Indexing.ChunkSize
	}
	if f.Indexing.ChunkOverlap > 0 {
		c.Indexing.ChunkOverlap = f.Indexing.ChunkOverlap
	}

	return nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
