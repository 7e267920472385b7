// Package config provides configuration loading and structs for the Ronbun server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/ronbun/internal/models"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// AllowedOrigins are the CORS origins permitted to call the API
	// (the local web UI during development).
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig holds paths for the database, indices, and uploaded files.
type StorageConfig struct {
	DatabasePath     string `yaml:"database_path"`
	CatalogIndexPath string `yaml:"catalog_index_path"`
	VectorDir        string `yaml:"vector_dir"`
	UploadsDir       string `yaml:"uploads_dir"`
}

// EmbeddingConfig holds embedding collaborator settings.
// Provider is "ollama" (default), "onnx", or "mock".
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`   // ollama provider
	Model      string `yaml:"model"`      // ollama provider
	ModelPath  string `yaml:"model_path"` // onnx provider
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// GenerationConfig holds text-generation collaborator settings.
type GenerationConfig struct {
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Temperature    float64 `yaml:"temperature"`
}

// AnalysisConfig holds chunking and retrieval settings.
type AnalysisConfig struct {
	ChunkSize             int `yaml:"chunk_size"`    // maximum chunk size in words
	ChunkOverlap          int `yaml:"chunk_overlap"` // words shared between consecutive chunks
	RetrieveK             int `yaml:"retrieve_k"`
	CompareChunksPerPaper int `yaml:"compare_chunks_per_paper"`
}

// WatchConfig holds directory watch settings. Watched directories are
// inbox folders: PDFs dropped into them are ingested automatically.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies environment
// overrides and defaults, validates, and expands paths.
// Returns an error if the file cannot be read or parsed, or if the
// chunking constraint (overlap < size) is violated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(&cfg)
	ApplyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.CatalogIndexPath = expandPath(cfg.Storage.CatalogIndexPath, configDir)
	cfg.Storage.VectorDir = expandPath(cfg.Storage.VectorDir, configDir)
	cfg.Storage.UploadsDir = expandPath(cfg.Storage.UploadsDir, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Analysis.ChunkOverlap >= cfg.Analysis.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be less than chunk_size (%d): %w",
			cfg.Analysis.ChunkOverlap, cfg.Analysis.ChunkSize, models.ErrInvalidInput)
	}
	switch cfg.Embedding.Provider {
	case "ollama", "onnx", "mock":
	default:
		return fmt.Errorf("unknown embedding provider %q (supported: ollama, onnx, mock): %w",
			cfg.Embedding.Provider, models.ErrInvalidInput)
	}
	return nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
