package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.AllowedOrigins == nil {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/ronbun/data/db/papers.db"
	}
	if cfg.Storage.CatalogIndexPath == "" {
		cfg.Storage.CatalogIndexPath = "/usr/local/var/ronbun/data/indices/catalog"
	}
	if cfg.Storage.VectorDir == "" {
		cfg.Storage.VectorDir = "/usr/local/var/ronbun/data/indices/vectors"
	}
	if cfg.Storage.UploadsDir == "" {
		cfg.Storage.UploadsDir = "/usr/local/var/ronbun/data/uploads"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.Dimensions == 0 {
		if cfg.Embedding.Provider == "onnx" {
			cfg.Embedding.Dimensions = 384
		} else {
			cfg.Embedding.Dimensions = 768
		}
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "http://localhost:11434"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "llama3.2"
	}
	if cfg.Generation.TimeoutSeconds == 0 {
		cfg.Generation.TimeoutSeconds = 120
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.3
	}
	if cfg.Analysis.ChunkSize == 0 {
		cfg.Analysis.ChunkSize = 500
	}
	if cfg.Analysis.ChunkOverlap == 0 {
		cfg.Analysis.ChunkOverlap = 100
		// Keep the default overlap below explicitly small chunk sizes.
		if cfg.Analysis.ChunkSize <= 100 {
			cfg.Analysis.ChunkOverlap = cfg.Analysis.ChunkSize / 5
		}
	}
	if cfg.Analysis.RetrieveK == 0 {
		cfg.Analysis.RetrieveK = 8
	}
	if cfg.Analysis.CompareChunksPerPaper == 0 {
		cfg.Analysis.CompareChunksPerPaper = 3
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
