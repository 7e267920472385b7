package config

import "os"

// applyEnv overrides selected config values from RONBUN_* environment
// variables. main loads a .env file (if present) before config is read,
// so these also cover .env entries.
func applyEnv(cfg *Config) {
	if v := os.Getenv("RONBUN_DEBUG"); v == "1" || v == "true" {
		cfg.Debug = true
	}
	if v := os.Getenv("RONBUN_OLLAMA_URL"); v != "" {
		cfg.Embedding.BaseURL = v
		cfg.Generation.BaseURL = v
	}
	if v := os.Getenv("RONBUN_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("RONBUN_GEN_MODEL"); v != "" {
		cfg.Generation.Model = v
	}
	if v := os.Getenv("RONBUN_DATABASE_PATH"); v != "" {
		cfg.Storage.DatabasePath = v
	}
}
