package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/pkg/utils"
)

// OllamaEmbedder produces embeddings through a local Ollama server.
type OllamaEmbedder struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
	cache      *Cache
}

// NewOllamaEmbedder creates an embedder backed by the Ollama embeddings
// API at baseURL.
func NewOllamaEmbedder(baseURL, model string, dimensions, cacheSize int) *OllamaEmbedder {
	return &OllamaEmbedder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: 60 * time.Second},
		cache:      NewCache(cacheSize),
	}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed requests one embedding, serving repeated texts from the cache.
// The returned vector is unit length.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed via %s: %v: %w", e.baseURL, err, models.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embed via %s: status %d: %s: %w",
			e.baseURL, resp.StatusCode, strings.TrimSpace(string(msg)), models.ErrUpstreamUnavailable)
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embed response: %v: %w", err, models.ErrUpstreamUnavailable)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("embed via %s: empty embedding: %w", e.baseURL, models.ErrUpstreamUnavailable)
	}
	if e.dimensions > 0 && len(out.Embedding) != e.dimensions {
		return nil, fmt.Errorf("embed model %s returned %d dimensions, configured %d",
			e.model, len(out.Embedding), e.dimensions)
	}

	utils.NormalizeL2(out.Embedding)
	e.cache.Set(text, out.Embedding)
	return out.Embedding, nil
}

// EmbedBatch embeds each text in order.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dimensions
}

// Ping checks that the Ollama server answers.
func (e *OllamaEmbedder) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping %s: %v: %w", e.baseURL, err, models.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping %s: status %d: %w", e.baseURL, resp.StatusCode, models.ErrUpstreamUnavailable)
	}
	return nil
}

// Close is a no-op; the HTTP client needs no shutdown.
func (e *OllamaEmbedder) Close() error {
	return nil
}
