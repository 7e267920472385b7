package generation

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
)

// OllamaGenerator generates text through a local Ollama server.
type OllamaGenerator struct {
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
}

// NewOllamaGenerator creates a generator for the given model. timeout
// bounds a single generation call.
func NewOllamaGenerator(baseURL, model string, temperature float64, timeout time.Duration) *OllamaGenerator {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaGenerator{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// Generate runs one non-streaming completion.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  g.model,
		Prompt: prompt,
		Stream: false,
		Options: map[string]interface{}{
			"temperature": g.temperature,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate via %s: %v: %w", g.baseURL, err, models.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("generate via %s: status %d: %s: %w",
			g.baseURL, resp.StatusCode, strings.TrimSpace(string(msg)), models.ErrUpstreamUnavailable)
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generate response: %v: %w", err, models.ErrUpstreamUnavailable)
	}
	return strings.TrimSpace(out.Response), nil
}

// Model returns the configured model name.
func (g *OllamaGenerator) Model() string {
	return g.model
}

// Ping checks that the Ollama server answers.
func (g *OllamaGenerator) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping %s: %v: %w", g.baseURL, err, models.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping %s: status %d: %w", g.baseURL, resp.StatusCode, models.ErrUpstreamUnavailable)
	}
	return nil
}
