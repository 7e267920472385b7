package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperjump/ronbun/internal/models"
)

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var req ollamaGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected stream=false")
		}
		if req.Model != "llama3.2" {
			t.Errorf("model=%q", req.Model)
		}
		if req.Prompt == "" {
			t.Error("empty prompt")
		}
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "  An answer [Page 2].\n"})
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL, "llama3.2", 0.3, 10*time.Second)
	got, err := g.Generate(context.Background(), "Summarize the paper.")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "An answer [Page 2]." {
		t.Errorf("got %q", got)
	}
	if g.Model() != "llama3.2" {
		t.Errorf("Model=%q", g.Model())
	}
}

func TestOllamaGenerateUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g := NewOllamaGenerator(url, "llama3.2", 0.3, time.Second)
	_, err := g.Generate(context.Background(), "prompt")
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if err := g.Ping(context.Background()); !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Errorf("Ping: expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestOllamaGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model is loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL, "llama3.2", 0.3, time.Second)
	_, err := g.Generate(context.Background(), "prompt")
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestOllamaGenerateCancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer func() {
		close(block)
		srv.Close()
	}()

	g := NewOllamaGenerator(srv.URL, "llama3.2", 0.3, 30*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := g.Generate(ctx, "prompt")
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestMockGenerator(t *testing.T) {
	m := NewMockGenerator("first", "second")
	ctx := context.Background()

	got, err := m.Generate(ctx, "p1")
	if err != nil || got != "first" {
		t.Fatalf("got %q, %v", got, err)
	}
	got, _ = m.Generate(ctx, "p2")
	if got != "second" {
		t.Errorf("got %q", got)
	}
	// Exhausted queue repeats the last response.
	got, _ = m.Generate(ctx, "p3")
	if got != "second" {
		t.Errorf("got %q", got)
	}
	if m.CallCount() != 3 {
		t.Errorf("CallCount=%d", m.CallCount())
	}
	if len(m.Prompts) != 3 || m.Prompts[0] != "p1" {
		t.Errorf("Prompts=%v", m.Prompts)
	}

	m.Err = errors.New("boom")
	if _, err := m.Generate(ctx, "p4"); err == nil {
		t.Error("expected scripted error")
	}
}
