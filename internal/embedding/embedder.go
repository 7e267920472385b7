// Package embedding produces vector embeddings for paper chunks and
// queries, via a local Ollama server, an ONNX model, or a
// deterministic mock.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Ping(ctx context.Context) error
	Close() error
}
