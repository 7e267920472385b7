//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

var errNoCGO = errors.New("ONNX embedder requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXEmbedder stub type when built without CGO (see onnx.go for real implementation).
type ONNXEmbedder struct{}

// NewONNXEmbedder returns an error when built without CGO (ONNX not available).
func NewONNXEmbedder(_ string, _, _, _ int) (*ONNXEmbedder, error) {
	return nil, errNoCGO
}

// Embed is unavailable without CGO.
func (e *ONNXEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, errNoCGO
}

// EmbedBatch is unavailable without CGO.
func (e *ONNXEmbedder) EmbedBatch(_ context.Context, _ []string) ([][]float32, error) {
	return nil, errNoCGO
}

// Dimensions returns zero without CGO.
func (e *ONNXEmbedder) Dimensions() int {
	return 0
}

// Ping is unavailable without CGO.
func (e *ONNXEmbedder) Ping(_ context.Context) error {
	return errNoCGO
}

// Close is a no-op.
func (e *ONNXEmbedder) Close() error {
	return nil
}
