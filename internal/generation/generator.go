// Package generation produces prose through a locally hosted language
// model.
package generation

import "context"

// Generator turns a prompt into generated text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
	Ping(ctx context.Context) error
}
