// Package embedding defines the embedding backend contract and its
// Ollama and OpenAI implementations.
package embedding

import "context"

// Backend produces embedding vectors for text. Output dimensionality is
// fixed per backend instance. Vectors are raw; callers normalize them
// before storage or comparison.
type Backend interface {
	Embed(ctx context.Context, text string) ([]float64, error)

	// ModelID identifies the backend and model. It keys the persisted
	// embedding cache, so a cache built under one ModelID is never
	// reused for another.
	ModelID() string
}
