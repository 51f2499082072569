package inference

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Embedder produces a vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

// Embed calls the wrapped function.
func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// maxEmbedChars bounds the text sent to the embedding model. Long page
// extractions are truncated rather than rejected.
const maxEmbedChars = 2000

// OllamaEmbedder generates embeddings through a local Ollama server.
type OllamaEmbedder struct {
	embedder embeddings.Embedder
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an embedder against the given Ollama endpoint.
func NewOllamaEmbedder(serverURL, model string) (*OllamaEmbedder, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	return &OllamaEmbedder{embedder: embedder}, nil
}

// Embed returns the embedding vector for text, truncated to the model's
// effective context.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) > maxEmbedChars {
		text = text[:maxEmbedChars]
	}
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vec, nil
}
