package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/ollama/ollama/api"
)

// OllamaEmbedder calls the embed endpoint of an Ollama server.
type OllamaEmbedder struct {
	client *api.Client
	model  string
}

// NewOllamaEmbedder creates an embedder for the given model.
func NewOllamaEmbedder(client *api.Client, model string) (*OllamaEmbedder, error) {
	if client == nil {
		return nil, errors.New("ollama client cannot be nil")
	}
	if model == "" {
		return nil, errors.New("ollama embedding model is required")
	}
	return &OllamaEmbedder{client: client, model: model}, nil
}

// Embed returns the vector for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return first(e.EmbedBatch(ctx, []string{text}))
}

// EmbedBatch returns one vector per text.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed failed: %w", err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, errUnexpectedCount(len(texts), len(resp.Embeddings))
	}
	for i, v := range resp.Embeddings {
		if len(v) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
	}

	return resp.Embeddings, nil
}

// ModelName returns the Ollama model name.
func (e *OllamaEmbedder) ModelName() string {
	return "ollama/" + e.model
}
