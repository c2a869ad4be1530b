package embedding

import (
	"context"
	"errors"

	"github.com/sha1n/vraagbaak/internal/azureopenai"
)

// AzureEmbedder calls an Azure OpenAI embeddings deployment.
type AzureEmbedder struct {
	client     *azureopenai.Client
	deployment string
}

// NewAzureEmbedder creates an embedder for the given deployment.
func NewAzureEmbedder(client *azureopenai.Client, deployment string) (*AzureEmbedder, error) {
	if client == nil {
		return nil, errors.New("azure openai client cannot be nil")
	}
	if deployment == "" {
		return nil, errors.New("azure embedding deployment is required")
	}
	return &AzureEmbedder{client: client, deployment: deployment}, nil
}

// Embed returns the vector for a single text.
func (e *AzureEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return first(e.EmbedBatch(ctx, []string{text}))
}

// EmbedBatch returns one vector per text.
func (e *AzureEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return e.client.Embeddings(ctx, e.deployment, texts)
}

// ModelName returns the deployment name.
func (e *AzureEmbedder) ModelName() string {
	return "azure/" + e.deployment
}
