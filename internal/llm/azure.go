package llm

import (
	"context"
	"errors"

	"github.com/sha1n/vraagbaak/internal/azureopenai"
)

// AzureCompleter calls an Azure OpenAI chat deployment.
type AzureCompleter struct {
	client     *azureopenai.Client
	deployment string
}

// NewAzureCompleter creates a completer for the given deployment.
func NewAzureCompleter(client *azureopenai.Client, deployment string) (*AzureCompleter, error) {
	if client == nil {
		return nil, errors.New("azure openai client cannot be nil")
	}
	if deployment == "" {
		return nil, errors.New("azure chat deployment is required")
	}
	return &AzureCompleter{client: client, deployment: deployment}, nil
}

// Complete sends the prompt as a single user message.
func (c *AzureCompleter) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	return c.client.ChatCompletion(ctx, c.deployment, []azureopenai.Message{
		{Role: "user", Content: prompt},
	}, temperature)
}

// ModelName returns the deployment name.
func (c *AzureCompleter) ModelName() string {
	return "azure/" + c.deployment
}
