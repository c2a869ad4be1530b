package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaCompleter calls the chat endpoint of an Ollama server.
type OllamaCompleter struct {
	client *api.Client
	model  string
}

// NewOllamaCompleter creates a completer for the given model.
func NewOllamaCompleter(client *api.Client, model string) (*OllamaCompleter, error) {
	if client == nil {
		return nil, errors.New("ollama client cannot be nil")
	}
	if model == "" {
		return nil, errors.New("ollama chat model is required")
	}
	return &OllamaCompleter{client: client, model: model}, nil
}

// Complete sends the prompt as a single user message and waits for the full answer.
func (c *OllamaCompleter) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{Role: "user", Content: prompt},
		},
		Stream: &stream,
		Options: map[string]any{
			"temperature": temperature,
		},
	}

	var answer strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		answer.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}

	if answer.Len() == 0 {
		return "", errors.New("ollama chat returned empty content")
	}

	return answer.String(), nil
}

// ModelName returns the Ollama model name.
func (c *OllamaCompleter) ModelName() string {
	return "ollama/" + c.model
}
