package azureopenai

import (
	"context"
	"errors"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

// ChatCompletion sends the messages to a chat deployment and returns the
// content of the first choice.
func (c *Client) ChatCompletion(ctx context.Context, deployment string, messages []Message, temperature float64) (string, error) {
	var resp chatResponse
	req := chatRequest{Messages: messages, Temperature: temperature}
	if err := c.do(ctx, deployment, "chat/completions", req, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", errors.New("chat completion returned empty content")
	}

	return content, nil
}
