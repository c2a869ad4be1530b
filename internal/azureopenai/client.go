// Package azureopenai is a minimal client for the Azure OpenAI REST API.
// It covers the two deployment operations the server needs: embeddings and
// chat completions.
package azureopenai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultAPIVersion is used when no API version is configured.
	DefaultAPIVersion = "2024-02-01"

	// DefaultTimeout bounds a single request when no timeout is configured.
	DefaultTimeout = 60 * time.Second

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 * 1024
)

// Config configures a Client.
type Config struct {
	// Endpoint is the resource URL (https://<name>.openai.azure.com) or the bare resource name.
	Endpoint   string
	APIKey     string
	APIVersion string
	Timeout    time.Duration

	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client calls deployments of one Azure OpenAI resource.
type Client struct {
	endpoint   string
	apiKey     string
	apiVersion string
	http       *http.Client
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("azure openai: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("azure openai: status %d: %s", e.StatusCode, e.Message)
}

// NewClient creates a client for the configured resource.
func NewClient(cfg Config) (*Client, error) {
	endpoint, err := ResolveEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, errors.New("azure openai api key is required")
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		endpoint:   endpoint,
		apiKey:     cfg.APIKey,
		apiVersion: apiVersion,
		http:       httpClient,
	}, nil
}

// ResolveEndpoint normalises a configured endpoint. A bare resource name
// becomes https://<name>.openai.azure.com.
func ResolveEndpoint(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", errors.New("azure openai endpoint is required")
	}

	if !strings.Contains(endpoint, "://") {
		if strings.ContainsAny(endpoint, "/.:") {
			return "", fmt.Errorf("invalid azure openai endpoint: %s", endpoint)
		}
		return "https://" + endpoint + ".openai.azure.com", nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid azure openai endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid azure openai endpoint: %s", endpoint)
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// Endpoint returns the resolved resource URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// deploymentURL builds the URL of an operation on a deployment.
func (c *Client) deploymentURL(deployment, operation string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/%s?api-version=%s",
		c.endpoint, url.PathEscape(deployment), operation, url.QueryEscape(c.apiVersion))
}

// do posts in as JSON to a deployment operation and decodes the response into out.
func (c *Client) do(ctx context.Context, deployment, operation string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.deploymentURL(deployment, operation), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", operation, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}

	return nil
}

func parseError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{StatusCode: resp.StatusCode}

	var envelope struct {
		Error struct {
			Code    any    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		if envelope.Error.Code != nil {
			apiErr.Code = fmt.Sprint(envelope.Error.Code)
		}
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(data))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
