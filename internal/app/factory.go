package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/ollama/ollama/api"

	"github.com/sha1n/vraagbaak/internal/azureopenai"
	"github.com/sha1n/vraagbaak/internal/chunker"
	"github.com/sha1n/vraagbaak/internal/config"
	"github.com/sha1n/vraagbaak/internal/embedding"
	"github.com/sha1n/vraagbaak/internal/ingest"
	"github.com/sha1n/vraagbaak/internal/llm"
	mcputil "github.com/sha1n/vraagbaak/internal/mcp"
	"github.com/sha1n/vraagbaak/internal/rag"
)

// ServerName is the implementation name announced over MCP.
const ServerName = "vraagbaak"

// Services holds the components shared by the transports.
type Services struct {
	Pipeline *ingest.Pipeline
	Asker    *rag.Asker

	// MCP is nil when the MCP endpoint is disabled.
	MCP *mcp.Server
}

// CreateServices wires providers, the ingestion pipeline, the asker and the
// MCP server from settings. The returned cleanup releases the loaded index.
func CreateServices(settings *config.Settings, version string) (*Services, func(), error) {
	embedder, err := NewEmbedder(settings)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	completer, err := NewCompleter(settings)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create completer: %w", err)
	}

	pipeline, err := ingest.NewPipeline(ingest.Config{
		SourcePath: settings.SourcePath,
		IndexDir:   settings.IndexDir,
		Splitter:   chunker.NewSplitter(),
		Embedder:   embedder,
		BatchSize:  settings.Embedding.BatchSize,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}

	asker, err := rag.NewAsker(rag.Config{
		IndexDir:         settings.IndexDir,
		Builder:          pipeline,
		Embedder:         embedder,
		Completer:        completer,
		QueryCacheSize:   settings.Embedding.CacheSize,
		BuildTimeout:     settings.BuildTimeout,
		BuildLockTimeout: settings.BuildLockTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create asker: %w", err)
	}

	services := &Services{
		Pipeline: pipeline,
		Asker:    asker,
	}
	if settings.Transport == config.TransportStdio || settings.MCP.Enabled {
		services.MCP = mcputil.CreateServer(mcputil.ServerConfig{
			Name:    ServerName,
			Version: version,
			Asker:   asker,
		})
	}

	slog.Info("Providers ready", "embedding", embedder.ModelName(), "chat", completer.ModelName())

	cleanup := func() {
		if err := asker.Close(); err != nil {
			slog.Error("Failed to close index", "error", err)
		}
	}
	return services, cleanup, nil
}

// NewEmbedder creates the configured embedding provider.
func NewEmbedder(settings *config.Settings) (embedding.Embedder, error) {
	switch settings.Embedding.Provider {
	case config.ProviderAzure:
		client, err := newAzureClient(&settings.Azure)
		if err != nil {
			return nil, err
		}
		return embedding.NewAzureEmbedder(client, settings.Azure.EmbeddingDeployment)
	case config.ProviderOllama:
		client, err := newOllamaClient(&settings.Ollama)
		if err != nil {
			return nil, err
		}
		return embedding.NewOllamaEmbedder(client, settings.Ollama.EmbeddingModel)
	case config.ProviderLocal:
		return embedding.NewHashEmbedder(settings.Embedding.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", settings.Embedding.Provider)
	}
}

// NewCompleter creates the configured chat provider.
func NewCompleter(settings *config.Settings) (llm.Completer, error) {
	switch settings.Chat.Provider {
	case config.ProviderAzure:
		client, err := newAzureClient(&settings.Azure)
		if err != nil {
			return nil, err
		}
		return llm.NewAzureCompleter(client, settings.Azure.ChatDeployment)
	case config.ProviderOllama:
		client, err := newOllamaClient(&settings.Ollama)
		if err != nil {
			return nil, err
		}
		return llm.NewOllamaCompleter(client, settings.Ollama.ChatModel)
	default:
		return nil, fmt.Errorf("unknown chat provider: %s", settings.Chat.Provider)
	}
}

func newAzureClient(s *config.AzureSettings) (*azureopenai.Client, error) {
	return azureopenai.NewClient(azureopenai.Config{
		Endpoint:   s.Endpoint,
		APIKey:     s.APIKey,
		APIVersion: s.APIVersion,
		Timeout:    s.Timeout,
	})
}

func newOllamaClient(s *config.OllamaSettings) (*api.Client, error) {
	if s.Host == "" {
		return nil, errors.New("ollama host cannot be empty")
	}
	base, err := url.Parse(s.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host: %w", err)
	}
	return api.NewClient(base, http.DefaultClient), nil
}
