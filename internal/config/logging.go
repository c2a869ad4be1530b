package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseLevel converts a level name to a slog.Level. An empty name is info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log-level must be one of debug, info, warn, error, got: %s", name)
	}
}

// NewLogger creates a logger writing to w with the configured level and format
func NewLogger(s LogSettings, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(s.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	switch s.Format {
	case LogFormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case LogFormatText, "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", s.Format)
	}
}

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: transport", "value", s.Transport)
	if s.Transport == TransportHTTP {
		logger.InfoContext(ctx, "Config: host", "value", s.Host)
		logger.InfoContext(ctx, "Config: port", "value", s.Port)
		logger.InfoContext(ctx, "Config: static_dir", "value", s.StaticDir)
		logger.InfoContext(ctx, "Config: request_timeout", "value", s.RequestTimeout)
		logger.InfoContext(ctx, "Config: cors.allowed_origins", "value", s.CORS.AllowedOrigins)
		logger.InfoContext(ctx, "Config: mcp.enabled", "value", s.MCP.Enabled)
	}

	logger.InfoContext(ctx, "Config: source_path", "value", s.SourcePath)
	logger.InfoContext(ctx, "Config: index_dir", "value", s.IndexDir)
	logger.InfoContext(ctx, "Config: build_timeout", "value", s.BuildTimeout)
	logger.InfoContext(ctx, "Config: build_lock_timeout", "value", s.BuildLockTimeout)

	logger.InfoContext(ctx, "Config: embedding.provider", "value", s.Embedding.Provider)
	logger.InfoContext(ctx, "Config: embedding.batch_size", "value", s.Embedding.BatchSize)
	logger.InfoContext(ctx, "Config: embedding.cache_size", "value", s.Embedding.CacheSize)
	if s.Embedding.Provider == ProviderLocal {
		logger.InfoContext(ctx, "Config: embedding.dimensions", "value", s.Embedding.Dimensions)
	}
	logger.InfoContext(ctx, "Config: chat.provider", "value", s.Chat.Provider)

	if s.UsesProvider(ProviderAzure) {
		logger.InfoContext(ctx, "Config: azure.endpoint", "value", s.Azure.Endpoint)
		logger.InfoContext(ctx, "Config: azure.api_key", "value", mask(s.Azure.APIKey))
		logger.InfoContext(ctx, "Config: azure.api_version", "value", s.Azure.APIVersion)
		if s.Chat.Provider == ProviderAzure {
			logger.InfoContext(ctx, "Config: azure.chat_deployment", "value", s.Azure.ChatDeployment)
		}
		if s.Embedding.Provider == ProviderAzure {
			logger.InfoContext(ctx, "Config: azure.embedding_deployment", "value", s.Azure.EmbeddingDeployment)
		}
	}

	if s.UsesProvider(ProviderOllama) {
		logger.InfoContext(ctx, "Config: ollama.host", "value", s.Ollama.Host)
		if s.Chat.Provider == ProviderOllama {
			logger.InfoContext(ctx, "Config: ollama.chat_model", "value", s.Ollama.ChatModel)
		}
		if s.Embedding.Provider == ProviderOllama {
			logger.InfoContext(ctx, "Config: ollama.embedding_model", "value", s.Ollama.EmbeddingModel)
		}
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}

// AzureSettingsLogValue returns a slog.Value for AzureSettings with masked data
func AzureSettingsLogValue(s AzureSettings) slog.Value {
	return slog.GroupValue(
		slog.String("endpoint", s.Endpoint),
		slog.String("api_key", mask(s.APIKey)),
		slog.String("api_version", s.APIVersion),
		slog.String("chat_deployment", s.ChatDeployment),
		slog.String("embedding_deployment", s.EmbeddingDeployment),
		slog.Duration("timeout", s.Timeout),
	)
}

// SettingsLogValue returns a slog.Value for Settings with masked data
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("transport", s.Transport),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.String("source_path", s.SourcePath),
		slog.String("index_dir", s.IndexDir),
		slog.String("embedding_provider", s.Embedding.Provider),
		slog.String("chat_provider", s.Chat.Provider),
		slog.Any("azure", AzureSettingsLogValue(s.Azure)),
	)
}
