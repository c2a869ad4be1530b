package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Transport constants
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

// Provider constants
const (
	ProviderAzure  = "azure"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"
)

// Log format constants
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// EnvPrefix prefixes every environment variable read by the server.
const EnvPrefix = "VRAAGBAAK"

// LogSettings configuration for logging
type LogSettings struct {
	Level  string `mapstructure:"level"`  // debug, info, warn or error
	Format string `mapstructure:"format"` // LogFormatText or LogFormatJSON
}

// CORSSettings configuration for cross-origin requests
type CORSSettings struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MCPSettings configuration for the MCP endpoint
type MCPSettings struct {
	Enabled bool `mapstructure:"enabled"`
}

// EmbeddingSettings configuration for the embedding provider
type EmbeddingSettings struct {
	Provider   string `mapstructure:"provider"` // ProviderAzure, ProviderOllama or ProviderLocal
	BatchSize  int    `mapstructure:"batch_size"`
	CacheSize  int    `mapstructure:"cache_size"`
	Dimensions int    `mapstructure:"dimensions"` // local provider only
}

// ChatSettings configuration for the chat provider
type ChatSettings struct {
	Provider string `mapstructure:"provider"` // ProviderAzure or ProviderOllama
}

// AzureSettings configuration for Azure OpenAI
type AzureSettings struct {
	Endpoint            string        `mapstructure:"endpoint"`
	APIKey              string        `mapstructure:"api_key"`
	APIVersion          string        `mapstructure:"api_version"`
	ChatDeployment      string        `mapstructure:"chat_deployment"`
	EmbeddingDeployment string        `mapstructure:"embedding_deployment"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

// OllamaSettings configuration for a local Ollama server
type OllamaSettings struct {
	Host           string `mapstructure:"host"`
	ChatModel      string `mapstructure:"chat_model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

// Settings application settings
type Settings struct {
	Transport        string            `mapstructure:"transport"`
	Host             string            `mapstructure:"host"`
	Port             int               `mapstructure:"port"`
	SourcePath       string            `mapstructure:"source_path"`
	IndexDir         string            `mapstructure:"index_dir"`
	StaticDir        string            `mapstructure:"static_dir"`
	RequestTimeout   time.Duration     `mapstructure:"request_timeout"`
	BuildTimeout     time.Duration     `mapstructure:"build_timeout"`
	BuildLockTimeout time.Duration     `mapstructure:"build_lock_timeout"`
	Log              LogSettings       `mapstructure:"log"`
	CORS             CORSSettings      `mapstructure:"cors"`
	MCP              MCPSettings       `mapstructure:"mcp"`
	Embedding        EmbeddingSettings `mapstructure:"embedding"`
	Chat             ChatSettings      `mapstructure:"chat"`
	Azure            AzureSettings     `mapstructure:"azure"`
	Ollama           OllamaSettings    `mapstructure:"ollama"`
}

// Addr returns the HTTP listen address.
func (s *Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DotEnvFile is read from the working directory when present.
const DotEnvFile = ".env"

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}

	v := viper.New()

	// Default values
	v.SetDefault("transport", TransportHTTP)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 3000)
	v.SetDefault("source_path", filepath.Join("documents", "voorbeeld.txt"))
	v.SetDefault("index_dir", "vector_index")
	v.SetDefault("static_dir", "")
	v.SetDefault("request_timeout", 2*time.Minute)
	v.SetDefault("build_timeout", 10*time.Minute)
	v.SetDefault("build_lock_timeout", 10*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", LogFormatText)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("mcp.enabled", true)

	// Provider defaults
	v.SetDefault("embedding.provider", ProviderAzure)
	v.SetDefault("embedding.batch_size", 16)
	v.SetDefault("embedding.cache_size", 1000)
	v.SetDefault("embedding.dimensions", 256)
	v.SetDefault("chat.provider", ProviderAzure)
	v.SetDefault("azure.api_version", "2024-02-01")
	v.SetDefault("azure.timeout", 60*time.Second)
	v.SetDefault("ollama.host", "http://localhost:11434")
	v.SetDefault("ollama.chat_model", "llama3")
	v.SetDefault("ollama.embedding_model", "nomic-embed-text")

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind nested keys explicitly; the second name is the plain variable
	// a standard Azure OpenAI deployment already exports.
	_ = v.BindEnv("port", "VRAAGBAAK_PORT", "PORT")
	_ = v.BindEnv("log.level", "VRAAGBAAK_LOG_LEVEL")
	_ = v.BindEnv("log.format", "VRAAGBAAK_LOG_FORMAT")
	_ = v.BindEnv("cors.allowed_origins", "VRAAGBAAK_CORS_ALLOWED_ORIGINS")
	_ = v.BindEnv("mcp.enabled", "VRAAGBAAK_MCP_ENABLED")
	_ = v.BindEnv("embedding.provider", "VRAAGBAAK_EMBEDDING_PROVIDER")
	_ = v.BindEnv("embedding.batch_size", "VRAAGBAAK_EMBEDDING_BATCH_SIZE")
	_ = v.BindEnv("embedding.cache_size", "VRAAGBAAK_EMBEDDING_CACHE_SIZE")
	_ = v.BindEnv("embedding.dimensions", "VRAAGBAAK_EMBEDDING_DIMENSIONS")
	_ = v.BindEnv("chat.provider", "VRAAGBAAK_CHAT_PROVIDER")
	_ = v.BindEnv("azure.endpoint", "VRAAGBAAK_AZURE_ENDPOINT", "AZURE_OPENAI_ENDPOINT")
	_ = v.BindEnv("azure.api_key", "VRAAGBAAK_AZURE_API_KEY", "AZURE_OPENAI_API_KEY")
	_ = v.BindEnv("azure.api_version", "VRAAGBAAK_AZURE_API_VERSION", "AZURE_OPENAI_API_VERSION")
	_ = v.BindEnv("azure.chat_deployment", "VRAAGBAAK_AZURE_CHAT_DEPLOYMENT", "AZURE_OPENAI_DEPLOYMENT_NAME")
	_ = v.BindEnv("azure.embedding_deployment", "VRAAGBAAK_AZURE_EMBEDDING_DEPLOYMENT", "AZURE_OPENAI_EMBEDDINGS_DEPLOYMENT_NAME")
	_ = v.BindEnv("azure.timeout", "VRAAGBAAK_AZURE_TIMEOUT")
	_ = v.BindEnv("ollama.host", "VRAAGBAAK_OLLAMA_HOST")
	_ = v.BindEnv("ollama.chat_model", "VRAAGBAAK_OLLAMA_CHAT_MODEL")
	_ = v.BindEnv("ollama.embedding_model", "VRAAGBAAK_OLLAMA_EMBEDDING_MODEL")

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		bindings := map[string]string{
			"transport":                  "transport",
			"host":                       "host",
			"port":                       "port",
			"source_path":                "source",
			"index_dir":                  "index-dir",
			"static_dir":                 "static-dir",
			"request_timeout":            "request-timeout",
			"build_timeout":              "build-timeout",
			"build_lock_timeout":         "build-lock-timeout",
			"log.level":                  "log-level",
			"log.format":                 "log-format",
			"cors.allowed_origins":       "cors-allowed-origins",
			"mcp.enabled":                "mcp-enabled",
			"embedding.provider":         "embedding-provider",
			"embedding.batch_size":       "embedding-batch-size",
			"embedding.cache_size":       "embedding-cache-size",
			"embedding.dimensions":       "embedding-dimensions",
			"chat.provider":              "chat-provider",
			"azure.endpoint":             "azure-endpoint",
			"azure.api_key":              "azure-api-key",
			"azure.api_version":          "azure-api-version",
			"azure.chat_deployment":      "azure-chat-deployment",
			"azure.embedding_deployment": "azure-embedding-deployment",
			"azure.timeout":              "azure-timeout",
			"ollama.host":                "ollama-host",
			"ollama.chat_model":          "ollama-chat-model",
			"ollama.embedding_model":     "ollama-embedding-model",
		}
		for key, name := range bindings {
			if f := flags.Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	// Plain lowercase keys in .env are read as config values
	v.SetConfigName(DotEnvFile)
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// Comma separated origins arrive as a single element from the environment
	settings.CORS.AllowedOrigins = splitList(settings.CORS.AllowedOrigins)

	// One deployment may serve both chat and embeddings
	if settings.Azure.EmbeddingDeployment == "" {
		settings.Azure.EmbeddingDeployment = settings.Azure.ChatDeployment
	}

	settings.SourcePath = expandHomeDir(settings.SourcePath)
	settings.IndexDir = expandHomeDir(settings.IndexDir)
	settings.StaticDir = expandHomeDir(settings.StaticDir)

	return &settings, nil
}

// loadDotEnv exports the variables of a .env file that are not set in the
// environment, so the environment bindings see them. Empty counts as unset.
func loadDotEnv(path string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	for key, value := range env {
		if os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to export %s: %w", key, err)
		}
	}
	return nil
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// splitList splits comma separated entries and drops empty ones
func splitList(s []string) []string {
	var result []string
	for _, item := range s {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
	}
	return result
}

// UsesProvider reports whether the embedding or chat provider is p.
func (s *Settings) UsesProvider(p string) bool {
	return s.Embedding.Provider == p || s.Chat.Provider == p
}

// ValidateSettings checks for invalid or incomplete configuration.
func ValidateSettings(s *Settings) error {
	// Validate transport type
	switch s.Transport {
	case TransportHTTP, TransportStdio:
		// valid
	default:
		return errors.New("transport must be 'http' or 'stdio', got: " + s.Transport)
	}

	if s.Transport == TransportHTTP && (s.Port <= 0 || s.Port > 65535) {
		return fmt.Errorf("port must be between 1 and 65535, got: %d", s.Port)
	}

	if s.SourcePath == "" {
		return errors.New("source cannot be empty")
	}
	if s.IndexDir == "" {
		return errors.New("index-dir cannot be empty")
	}

	if s.RequestTimeout <= 0 {
		return errors.New("request-timeout must be positive")
	}
	if s.BuildTimeout <= 0 {
		return errors.New("build-timeout must be positive")
	}
	if s.BuildLockTimeout <= 0 {
		return errors.New("build-lock-timeout must be positive")
	}

	if _, err := ParseLevel(s.Log.Level); err != nil {
		return err
	}
	switch s.Log.Format {
	case LogFormatText, LogFormatJSON, "":
		// valid
	default:
		return errors.New("log-format must be 'text' or 'json', got: " + s.Log.Format)
	}

	if err := validateEmbeddingSettings(&s.Embedding); err != nil {
		return err
	}

	switch s.Chat.Provider {
	case ProviderAzure, ProviderOllama:
		// valid
	default:
		return errors.New("chat-provider must be 'azure' or 'ollama', got: " + s.Chat.Provider)
	}

	if s.UsesProvider(ProviderAzure) {
		if err := validateAzureSettings(s); err != nil {
			return err
		}
	}

	if s.UsesProvider(ProviderOllama) {
		if err := validateOllamaSettings(s); err != nil {
			return err
		}
	}

	return nil
}

// validateEmbeddingSettings validates the embedding configuration
func validateEmbeddingSettings(e *EmbeddingSettings) error {
	switch e.Provider {
	case ProviderAzure, ProviderOllama, ProviderLocal:
		// valid
	default:
		return errors.New("embedding-provider must be 'azure', 'ollama' or 'local', got: " + e.Provider)
	}

	if e.BatchSize <= 0 {
		return errors.New("embedding-batch-size must be positive")
	}
	if e.CacheSize < 0 {
		return errors.New("embedding-cache-size cannot be negative")
	}
	if e.Provider == ProviderLocal && e.Dimensions <= 0 {
		return errors.New("embedding-dimensions must be positive")
	}

	return nil
}

// validateAzureSettings validates the Azure OpenAI configuration
func validateAzureSettings(s *Settings) error {
	a := &s.Azure
	if a.Endpoint == "" {
		return errors.New("azure provider requires azure-endpoint (AZURE_OPENAI_ENDPOINT)")
	}
	if a.APIKey == "" {
		return errors.New("azure provider requires azure-api-key (AZURE_OPENAI_API_KEY)")
	}
	if a.APIVersion == "" {
		return errors.New("azure-api-version cannot be empty")
	}
	if s.Chat.Provider == ProviderAzure && a.ChatDeployment == "" {
		return errors.New("azure chat provider requires azure-chat-deployment (AZURE_OPENAI_DEPLOYMENT_NAME)")
	}
	if s.Embedding.Provider == ProviderAzure && a.EmbeddingDeployment == "" {
		return errors.New("azure embedding provider requires azure-embedding-deployment")
	}
	if a.Timeout <= 0 {
		return errors.New("azure-timeout must be positive")
	}
	return nil
}

// validateOllamaSettings validates the Ollama configuration
func validateOllamaSettings(s *Settings) error {
	o := &s.Ollama
	u, err := url.Parse(o.Host)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("ollama-host must be an absolute URL, got: " + o.Host)
	}
	if s.Chat.Provider == ProviderOllama && o.ChatModel == "" {
		return errors.New("ollama chat provider requires ollama-chat-model")
	}
	if s.Embedding.Provider == ProviderOllama && o.EmbeddingModel == "" {
		return errors.New("ollama embedding provider requires ollama-embedding-model")
	}
	return nil
}
