package app

import "github.com/spf13/pflag"

// RegisterFlags registers all CLI flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: http or stdio")
	flags.StringP("host", "H", "", "Host for HTTP transport")
	flags.IntP("port", "p", 0, "Port for HTTP transport")
	flags.StringP("source", "s", "", "Path of the source document")
	flags.StringP("index-dir", "i", "", "Directory of the vector index")
	flags.String("static-dir", "", "Serve the frontend from this directory instead of the embedded one")
	flags.Duration("request-timeout", 0, "Timeout for answering one question")
	flags.Duration("build-timeout", 0, "Timeout for building the index")
	flags.Duration("build-lock-timeout", 0, "Timeout for waiting on another process building the index")
	flags.StringP("log-level", "l", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: text or json")
	flags.StringSlice("cors-allowed-origins", nil, "Allowed CORS origins (comma-separated, * for any)")
	flags.Bool("mcp-enabled", true, "Serve MCP over SSE at /sse (http transport)")
	flags.StringP("embedding-provider", "e", "", "Embedding provider: azure, ollama or local")
	flags.Int("embedding-batch-size", 0, "Number of chunks per embedding request")
	flags.Int("embedding-cache-size", 0, "Number of cached question embeddings")
	flags.Int("embedding-dimensions", 0, "Vector size of the local embedder")
	flags.StringP("chat-provider", "c", "", "Chat provider: azure or ollama")
	flags.String("azure-endpoint", "", "Azure OpenAI endpoint URL or resource name")
	flags.StringP("azure-api-key", "k", "", "Azure OpenAI API key")
	flags.String("azure-api-version", "", "Azure OpenAI API version")
	flags.StringP("azure-chat-deployment", "d", "", "Azure OpenAI chat deployment")
	flags.String("azure-embedding-deployment", "", "Azure OpenAI embeddings deployment (defaults to the chat deployment)")
	flags.Duration("azure-timeout", 0, "Timeout for one Azure OpenAI request")
	flags.String("ollama-host", "", "Ollama server URL")
	flags.String("ollama-chat-model", "", "Ollama chat model")
	flags.String("ollama-embedding-model", "", "Ollama embedding model")
}
