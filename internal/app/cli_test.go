package app

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	// Verify all flags are registered
	expectedFlags := []string{
		"transport",
		"host",
		"port",
		"source",
		"index-dir",
		"static-dir",
		"request-timeout",
		"build-timeout",
		"build-lock-timeout",
		"log-level",
		"log-format",
		"cors-allowed-origins",
		"mcp-enabled",
		"embedding-provider",
		"embedding-batch-size",
		"embedding-cache-size",
		"embedding-dimensions",
		"chat-provider",
		"azure-endpoint",
		"azure-api-key",
		"azure-api-version",
		"azure-chat-deployment",
		"azure-embedding-deployment",
		"azure-timeout",
		"ollama-host",
		"ollama-chat-model",
		"ollama-embedding-model",
	}

	for _, name := range expectedFlags {
		assert.NotNil(t, flags.Lookup(name), "flag %q must be registered", name)
	}
}

func TestRegisterFlags_Shorthand(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	shorthandFlags := map[string]string{
		"transport":             "t",
		"host":                  "H",
		"port":                  "p",
		"source":                "s",
		"index-dir":             "i",
		"log-level":             "l",
		"embedding-provider":    "e",
		"chat-provider":         "c",
		"azure-api-key":         "k",
		"azure-chat-deployment": "d",
	}

	for name, shorthand := range shorthandFlags {
		flag := flags.Lookup(name)
		if assert.NotNil(t, flag, "flag %q not found", name) {
			assert.Equal(t, shorthand, flag.Shorthand, "shorthand of %q", name)
		}
	}
}

func TestRegisterFlags_SetValues(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	err := flags.Parse([]string{
		"--transport", "stdio",
		"--host", "localhost",
		"--port", "9090",
		"-s", "docs/handboek.txt",
		"--request-timeout", "45s",
		"--cors-allowed-origins", "http://a.example,http://b.example",
		"--mcp-enabled=false",
	})
	require.NoError(t, err)

	transport, _ := flags.GetString("transport")
	assert.Equal(t, "stdio", transport)

	host, _ := flags.GetString("host")
	assert.Equal(t, "localhost", host)

	port, _ := flags.GetInt("port")
	assert.Equal(t, 9090, port)

	source, _ := flags.GetString("source")
	assert.Equal(t, "docs/handboek.txt", source)

	timeout, _ := flags.GetDuration("request-timeout")
	assert.Equal(t, 45*time.Second, timeout)

	origins, _ := flags.GetStringSlice("cors-allowed-origins")
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, origins)

	mcpEnabled, _ := flags.GetBool("mcp-enabled")
	assert.False(t, mcpEnabled)
}
