package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog(t *testing.T) {
	// Just verify it doesn't panic
	assert.NotPanics(t, func() { Log(validSettings()) })
}

func TestLogWithLogger_StdioTransport(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := validSettings()
	s.Transport = TransportStdio

	LogWithLogger(s, logger)

	output := buf.String()
	assert.Contains(t, output, "transport")
	// stdio transport should not log the HTTP settings
	assert.NotContains(t, output, "Config: host")
	assert.NotContains(t, output, "cors")
	assert.Contains(t, output, "index_dir")
}

func TestLogWithLogger_HTTPTransport(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	LogWithLogger(validSettings(), logger)

	output := buf.String()
	for _, want := range []string{"Config: host", "Config: port", "request_timeout", "cors.allowed_origins", "mcp.enabled"} {
		assert.Contains(t, output, want)
	}
}

func TestLogWithLogger_MasksAPIKey(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := validSettings()
	s.Azure.APIKey = "super-secret-key"

	LogWithLogger(s, logger)

	output := buf.String()
	assert.NotContains(t, output, "super-secret-key", "API key leaked into log output")
	assert.Contains(t, output, "****")
}

func TestLogWithLogger_ProviderSpecific(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := validSettings()
	s.Embedding.Provider = ProviderLocal
	s.Chat.Provider = ProviderOllama

	LogWithLogger(s, logger)

	output := buf.String()
	assert.NotContains(t, output, "azure", "Azure settings are logged only when Azure is used")
	assert.Contains(t, output, "ollama.chat_model")
	assert.NotContains(t, output, "ollama.embedding_model", "embeddings are local")
	assert.Contains(t, output, "embedding.dimensions")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		expected slog.Level
		wantErr  bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := ParseLevel(tt.name)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LogSettings{Level: "warn", Format: LogFormatJSON}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LogSettings{Level: "debug"}, &buf)
	require.NoError(t, err)

	logger.Debug("details")

	assert.Contains(t, buf.String(), "level=DEBUG")
}

func TestNewLogger_Invalid(t *testing.T) {
	_, err := NewLogger(LogSettings{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err, "unknown level")

	_, err = NewLogger(LogSettings{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err, "unknown format")
}

func TestSettingsLogValue_Masked(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logger.Info("settings", "settings", SettingsLogValue(*validSettings()))

	assert.NotContains(t, buf.String(), "secret")
	assert.Contains(t, buf.String(), "settings.azure.api_key=****")
}
