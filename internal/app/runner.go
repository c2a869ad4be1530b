package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/pflag"

	"github.com/sha1n/vraagbaak/internal/config"
)

// RunParams contains dependencies for the run function
type RunParams struct {
	LoadSettings      func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings     func(*config.Settings) error
	CreateServices    func(*config.Settings, string) (*Services, func(), error)
	StartHTTPServer   func(context.Context, *http.Server) error
	CustomIOTransport mcp.Transport // Optional: for testing with custom IO
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:    config.LoadSettingsWithFlags,
		ValidSettings:   config.ValidateSettings,
		CreateServices:  CreateServices,
		StartHTTPServer: StartHTTPServer,
	}
}

// RunWithDeps executes the server with the provided dependencies
func RunWithDeps(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	settings, services, cleanup, err := setup(params, flags, version)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	if settings.Transport == config.TransportStdio {
		if services.MCP == nil {
			return errors.New("stdio transport requires an MCP server")
		}
		// Use custom transport if provided (for testing), otherwise use stdio
		transport := params.CustomIOTransport
		if transport == nil {
			transport = &mcp.StdioTransport{}
		}
		return services.MCP.Run(ctx, transport)
	}

	srv := NewHTTPServer(services, settings)
	slog.Info("Starting HTTP server", "host", settings.Host, "port", settings.Port)
	return params.StartHTTPServer(ctx, srv)
}

// RunIndex builds the index ahead of time. With force an existing index is rebuilt.
func RunIndex(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string, force bool) error {
	_, services, cleanup, err := setup(params, flags, version)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	if force {
		err = services.Asker.Rebuild(ctx)
	} else {
		err = services.Asker.Prepare(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}

	if manifest, ok := services.Asker.Manifest(); ok {
		slog.Info("Index ready",
			"dir", services.Pipeline.IndexDir(),
			"build_id", manifest.BuildID,
			"chunks", manifest.ChunkCount,
			"built", services.Asker.Builds() > 0)
	}
	return nil
}

func setup(params RunParams, flags *pflag.FlagSet, version string) (*config.Settings, *Services, func(), error) {
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if err := params.ValidSettings(settings); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Always log to stderr; stdout carries the stdio transport
	logger, err := config.NewLogger(settings.Log, os.Stderr)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	slog.SetDefault(logger)

	slog.Info("Starting vraagbaak", "version", version)
	config.Log(settings)

	services, cleanup, err := params.CreateServices(settings, version)
	if err != nil {
		return nil, nil, nil, err
	}
	if services == nil || services.Asker == nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, nil, nil, errors.New("no services were created")
	}
	return settings, services, cleanup, nil
}
