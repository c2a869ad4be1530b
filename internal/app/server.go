package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/vraagbaak/internal/api"
	"github.com/sha1n/vraagbaak/internal/config"
	"github.com/sha1n/vraagbaak/internal/middleware"
	"github.com/sha1n/vraagbaak/internal/web"
)

// ShutdownTimeout bounds the graceful shutdown of the HTTP server.
const ShutdownTimeout = 10 * time.Second

// StartHTTPServer serves until ctx is cancelled, then shuts down gracefully
func StartHTTPServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening (HTTP)", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// NewHTTPServer creates the HTTP server for the chat API, the frontend and MCP over SSE
func NewHTTPServer(services *Services, settings *config.Settings) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle(api.AskPath, api.NewAskHandler(services.Asker, settings.RequestTimeout, slog.Default()))

	if services.MCP != nil {
		// Factory function returns the server instance for each request
		mux.Handle("/sse", mcp.NewSSEHandler(func(r *http.Request) *mcp.Server {
			return services.MCP
		}, nil))
	}
	mux.Handle("/", web.Handler(settings.StaticDir))

	handler := middleware.Chain(mux,
		middleware.CORS(middleware.ParseOrigins(settings.CORS.AllowedOrigins)),
		middleware.RequestLogger(slog.Default()),
	)

	return &http.Server{
		Addr:              settings.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
