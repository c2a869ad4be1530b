// Package api exposes the question pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sha1n/vraagbaak/internal/domain"
	"github.com/sha1n/vraagbaak/internal/middleware"
	"github.com/sha1n/vraagbaak/internal/rag"
)

// AskPath is the route of the question endpoint.
const AskPath = "/api/ask"

// MaxBodyBytes limits the size of a question request body.
const MaxBodyBytes = 64 << 10

// User-facing messages. Internal failure detail only goes to the log.
const (
	MsgInvalidRequest = "Ongeldig verzoek."
	MsgEmptyQuestion  = "Stel een vraag."
	MsgInternal       = "Er ging iets mis."
)

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, question string) (*rag.Answer, error)
}

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Question *string `json:"question"`
}

// AskResponse is the success body of POST /api/ask.
type AskResponse struct {
	Answer string `json:"answer"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AskHandler serves POST /api/ask.
type AskHandler struct {
	asker   Asker
	timeout time.Duration
	logger  *slog.Logger
}

// NewAskHandler creates the handler. A zero timeout leaves requests bounded
// only by the client's connection; a nil logger uses slog.Default.
func NewAskHandler(asker Asker, timeout time.Duration, logger *slog.Logger) *AskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AskHandler{
		asker:   asker,
		timeout: timeout,
		logger:  logger,
	}
}

func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: MsgInvalidRequest})
		return
	}

	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		h.logger.Debug("Rejected malformed question request", "error", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: MsgInvalidRequest})
		return
	}
	if req.Question == nil || strings.TrimSpace(*req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: MsgEmptyQuestion})
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	answer, err := h.asker.Ask(ctx, *req.Question)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyQuestion) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: MsgEmptyQuestion})
			return
		}
		h.logger.Error("Failed to answer question",
			"request_id", middleware.RequestID(r.Context()),
			"kind", domain.ErrorKind(err),
			"error", err,
			"duration", time.Since(start),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: MsgInternal})
		return
	}

	h.logger.Info("Answered question", "request_id", middleware.RequestID(r.Context()), "sources", len(answer.Sources), "index_built", answer.IndexBuilt, "duration", time.Since(start))
	writeJSON(w, http.StatusOK, AskResponse{Answer: answer.Text})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}
