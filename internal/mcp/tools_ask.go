package mcp

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sha1n/vraagbaak/internal/domain"
	"github.com/sha1n/vraagbaak/internal/rag"
)

// AskToolName is the name of the question tool.
const AskToolName = "ask"

// failureMessage is returned for every pipeline failure; details are logged.
const failureMessage = "Er ging iets mis."

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, question string) (*rag.Answer, error)
}

// AskArgument defines ask parameters.
type AskArgument struct {
	Question string `json:"question" jsonschema_description:"Question about the document, preferably in Dutch"`
}

// AskHandler handles the ask MCP tool.
type AskHandler struct {
	asker Asker
}

// NewAskHandler creates a new ask handler.
func NewAskHandler(asker Asker) *AskHandler {
	return &AskHandler{
		asker: asker,
	}
}

// Handle answers the question from the indexed document.
func (h *AskHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args AskArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Question) == "" {
		return errorResult("Question cannot be empty"), nil, nil
	}

	answer, err := h.asker.Ask(ctx, args.Question)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyQuestion) {
			return errorResult("Question cannot be empty"), nil, nil
		}
		slog.Error("Failed to answer question", "tool", AskToolName, "kind", domain.ErrorKind(err), "error", err)
		return errorResult(failureMessage), nil, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: answer.Text},
		},
	}, nil, nil
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}

// RegisterAskTool registers the ask tool with the MCP server.
func RegisterAskTool(server *mcp.Server, asker Asker) {
	handler := NewAskHandler(asker)
	mcp.AddTool(server, &mcp.Tool{
		Name: AskToolName,
		Description: `Answer a question using the indexed reference document.

The most relevant passages of the document are retrieved and given to a chat model,
which answers in Dutch. The index is built on first use, so the first call can be slow.`,
	}, handler.Handle)
}
