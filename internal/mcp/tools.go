package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmmcquay/chess-arbiter/internal/bot"
	"github.com/dmmcquay/chess-arbiter/internal/logging"
	"github.com/dmmcquay/chess-arbiter/internal/ratelimit"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// maxChatLength is the longest message the game service accepts.
const maxChatLength = 140

// Operator is the bot surface exposed as tools.
type Operator interface {
	Status() bot.Status
	Abort(ctx context.Context) error
	Resign(ctx context.Context) error
	Say(ctx context.Context, text string) error
}

// ToolsHandler exposes operator actions as MCP tools.
type ToolsHandler struct {
	operator   Operator
	limiter    *ratelimit.Limiter
	logger     logging.ContextLogger
	middleware *Middleware
}

// NewToolsHandler creates a tools handler. limiter is only reported in the
// status output and may be nil.
func NewToolsHandler(operator Operator, limiter *ratelimit.Limiter, logger logging.ContextLogger) *ToolsHandler {
	return &ToolsHandler{
		operator: operator,
		limiter:  limiter,
		logger:   logger,
	}
}

// SetMiddleware sets the middleware applied at registration.
func (h *ToolsHandler) SetMiddleware(middleware *Middleware) {
	h.middleware = middleware
}

func (h *ToolsHandler) wrap(name string, handler ToolHandler) server.ToolHandlerFunc {
	if h.middleware != nil {
		handler = h.middleware.WrapTool(name, handler)
	}
	return server.ToolHandlerFunc(handler)
}

// RegisterTools registers all tools with the MCP server.
func (h *ToolsHandler) RegisterTools(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("getStatus",
		mcp.WithDescription("Report engine liveness, the active game and arbitration statistics"),
	), h.wrap("getStatus", h.HandleGetStatus))

	s.AddTool(mcp.NewTool("abortGame",
		mcp.WithDescription("Abort the active game"),
	), h.wrap("abortGame", h.HandleAbortGame))

	s.AddTool(mcp.NewTool("resignGame",
		mcp.WithDescription("Resign the active game"),
	), h.wrap("resignGame", h.HandleResignGame))

	s.AddTool(mcp.NewTool("sayInChat",
		mcp.WithDescription("Post a message to the active game's spectator chat"),
		mcp.WithString("text",
			mcp.Description("Message text (at most 140 characters)"),
			mcp.Required(),
		),
	), h.wrap("sayInChat", h.HandleSayInChat))
}

// HandleGetStatus handles the getStatus tool.
func (h *ToolsHandler) HandleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := struct {
		bot.Status
		RateLimit map[string]interface{} `json:"rate_limit"`
	}{
		Status:    h.operator.Status(),
		RateLimit: h.limiter.GetStatus(),
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to format status: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// HandleAbortGame handles the abortGame tool.
func (h *ToolsHandler) HandleAbortGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.operator.Abort(ctx); err != nil {
		return nil, fmt.Errorf("abort failed: %w", err)
	}
	return mcp.NewToolResultText("Game aborted"), nil
}

// HandleResignGame handles the resignGame tool.
func (h *ToolsHandler) HandleResignGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.operator.Resign(ctx); err != nil {
		return nil, fmt.Errorf("resign failed: %w", err)
	}
	return mcp.NewToolResultText("Game resigned"), nil
}

// HandleSayInChat handles the sayInChat tool.
func (h *ToolsHandler) HandleSayInChat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("missing arguments")
	}
	text, ok := args["text"].(string)
	if !ok {
		return nil, fmt.Errorf("text must be a string")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("text must not be empty")
	}
	if len(text) > maxChatLength {
		return nil, fmt.Errorf("text is %d characters, limit is %d", len(text), maxChatLength)
	}

	if err := h.operator.Say(ctx, text); err != nil {
		return nil, fmt.Errorf("chat failed: %w", err)
	}
	return mcp.NewToolResultText("Sent"), nil
}
