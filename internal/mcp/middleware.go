package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/dmmcquay/chess-arbiter/internal/logging"
	"github.com/dmmcquay/chess-arbiter/internal/metrics"
	"github.com/dmmcquay/chess-arbiter/internal/ratelimit"
	"github.com/mark3labs/mcp-go/mcp"
)

type clientIDKey struct{}

// ContextWithClientID tags ctx with the calling client, for rate limiting.
func ContextWithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, clientID)
}

// Middleware wraps tool handlers with logging, rate limiting and metrics.
type Middleware struct {
	logger      logging.ContextLogger
	metrics     *metrics.PrometheusCollector
	rateLimiter *ratelimit.Limiter
}

// NewMiddleware creates a middleware. rateLimiter may be nil.
func NewMiddleware(logger logging.ContextLogger, rateLimiter *ratelimit.Limiter) *Middleware {
	return &Middleware{
		logger:      logger,
		metrics:     metrics.NewPrometheusCollector(),
		rateLimiter: rateLimiter,
	}
}

// ToolHandler is the function signature for MCP tool handlers.
type ToolHandler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// WrapTool wraps a tool handler.
func (m *Middleware) WrapTool(toolName string, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		clientID := extractClientID(ctx, request)
		logger := m.logger.WithFields(map[string]interface{}{
			"tool":       toolName,
			"client":     clientID,
			"request_id": logging.GenerateRequestID(),
		})

		logger.Info("Tool request received")

		if allowed, err := m.rateLimiter.Allow(clientID, toolName); !allowed {
			logger.Warn("Rate limit exceeded", "error", err)
			m.metrics.RecordRateLimit(clientID, toolName)
			m.metrics.RecordToolCall(toolName, "rate_limited", time.Since(start).Seconds())
			return nil, fmt.Errorf("rate limit exceeded for tool %s: %w", toolName, err)
		}

		result, err := handler(ctx, request)

		status := "success"
		if err != nil {
			status = "error"
			logger.Error("Tool request failed", "error", err, "duration", time.Since(start))
		} else {
			logger.Info("Tool request completed", "duration", time.Since(start))
		}
		m.metrics.RecordToolCall(toolName, status, time.Since(start).Seconds())

		return result, err
	}
}

// extractClientID reads the client from ctx, then from a "clientID" argument.
func extractClientID(ctx context.Context, request mcp.CallToolRequest) string {
	if clientID, ok := ctx.Value(clientIDKey{}).(string); ok && clientID != "" {
		return clientID
	}
	if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
		if clientID, ok := args["clientID"].(string); ok && clientID != "" {
			return clientID
		}
	}
	return "anonymous"
}
