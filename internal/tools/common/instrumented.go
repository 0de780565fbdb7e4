package common

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mailscribe/mailscribe/internal/instrumentation"
	"github.com/mailscribe/mailscribe/internal/logging"
	"github.com/mailscribe/mailscribe/internal/server"
)

// ToolHandler is the handler signature the MCP server expects.
type ToolHandler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InstrumentedToolHandler wraps a tool handler with a tracing span and a
// completion log record. The span is a no-op unless tracing is enabled.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		defer span.End()

		start := time.Now()
		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := logging.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = logging.StatusError
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}

		sc.Logger().Info("tool invocation completed",
			logging.Tool(toolName),
			logging.Status(status),
			logging.Duration(duration),
		)
		return result, err
	}
}
