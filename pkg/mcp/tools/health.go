package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/nl2db/nl2db/pkg/logging"
)

const healthPingTimeout = 5 * time.Second

type healthResult struct {
	Status   string   `json:"status"` // "ok" or "degraded"
	Version  string   `json:"version"`
	Database string   `json:"database"`
	Backends []string `json:"backends"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool reports the version, database reachability and SQL backends.
func RegisterHealthTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp := healthResult{
			Status:   "ok",
			Version:  deps.Version,
			Database: "ok",
			Backends: deps.Agent.Backends(),
		}

		pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
		defer cancel()
		if err := deps.Agent.Ping(pingCtx); err != nil {
			resp.Status = "degraded"
			resp.Database = logging.SanitizeError(err)
			if deps.Logger != nil {
				deps.Logger.Warn("Health check: database unreachable", zap.String("error", resp.Database))
			}
		}

		out, err := jsonResult(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return out, nil
	})
}
