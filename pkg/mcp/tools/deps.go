// Package tools registers the nl2db MCP tools.
package tools

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/nl2db/nl2db/pkg/services"
)

// ToolDeps contains the dependencies shared by every tool.
type ToolDeps struct {
	Agent   services.AgentService
	Version string
	Logger  *zap.Logger
}

// RegisterAll registers every nl2db tool on s.
func RegisterAll(s *server.MCPServer, deps *ToolDeps) {
	RegisterAskTool(s, deps)
	RegisterSchemaTool(s, deps)
	RegisterHistoryTool(s, deps)
	RegisterHealthTool(s, deps)
}

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return ""
	}
	val, ok := args[key].(string)
	if !ok {
		return ""
	}
	return val
}

// getOptionalFloat extracts an optional number argument from the request.
func getOptionalFloat(req mcp.CallToolRequest, key string) (float64, bool) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return 0, false
	}
	val, ok := args[key].(float64)
	return val, ok
}

// getOptionalBool extracts an optional boolean argument from the request.
func getOptionalBool(req mcp.CallToolRequest, key string) (bool, bool) {
	if args, ok := req.Params.Arguments.(map[string]any); ok {
		if val, ok := args[key].(bool); ok {
			return val, true
		}
	}
	return false, false
}
