package mcp

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/nl2db/nl2db/pkg/logging"
	"github.com/nl2db/nl2db/pkg/observability"
)

// CallLogger logs every MCP tool call with its duration and outcome and
// counts it in the tool-call metric.
type CallLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewCallLogger creates a CallLogger.
func NewCallLogger(logger *zap.Logger) *CallLogger {
	return &CallLogger{logger: logger.Named("calls")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (c *CallLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(c.beforeCallTool)
	hooks.AddAfterCallTool(c.afterCallTool)
	hooks.AddOnError(c.onError)
	return hooks
}

func (c *CallLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	c.startTimes.Store(id, time.Now())
}

func (c *CallLogger) afterCallTool(_ context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	elapsed := time.Since(c.loadAndDeleteStart(id))

	outcome := observability.ResultSuccess
	if result != nil && result.IsError {
		outcome = observability.ResultError
	}
	observability.ObserveToolCall(req.Params.Name, outcome)

	c.logger.Info("Tool call",
		zap.String("tool", req.Params.Name),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
		zap.Bool("is_error", outcome == observability.ResultError),
		zap.Duration("duration", elapsed))
}

func (c *CallLogger) onError(_ context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	elapsed := time.Since(c.loadAndDeleteStart(id))
	observability.ObserveToolCall(req.Params.Name, observability.ResultError)

	c.logger.Error("Tool call failed",
		zap.String("tool", req.Params.Name),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
		zap.Duration("duration", elapsed),
		zap.String("error", logging.SanitizeError(err)))
}

func (c *CallLogger) loadAndDeleteStart(id any) time.Time {
	if v, ok := c.startTimes.LoadAndDelete(id); ok {
		return v.(time.Time)
	}
	return time.Now()
}

// maxParamLength caps logged string parameters.
const maxParamLength = 1024

// sqlStringLiteralPattern matches SQL string literals, including '' escapes.
var sqlStringLiteralPattern = regexp.MustCompile(`'(?:[^']|'')*'`)

// sanitizeParams truncates long strings and redacts quoted values in
// free-text parameters before they are logged.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		s, ok := v.(string)
		if !ok {
			sanitized[k] = v
			continue
		}
		if isFreeTextParam(k) {
			s = sqlStringLiteralPattern.ReplaceAllString(s, "'***'")
		}
		sanitized[k] = logging.TruncateString(s, maxParamLength)
	}
	return sanitized
}

func isFreeTextParam(key string) bool {
	lower := strings.ToLower(key)
	return lower == "question" || lower == "sql" || strings.HasSuffix(lower, "_sql")
}
