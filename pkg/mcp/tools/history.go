package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nl2db/nl2db/pkg/models"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type historyResult struct {
	Entries []models.HistoryEntry `json:"entries"`
	Count   int                   `json:"count"`
}

// RegisterHistoryTool adds get_query_history, which lists the most recent
// questions of this session, oldest first.
func RegisterHistoryTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"get_query_history",
		mcp.WithDescription(
			"Get the questions asked in this session with their SQL and outcome. "+
				"Helps avoid asking the same question twice.",
		),
		mcp.WithNumber(
			"limit",
			mcp.Description("Maximum number of entries to return (default: 20, max: 100)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := defaultHistoryLimit
		if limitVal, ok := getOptionalFloat(req, "limit"); ok {
			limit = int(limitVal)
			if limit > maxHistoryLimit {
				limit = maxHistoryLimit
			}
			if limit < 1 {
				limit = 1
			}
		}

		entries := deps.Agent.Session().History(limit)
		out, err := jsonResult(historyResult{Entries: entries, Count: len(entries)})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal get_query_history result: %w", err)
		}
		return out, nil
	})
}
