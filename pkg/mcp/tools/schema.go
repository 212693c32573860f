package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nl2db/nl2db/pkg/catalog"
)

type schemaTable struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Definition  string `json:"definition"`
}

type schemaResult struct {
	Question string        `json:"question"`
	Tables   []schemaTable `json:"tables"`
}

// RegisterSchemaTool adds get_schema. Without a question it returns the
// grouped summary of every queryable table; with one it returns the tables
// that question would be answered from.
func RegisterSchemaTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"get_schema",
		mcp.WithDescription(
			"Describe the queryable tables. "+
				"Pass a question to see only the tables and columns relevant to it.",
		),
		mcp.WithString(
			"question",
			mcp.Description("Optional: limit the result to tables relevant to this question"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question := strings.TrimSpace(getOptionalString(req, "question"))
		if question == "" {
			return mcp.NewToolResultText(deps.Agent.SchemaSummary()), nil
		}

		tables := deps.Agent.RelevantTables(question)
		resp := schemaResult{Question: question, Tables: make([]schemaTable, len(tables))}
		for i, t := range tables {
			resp.Tables[i] = schemaTable{
				Name:        t.Name,
				Description: t.Description,
				Definition:  catalog.RenderTable(t),
			}
		}

		out, err := jsonResult(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal get_schema result: %w", err)
		}
		return out, nil
	})
}
