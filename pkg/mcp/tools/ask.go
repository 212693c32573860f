package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type askResult struct {
	Question   string   `json:"question"`
	SQL        string   `json:"sql"`
	Backend    string   `json:"backend"`
	Columns    []string `json:"columns,omitempty"`
	Rows       [][]any  `json:"rows,omitempty"`
	RowCount   *int     `json:"row_count,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

type askErrorDetails struct {
	SQL     string `json:"sql,omitempty"`
	Backend string `json:"backend,omitempty"`
}

// RegisterAskTool adds ask_database, which answers a question with
// validated read-only SQL and, unless explain_only is set, its rows.
func RegisterAskTool(s *server.MCPServer, deps *ToolDeps) {
	tool := mcp.NewTool(
		"ask_database",
		mcp.WithDescription(
			"Answer a natural-language question about the warehouse. "+
				"Generates a single read-only SELECT, validates it and runs it. "+
				"Set explain_only to get the SQL without executing it.",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question, e.g. \"Count cameras by status\""),
		),
		mcp.WithBoolean(
			"explain_only",
			mcp.Description("Return the generated SQL without executing it (default: false)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		explainOnly, _ := getOptionalBool(req, "explain_only")

		result := deps.Agent.Answer(ctx, question, explainOnly)
		if result.Err != nil {
			return NewErrorResultWithDetails(errorCode(result.Err), result.Err.Error(), askErrorDetails{
				SQL:     result.SQL,
				Backend: result.Backend,
			}), nil
		}

		resp := askResult{
			Question:   result.Question,
			SQL:        result.SQL,
			Backend:    result.Backend,
			Columns:    result.Columns,
			Rows:       result.Rows,
			DurationMs: result.Duration.Milliseconds(),
		}
		if result.Rows != nil {
			n := len(result.Rows)
			resp.RowCount = &n
		}

		out, err := jsonResult(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal ask_database result: %w", err)
		}
		return out, nil
	})
}
