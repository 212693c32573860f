package llm

import (
	"fmt"
	"strings"
)

// MissingSentinel prefixes answers where the model could not write SQL from
// the tables it was given.
const MissingSentinel = "MISSING:"

// SQLSystemMessage is the system message sent with every SQL prompt.
const SQLSystemMessage = "You are an expert Amazon Redshift SQL analyst. You write a single read-only SELECT query and nothing else."

// SQLPromptInput is everything BuildSQLPrompt needs.
type SQLPromptInput struct {
	SchemaContext string // rendered table descriptions
	Question      string
	MaxRows       int
}

// BuildSQLPrompt renders the user prompt for SQL generation.
func BuildSQLPrompt(in SQLPromptInput) string {
	var sb strings.Builder

	sb.WriteString(strings.TrimSpace(in.SchemaContext))
	sb.WriteString("\n\n## Task\n")
	sb.WriteString("Convert the following natural language query into a SQL query for the Redshift database described above.\n\n")

	sb.WriteString("## Requirements\n")
	sb.WriteString("- Generate ONLY the SQL query, no explanations\n")
	sb.WriteString("- Use standard Redshift SQL syntax and only the tables and columns listed above\n")
	sb.WriteString("- The query must be a single SELECT (a WITH clause is allowed); never modify data\n")
	sb.WriteString("- Use proper date/time functions (e.g. DATEADD, DATEDIFF, CURRENT_DATE)\n")
	sb.WriteString("- For \"past week\", use: WHERE date_column >= CURRENT_DATE - INTERVAL '7 days'\n")
	sb.WriteString("- For \"last month\", use: WHERE date_column >= CURRENT_DATE - INTERVAL '1 month'\n")
	sb.WriteString("- For \"top N\", use: ORDER BY ... DESC LIMIT N\n")
	if in.MaxRows > 0 {
		fmt.Fprintf(&sb, "- Limit results to %d rows maximum if not specified\n", in.MaxRows)
	}
	sb.WriteString("- Do NOT include semicolons at the end\n")
	sb.WriteString("- Do NOT use backslashes inside string literals; double a single quote to escape it\n")
	fmt.Fprintf(&sb, "- If the tables above cannot answer the question, reply with %s followed by what is missing\n\n", MissingSentinel)

	sb.WriteString("## Natural Language Query\n")
	sb.WriteString(strings.TrimSpace(in.Question))
	sb.WriteString("\n\n## SQL Query\n")

	return sb.String()
}
