package mcp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeParams(t *testing.T) {
	long := strings.Repeat("x", maxParamLength+10)
	got := sanitizeParams(map[string]any{
		"question":     `Show cameras where name = 'Depot 7'`,
		"explain_only": true,
		"limit":        float64(5),
		"note":         long,
	})

	assert.Equal(t, `Show cameras where name = '***'`, got["question"])
	assert.Equal(t, true, got["explain_only"])
	assert.Equal(t, float64(5), got["limit"])
	assert.Len(t, got["note"], maxParamLength+3)
}

func TestSanitizeParams_Empty(t *testing.T) {
	assert.Nil(t, sanitizeParams(nil))
	assert.Nil(t, sanitizeParams(map[string]any{}))
	assert.Nil(t, sanitizeParams("not a map"))
}

func TestSQLStringLiteralPattern(t *testing.T) {
	got := sqlStringLiteralPattern.ReplaceAllString(`WHERE a = 'it''s' AND b = 'x'`, "'***'")
	assert.Equal(t, `WHERE a = '***' AND b = '***'`, got)
}
