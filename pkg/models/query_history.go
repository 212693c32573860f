package models

import (
	"time"

	"github.com/google/uuid"
)

// HistoryEntry records one question asked in a session and its outcome.
// Entries are never mutated after they are appended.
type HistoryEntry struct {
	ID              uuid.UUID `json:"id"`
	NaturalLanguage string    `json:"natural_language"`
	SQL             string    `json:"sql,omitempty"` // empty when generation failed
	Backend         string    `json:"backend,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	Success         bool      `json:"success"`

	// Failure details
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	// Execution details
	ExplainOnly bool `json:"explain_only,omitempty"`
	DurationMs  int  `json:"duration_ms"`
	RowCount    *int `json:"row_count,omitempty"`
}
