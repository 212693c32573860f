package models

import (
	"time"

	"github.com/nl2db/nl2db/pkg/apperrors"
)

// QueryResult is the structured outcome of answering one question.
// Err is nil on success; Rows is nil when the query was not executed.
type QueryResult struct {
	Question string
	SQL      string
	Backend  string
	Columns  []string
	Rows     [][]any
	Err      error
	Duration time.Duration
}

// Succeeded reports whether the question was answered without error.
func (r *QueryResult) Succeeded() bool {
	return r.Err == nil
}

// ErrorKind classifies Err.
func (r *QueryResult) ErrorKind() apperrors.Kind {
	return apperrors.KindOf(r.Err)
}
