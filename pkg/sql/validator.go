// Package sql provides the read-only safety gate for generated SQL.
package sql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nl2db/nl2db/pkg/apperrors"
)

// DefaultRowLimit is appended to statements that do not limit their own rows.
const DefaultRowLimit = 1000

var (
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
	ErrEmptyStatement     = errors.New("empty statement")
)

// forbiddenKeywords may not appear anywhere outside literals and comments.
// INTO covers SELECT ... INTO, which creates a table.
var forbiddenKeywords = map[string]bool{
	"INSERT":   true,
	"UPDATE":   true,
	"DELETE":   true,
	"DROP":     true,
	"TRUNCATE": true,
	"ALTER":    true,
	"CREATE":   true,
	"GRANT":    true,
	"REVOKE":   true,
	"COPY":     true,
	"UNLOAD":   true,
	"MERGE":    true,
	"CALL":     true,
	"EXECUTE":  true,
	"INTO":     true,
}

var allowedLeadingKeywords = map[string]bool{
	"SELECT": true,
	"WITH":   true,
}

// ValidationResult is the outcome of checking one statement.
type ValidationResult struct {
	Accepted bool
	// SQL is the normalized statement, including any appended LIMIT.
	SQL        string
	LimitAdded bool
	// Reason and Err are set when the statement is rejected. Err wraps
	// apperrors.ErrForbiddenOperation.
	Reason apperrors.Kind
	Err    error
}

// Validator accepts single read-only statements and caps their row count.
// It is a lexical scan, not a parser: literals, quoted identifiers and
// comments are ignored, everything else is matched as words.
type Validator struct {
	defaultLimit int
}

// NewValidator returns a Validator that appends LIMIT defaultLimit to
// unlimited statements. A non-positive defaultLimit uses DefaultRowLimit.
func NewValidator(defaultLimit int) *Validator {
	if defaultLimit <= 0 {
		defaultLimit = DefaultRowLimit
	}
	return &Validator{defaultLimit: defaultLimit}
}

// DefaultLimit returns the row cap appended to unlimited statements.
func (v *Validator) DefaultLimit() int {
	return v.defaultLimit
}

// Check validates sqlText.
//
// The order is:
//  1. Trim whitespace and strip trailing semicolons
//  2. Reject any remaining semicolon outside literals (multiple statements)
//  3. Require SELECT or WITH as the first keyword
//  4. Reject forbidden keywords anywhere in the statement
//  5. Append the default LIMIT when there is no top-level LIMIT or TOP
func (v *Validator) Check(sqlText string) ValidationResult {
	normalized, scan, err := normalize(sqlText)
	if err != nil {
		return reject(normalized, err)
	}

	if strings.IndexByte(string(scan.masked), ';') >= 0 {
		return reject(normalized, ErrMultipleStatements)
	}

	ws := words(scan.masked)
	if len(ws) == 0 {
		return reject(normalized, ErrEmptyStatement)
	}
	if !allowedLeadingKeywords[ws[0].text] {
		return reject(normalized, fmt.Errorf("statement must start with SELECT or WITH, got %s", ws[0].text))
	}
	for _, w := range ws {
		if forbiddenKeywords[w.text] {
			return reject(normalized, fmt.Errorf("statement contains %s", w.text))
		}
	}

	result := ValidationResult{Accepted: true, SQL: normalized}
	if !hasRowLimit(ws) {
		sep := " "
		if scan.trailingLineComment {
			sep = "\n"
		}
		result.SQL = normalized + sep + "LIMIT " + strconv.Itoa(v.defaultLimit)
		result.LimitAdded = true
	}
	return result
}

func reject(sqlText string, cause error) ValidationResult {
	return ValidationResult{
		SQL:    sqlText,
		Reason: apperrors.KindForbiddenOperation,
		Err:    fmt.Errorf("%w: %w", apperrors.ErrForbiddenOperation, cause),
	}
}

// normalize trims sqlText and removes trailing semicolons, including ones
// followed only by comments, and returns the masked view of the result.
func normalize(sqlText string) (string, scanResult, error) {
	text := strings.TrimSpace(sqlText)
	scan, err := maskLiterals(text)
	if err != nil {
		return text, scanResult{}, err
	}

	for {
		end := len(scan.masked) - 1
		for end >= 0 && isSpace(scan.masked[end]) {
			end--
		}
		if end < 0 || scan.masked[end] != ';' {
			break
		}
		text = text[:end] + text[end+1:]
		scan.masked = append(scan.masked[:end], scan.masked[end+1:]...)
	}

	trimmed := strings.TrimRight(text, " \t\n\r\f\v")
	if len(trimmed) != len(text) {
		text = trimmed
		scan.masked = scan.masked[:len(text)]
	}

	return text, scan, nil
}

// hasRowLimit reports whether the outermost query limits its rows, either
// with LIMIT or with a Redshift SELECT TOP n.
func hasRowLimit(ws []word) bool {
	for i, w := range ws {
		if w.depth != 0 {
			continue
		}
		if w.text == "LIMIT" {
			return true
		}
		if w.text == "TOP" && i > 0 && ws[i-1].text == "SELECT" {
			return true
		}
	}
	return false
}
