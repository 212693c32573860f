package sql

import (
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a value that looks like an injection attempt.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Value       string // The value that was checked
}

// CheckValueForInjection uses libinjection to detect SQL injection patterns in
// a value taken from user text before it is embedded in a string literal.
//
// Returns nil if no injection is detected.
//
// Example:
//
//	result := CheckValueForInjection("north depot")
//	// result == nil
//
//	result := CheckValueForInjection("x' OR '1'='1")
//	// result.IsSQLi == true
func CheckValueForInjection(value string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		Value:       value,
	}
}

// QuoteLiteral renders value as a single-quoted SQL string literal by
// doubling embedded quotes. Callers must refuse values containing a
// backslash, which Redshift treats as an escape character.
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
