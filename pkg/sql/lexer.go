package sql

import (
	"errors"
)

var (
	errUnterminatedString     = errors.New("unterminated string literal")
	errUnterminatedIdentifier = errors.New("unterminated quoted identifier")
	errUnterminatedComment    = errors.New("unterminated block comment")

	// ErrBackslashInString is returned for a string literal containing a
	// backslash. Redshift and DuckDB disagree on whether it escapes the next
	// quote, so the literal's end cannot be known.
	ErrBackslashInString = errors.New("backslash in string literal")
)

// scanResult is a byte-for-byte copy of a statement in which string
// literals, quoted identifiers and comments have been blanked out, so that
// keywords, semicolons and parentheses can be inspected without being fooled
// by text that is only data.
type scanResult struct {
	masked []byte
	// trailingLineComment is set when the statement ends inside a -- comment,
	// so anything appended must start on a new line.
	trailingLineComment bool
}

// maskLiterals scans sqlText and blanks out everything that is not code.
//
// Single-quoted strings honour the SQL standard doubled quote ('') and may
// not contain a backslash. Double-quoted identifiers honour doubled quotes.
// Block comments do not nest.
func maskLiterals(sqlText string) (scanResult, error) {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
		stateLineComment
		stateBlockComment
	)

	src := []byte(sqlText)
	masked := make([]byte, len(src))
	copy(masked, src)

	state := stateNormal
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch state {
		case stateNormal:
			switch {
			case c == '\'':
				state = stateSingleQuote
				masked[i] = ' '
			case c == '"':
				state = stateDoubleQuote
				masked[i] = ' '
			case c == '-' && i+1 < len(src) && src[i+1] == '-':
				state = stateLineComment
				masked[i], masked[i+1] = ' ', ' '
				i++
			case c == '/' && i+1 < len(src) && src[i+1] == '*':
				state = stateBlockComment
				masked[i], masked[i+1] = ' ', ' '
				i++
			}
		case stateSingleQuote:
			masked[i] = ' '
			switch {
			case c == '\\':
				return scanResult{}, ErrBackslashInString
			case c == '\'' && i+1 < len(src) && src[i+1] == '\'':
				masked[i+1] = ' '
				i++
			case c == '\'':
				state = stateNormal
			}
		case stateDoubleQuote:
			masked[i] = ' '
			if c == '"' {
				if i+1 < len(src) && src[i+1] == '"' {
					masked[i+1] = ' '
					i++
				} else {
					state = stateNormal
				}
			}
		case stateLineComment:
			if c == '\n' {
				state = stateNormal
			} else {
				masked[i] = ' '
			}
		case stateBlockComment:
			masked[i] = ' '
			if c == '*' && i+1 < len(src) && src[i+1] == '/' {
				masked[i+1] = ' '
				i++
				state = stateNormal
			}
		}
	}

	switch state {
	case stateSingleQuote:
		return scanResult{}, errUnterminatedString
	case stateDoubleQuote:
		return scanResult{}, errUnterminatedIdentifier
	case stateBlockComment:
		return scanResult{}, errUnterminatedComment
	}

	return scanResult{masked: masked, trailingLineComment: state == stateLineComment}, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordByte(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9') || c == '$'
}

// word is an unquoted identifier or keyword found in masked text.
type word struct {
	text  string // upper case
	depth int    // parenthesis nesting depth at the word
}

// words lists the unquoted identifiers and keywords of masked text, with the
// parenthesis depth at which each occurs.
func words(masked []byte) []word {
	var (
		out   []word
		depth int
	)
	for i := 0; i < len(masked); {
		c := masked[i]
		switch {
		case c == '(':
			depth++
			i++
		case c == ')':
			if depth > 0 {
				depth--
			}
			i++
		case isWordStart(c):
			start := i
			for i < len(masked) && isWordByte(masked[i]) {
				i++
			}
			out = append(out, word{text: upper(masked[start:i]), depth: depth})
		case c >= '0' && c <= '9':
			for i < len(masked) && isWordByte(masked[i]) {
				i++
			}
		default:
			i++
		}
	}
	return out
}

func upper(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
