package llm

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoSQL is returned when a model answer contains no usable SQL.
var ErrNoSQL = errors.New("no SQL in model response")

var (
	fencePattern      = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")
	lineStartPattern  = regexp.MustCompile(`(?im)^\s*(SELECT|WITH)\b`)
	selectPattern     = regexp.MustCompile(`(?i)\bSELECT\b`)
	trailingSemicolon = regexp.MustCompile(`[;\s]+$`)
)

// ExtractSQL pulls the SQL statement out of a model answer. It prefers the
// first fenced code block, otherwise drops any prose before the first line
// starting with SELECT or WITH (or before the first SELECT). Trailing
// semicolons are removed. An answer starting with MissingSentinel becomes an
// ErrNoSQL error carrying the model's reason.
func ExtractSQL(answer string) (string, error) {
	text := strings.TrimSpace(answer)

	if strings.HasPrefix(strings.ToUpper(text), MissingSentinel) {
		reason := strings.TrimSpace(text[len(MissingSentinel):])
		return "", fmt.Errorf("%w: model reports missing information: %s", ErrNoSQL, reason)
	}

	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	} else if loc := lineStartPattern.FindStringIndex(text); loc != nil {
		text = text[loc[0]:]
	} else if loc := selectPattern.FindStringIndex(text); loc != nil {
		text = text[loc[0]:]
	}

	text = trailingSemicolon.ReplaceAllString(strings.TrimSpace(text), "")
	if text == "" {
		return "", ErrNoSQL
	}
	return text, nil
}
