package apperrors

import (
	"context"
	"errors"
)

var (
	// ErrUnsupportedIntent is returned when no generator could turn a question into SQL.
	ErrUnsupportedIntent = errors.New("could not generate SQL for this question")

	// ErrForbiddenOperation is returned when a statement is not a single read-only query.
	ErrForbiddenOperation = errors.New("forbidden operation")

	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrExecution          = errors.New("execution error")
	ErrCancelled          = errors.New("query cancelled")
)

// Kind is the stable, serializable name of a pipeline failure.
type Kind string

const (
	KindNone               Kind = ""
	KindUnsupportedIntent  Kind = "unsupported_intent"
	KindForbiddenOperation Kind = "forbidden_operation"
	KindBackendUnavailable Kind = "backend_unavailable"
	KindExecutionError     Kind = "execution_error"
	KindCancelled          Kind = "cancelled"
	KindInternal           Kind = "internal"
)

// KindOf classifies err against the sentinel errors of this package.
// A nil error has KindNone; anything unrecognized is KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrForbiddenOperation):
		return KindForbiddenOperation
	case errors.Is(err, ErrUnsupportedIntent):
		return KindUnsupportedIntent
	case errors.Is(err, ErrExecution):
		return KindExecutionError
	case errors.Is(err, ErrBackendUnavailable):
		return KindBackendUnavailable
	default:
		return KindInternal
	}
}
