package datasource

import (
	"context"
	"errors"
	"fmt"

	"github.com/nl2db/nl2db/pkg/apperrors"
)

// ExecutionError wraps a driver error as apperrors.ErrExecution.
// Deadline expiry is reported as a timeout and caller cancellation as
// apperrors.ErrCancelled, so the orchestrator can record the right outcome.
func ExecutionError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("%w: %s", apperrors.ErrCancelled, op)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: query timed out", apperrors.ErrExecution, op)
	default:
		return fmt.Errorf("%w: %s: %v", apperrors.ErrExecution, op, err)
	}
}
