package dag

import (
	"context"
	"fmt"
	"time"
)

// getTimeout determines the timeout to apply to a step invocation using
// precedence: per-step override, then the engine-wide default, then
// unlimited.
func getTimeout(override time.Duration, defaultTimeout time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if defaultTimeout > 0 {
		return defaultTimeout
	}
	return 0
}

// runWithTimeout wraps fn with timeout enforcement derived from
// getTimeout's precedence, returning a wrapped error if fn's context
// expired before fn returned.
func runWithTimeout(ctx context.Context, stepName string, override, defaultTimeout time.Duration, fn func(context.Context) error) error {
	timeout := getTimeout(override, defaultTimeout)
	if timeout == 0 {
		return fn(ctx)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(timeoutCtx)
	if timeoutCtx.Err() == context.DeadlineExceeded {
		return &StepError{StepName: stepName, Cause: fmt.Errorf("exceeded timeout of %v", timeout)}
	}
	return err
}
