package dag

import (
	"math/rand"
	"time"
)

// RetryPolicy configures automatic retry of a remote MLModel call.
// Exponential backoff with jitter is used to avoid thundering-herd
// retries when a remote scoring endpoint is degraded.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	// >= 1; 1 means no retries.
	MaxAttempts int

	// BaseDelay and MaxDelay bound the exponential backoff:
	// delay = min(BaseDelay*2^attempt, MaxDelay) + jitter(0, BaseDelay).
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Retryable decides whether an error should trigger another attempt.
	// A nil Retryable means no error is retried.
	Retryable func(error) bool
}

// Validate reports whether the policy's bounds make sense.
func (rp *RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return &ValidationError{Rule: "retry_policy", Detail: "MaxAttempts must be >= 1"}
	}
	if rp.MaxDelay > 0 && rp.BaseDelay > 0 && rp.MaxDelay < rp.BaseDelay {
		return &ValidationError{Rule: "retry_policy", Detail: "MaxDelay must be >= BaseDelay"}
	}
	return nil
}

// computeBackoff returns the delay before retry attempt number `attempt`
// (0-based: 0 is the first retry, after the initial attempt failed).
func computeBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	delay := base * (1 << attempt)
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}

	var jitter time.Duration
	if base > 0 {
		if rng != nil {
			jitter = time.Duration(rng.Int63n(int64(base)))
		} else {
			jitter = time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- retry jitter, not security sensitive
		}
	}
	return delay + jitter
}
