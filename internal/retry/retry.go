// Package retry implements the bounded exponential backoff policy shared by
// every upstream call in the ingestor.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy is a bounded exponential backoff: attempt k waits
// min(maxDelay, baseDelay*2^(k-1)) before attempt k+1. Any error is
// retriable except ctx cancellation/deadline, which aborts immediately.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// New builds a Policy from the given attempt count, base delay and delay
// cap; the scanner's main passes 3 attempts, 500ms base and a 10s cap.
func New(maxAttempts int, baseDelay, maxDelay time.Duration) Policy {
	return Policy{MaxAttempts: maxAttempts, BaseDelay: baseDelay, MaxDelay: maxDelay}
}

// Run calls fn until it succeeds or MaxAttempts is exhausted, sleeping
// between attempts per the backoff schedule. It returns fn's result on
// first success, or the last error after exhaustion. A ctx cancellation
// observed either from fn's own error or between attempts aborts
// immediately without consuming remaining attempts.
func Run[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err
		if attempt == p.MaxAttempts {
			break
		}
		delay := p.BaseDelay * (1 << (attempt - 1))
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, fmt.Errorf("retry: exhausted %d attempts: %w", p.MaxAttempts, lastErr)
}
