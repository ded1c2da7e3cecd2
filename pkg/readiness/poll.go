// Package readiness waits for the management API to become usable: reachable,
// accepting credentials, and accepting writes.
package readiness

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/openfroyo/zbxsync/pkg/engine"
)

// PollPolicy bounds one polling loop.
type PollPolicy struct {
	// Timeout is the overall deadline of the loop.
	Timeout time.Duration

	// Interval is the fixed wait between attempts.
	Interval time.Duration
}

// String implements fmt.Stringer.
func (p PollPolicy) String() string {
	return fmt.Sprintf("timeout=%s interval=%s", p.Timeout, p.Interval)
}

// Poll calls op until it succeeds, waiting policy.Interval between attempts. Attempt
// errors are swallowed; once policy.Timeout elapses a readiness error carrying the
// last attempt error is returned. notify, if non-nil, observes every failed attempt.
func Poll[T any](
	ctx context.Context,
	phase string,
	policy PollPolicy,
	op func(ctx context.Context) (T, error),
	notify func(attempt int, err error, next time.Duration),
) (T, error) {
	attempt := 0
	var lastErr error

	operation := func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err != nil {
			lastErr = err
		}
		return v, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(&backoff.ConstantBackOff{Interval: policy.Interval}),
		backoff.WithMaxElapsedTime(policy.Timeout),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(func(err error, next time.Duration) {
			notify(attempt, err, next)
		}))
	}

	v, err := backoff.Retry(ctx, operation, opts...)
	if err == nil {
		return v, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return v, fmt.Errorf("%s: %w", phase, ctxErr)
	}

	return v, engine.NewReadinessError(
		fmt.Sprintf("%s not ready after %s (%d attempts)", phase, policy.Timeout, attempt),
		lastErr,
	).WithOperation(phase).WithDetail("attempts", attempt)
}
