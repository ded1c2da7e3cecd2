package rpc

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// RetryPolicy bounds transport retries for one call.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first one.
	MaxAttempts int `validate:"min=1"`

	// Base is the delay before the first retry.
	Base time.Duration `validate:"min=0"`

	// Multiplier grows the delay geometrically.
	Multiplier float64 `validate:"gte=1"`

	// Max caps a single delay.
	Max time.Duration `validate:"min=0"`
}

// DefaultRetryPolicy returns 8 attempts with delays 3s * 1.6^i capped at 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 8,
		Base:        3 * time.Second,
		Multiplier:  1.6,
		Max:         30 * time.Second,
	}
}

// Delay returns the wait before retry i (0-based): min(Base * Multiplier^i, Max).
func (p RetryPolicy) Delay(i int) time.Duration {
	d := float64(p.Base) * math.Pow(p.Multiplier, float64(i))
	if d > float64(p.Max) || math.IsInf(d, 1) {
		return p.Max
	}
	return time.Duration(d)
}

// Schedule returns the delays of a call that fails n times before succeeding,
// or of a call that exhausts its attempts when n >= MaxAttempts.
func (p RetryPolicy) Schedule(n int) []time.Duration {
	if n > p.MaxAttempts-1 {
		n = p.MaxAttempts - 1
	}
	out := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, p.Delay(i))
	}
	return out
}

// CallState is the retry state of one call. It lives in the request context
// for the duration of that call only.
type CallState struct {
	Method   string
	Started  time.Time
	Attempts int
	Delays   []time.Duration
	LastErr  error
}

type callStateKey struct{}

func withCallState(ctx context.Context, s *CallState) context.Context {
	return context.WithValue(ctx, callStateKey{}, s)
}

func callStateFrom(ctx context.Context) *CallState {
	s, _ := ctx.Value(callStateKey{}).(*CallState)
	return s
}

// exhaustedError is returned by the retryablehttp error handler once every
// attempt failed at the transport level.
type exhaustedError struct {
	attempts int
	cause    error
}

func (e *exhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempt(s): %v", e.attempts, e.cause)
}

func (e *exhaustedError) Unwrap() error {
	return e.cause
}

// checkRetry retries every transport failure and every non-2xx status.
// A 2xx response ends the loop even when its body carries a JSON-RPC error.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	state := callStateFrom(ctx)
	if err != nil {
		if state != nil {
			state.LastErr = err
		}
		return true, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if state != nil {
			state.LastErr = fmt.Errorf("unexpected HTTP status %s", resp.Status)
		}
		return true, nil
	}

	return false, nil
}

func backoffFor(p RetryPolicy) retryablehttp.Backoff {
	return func(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
		return p.Delay(attemptNum)
	}
}

func errorHandler(resp *http.Response, err error, numTries int) (*http.Response, error) {
	if resp != nil {
		if err == nil {
			err = fmt.Errorf("unexpected HTTP status %s", resp.Status)
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}
	return nil, &exhaustedError{attempts: numTries, cause: err}
}
