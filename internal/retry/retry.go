package retry

import (
	"context"
	"time"

	retrygo "github.com/avast/retry-go"
)

// BackoffFunc computes the wait before the next attempt. attempt starts at 0
// for the wait that follows the first failure.
type BackoffFunc func(attempt uint, base time.Duration) time.Duration

// Exponential doubles the base wait per attempt: base, 2*base, 4*base, ...
// It is deliberately not randomized so retry timing stays deterministic.
func Exponential(attempt uint, base time.Duration) time.Duration {
	return base * (1 << attempt)
}

// Fixed waits the same base duration between every attempt.
func Fixed(_ uint, base time.Duration) time.Duration {
	return base
}

// Policy is a reusable description of how an operation is retried: how many
// attempts it gets, the shape of the wait between them, and which errors are
// worth retrying at all.
type Policy struct {
	Attempts  uint
	Delay     time.Duration
	Backoff   BackoffFunc
	Retryable func(error) bool

	// OnRetry is invoked before each wait with the 1-based number of the
	// attempt that just failed, the computed wait, and its error.
	OnRetry func(attempt uint, wait time.Duration, err error)
}

// Do runs op under the policy and returns the last error once the attempt
// budget is exhausted or a non-retryable error is hit.
func (p Policy) Do(ctx context.Context, op func() error) error {
	backoff := p.Backoff
	if backoff == nil {
		backoff = Exponential
	}

	opts := []retrygo.Option{
		retrygo.Attempts(p.Attempts),
		retrygo.Context(ctx),
		retrygo.LastErrorOnly(true),
		retrygo.DelayType(func(n uint, err error, _ *retrygo.Config) time.Duration {
			wait := backoff(n, p.Delay)
			if p.OnRetry != nil {
				p.OnRetry(n+1, wait, err)
			}

			return wait
		}),
	}

	if p.Retryable != nil {
		opts = append(opts, retrygo.RetryIf(p.Retryable))
	}

	return retrygo.Do(op, opts...)
}
