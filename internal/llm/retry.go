package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy is a bounded, fixed-delay retry schedule. MaxRetries counts
// retries after the first attempt. AttemptTimeout, when positive, bounds
// each attempt separately.
type RetryPolicy struct {
	MaxRetries     int
	Delay          time.Duration
	AttemptTimeout time.Duration
}

// Attempts is the total number of calls the policy allows.
func (p RetryPolicy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// ShouldRetry reports whether another attempt follows the given 1-based
// attempt that failed with err.
func (p RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if err == nil || IsAuthentication(err) {
		return false
	}
	return attempt < p.Attempts()
}

// RetryNotify observes a failed attempt that will be retried after next.
type RetryNotify func(attempt int, err error, next time.Duration)

// Do runs op until it succeeds or the policy gives up, returning the last
// error. Cancelling ctx stops the loop between attempts.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) (string, error), notify RetryNotify) (string, error) {
	attempt := 0
	run := func() (string, error) {
		attempt++
		actx := ctx
		if p.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
			defer cancel()
		}
		out, err := op(actx)
		if err == nil {
			return out, nil
		}
		if !p.ShouldRetry(attempt, err) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	out, err := backoff.Retry(ctx, run,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(p.Attempts())),
		backoff.WithNotify(func(err error, next time.Duration) {
			if notify != nil {
				notify(attempt, err, next)
			}
		}),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	return out, err
}
