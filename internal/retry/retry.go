package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	errpkg "github.com/veranemoloko/hls-downloader/internal/errors"
)

// DefaultMaxAttempts is the total number of tries for one unit of work.
const DefaultMaxAttempts = 3

// Policy describes how a unit of work is retried.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Retryable   func(error) bool
	// OnFailure, if set, is called after every failed attempt.
	OnFailure func(attempt int, err error)
}

// DefaultPolicy returns 3 attempts with a short constant delay, retrying transient errors only.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       500 * time.Millisecond,
		Retryable:   errpkg.IsTransient,
	}
}

// WithOnFailure returns a copy of p that reports failed attempts to fn.
func (p Policy) WithOnFailure(fn func(attempt int, err error)) Policy {
	p.OnFailure = fn
	return p
}

// Do runs op until it succeeds, returns a non-retryable error, or the attempt
// budget is spent. It returns the number of attempts made alongside the result.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error)) (T, int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = errpkg.IsTransient
	}

	attempts := 0
	result, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		v, err := op(ctx, attempts)
		if err == nil {
			return v, nil
		}
		if p.OnFailure != nil {
			p.OnFailure(attempts, err)
		}
		if !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(maxAttempts)),
	)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	return result, attempts, err
}
