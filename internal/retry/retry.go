package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/habiliai/memoryd/errors"
)

type Policy struct {
	// Attempts is the total number of calls, including the first one.
	Attempts int
	// Backoff is the delay before the second attempt; it doubles afterwards.
	Backoff time.Duration
	// MaxBackoff caps the doubled delay. Zero means 10x Backoff.
	MaxBackoff time.Duration
	// Timeout bounds each individual attempt. Zero disables it.
	Timeout time.Duration
	// Retryable decides whether an error is transient. Defaults to provider and store errors.
	Retryable func(error) bool
}

func DefaultRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, errors.ErrProvider) || errors.Is(err, errors.ErrStore)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Backoff
	b.MaxInterval = p.MaxBackoff
	if b.MaxInterval == 0 {
		b.MaxInterval = 10 * p.Backoff
	}
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(p.Attempts, 1)-1)), ctx)
}

// Do runs fn until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}

	var last error
	err := backoff.Retry(func() error {
		last = call(ctx, p.Timeout, fn)
		if last != nil && !retryable(last) {
			return backoff.Permanent(last)
		}
		return last
	}, p.backOff(ctx))
	if err == nil {
		return nil
	}
	if last != nil && ctx.Err() != nil && !errors.Is(last, ctx.Err()) {
		return errors.Wrapf(last, "retry aborted: %v", ctx.Err())
	}
	if last != nil {
		return last
	}
	return err
}

func call(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
