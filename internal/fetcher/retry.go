package fetcher

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/user/etymology-service/internal/domain"
)

// RetryPolicy describes how many times and how often a request is retried.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          float64 // randomization factor, 0.2 means +/- 20%
	Retryable       func(error) bool
}

// DefaultRetryPolicy retries transient failures up to three attempts in total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     8 * time.Second,
		Multiplier:      2,
		Jitter:          0.2,
		Retryable:       domain.IsTransient,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.Jitter
	b.MaxElapsedTime = 0 // bounded by attempts instead
	b.Reset()

	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Do runs op until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx is done. onRetry is called before every backoff sleep.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error, onRetry func(err error, wait time.Duration)) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = domain.IsTransient
	}

	operation := func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.RetryNotify(operation, p.backOff(ctx), onRetry)
}
