package embedder

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig configures exponential backoff retry behavior
type RetryConfig struct {
	MaxRetries int           // Retries after the first attempt
	BaseDelay  time.Duration // Initial delay between retries
	MaxDelay   time.Duration // Maximum delay between retries
	Multiplier float64       // Exponential backoff multiplier
	Jitter     float64       // Randomization factor in [0, 1)
}

// DefaultRetryConfig returns the default retry policy
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: MaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		Multiplier: BackoffMultiplier,
		Jitter:     BackoffJitter,
	}
}

func (c RetryConfig) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.BaseDelay
	b.MaxInterval = c.MaxDelay
	b.Multiplier = c.Multiplier
	b.RandomizationFactor = c.Jitter
	if b.InitialInterval <= 0 {
		b.InitialInterval = DefaultBaseDelay
	}
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	if b.Multiplier < 1 {
		b.Multiplier = BackoffMultiplier
	}
	return b
}

// retryWithBackoff executes fn until it succeeds, returns a permanent error,
// the context ends, or MaxRetries retries have been spent.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func() (T, error), notify func(error, time.Duration)) (T, error) {
	opts := []backoff.RetryOption{
		backoff.WithBackOff(config.backOff()),
		backoff.WithMaxTries(uint(max(0, config.MaxRetries)) + 1),
		backoff.WithMaxElapsedTime(0),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(notify))
	}
	return backoff.Retry(ctx, func() (T, error) {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil || !isRetryable(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}, opts...)
}

// isRetryable classifies provider errors. Throttling, server errors and
// transport failures are retryable; client errors and malformed input are not.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrEmptyText) || errors.Is(err, ErrDimensionMismatch) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code == http.StatusRequestTimeout || se.Code >= 500
	}
	return true
}
