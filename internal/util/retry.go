package util

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff describes an exponential retry schedule with jitter.
type Backoff struct {
	MaxTries     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter is the fraction of the delay that is randomised, 0 disables it.
	Jitter float64
}

// DefaultBackoff is used for LLM calls and database transactions.
var DefaultBackoff = Backoff{
	MaxTries:     3,
	InitialDelay: 200 * time.Millisecond,
	MaxDelay:     5 * time.Second,
	Multiplier:   2,
	Jitter:       0.2,
}

// Delay returns the wait before attempt n (0-based). Attempt 0 never waits.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt <= 0 || b.InitialDelay <= 0 {
		return 0
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(b.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	if b.Jitter > 0 {
		delta := delay * b.Jitter
		delay += delta * (rand.Float64()*2 - 1)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// RetryWithBackoff calls fn until it succeeds, the schedule is exhausted, the
// error is permanent or ctx is done. The last error is returned unwrapped.
func RetryWithBackoff[T any](ctx context.Context, b Backoff, fn func(context.Context) (T, error)) (T, error) {
	maxTries := b.MaxTries
	if maxTries <= 0 {
		maxTries = 1
	}

	var zero T
	var lastErr error
	for i := 0; i < maxTries; i++ {
		if wait := b.Delay(i); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		var p permanentError
		if errors.As(err, &p) {
			return zero, p.err
		}
		lastErr = err
	}
	return zero, lastErr
}

// RetryErrWithBackoff is RetryWithBackoff for functions without a result.
func RetryErrWithBackoff(ctx context.Context, b Backoff, fn func(context.Context) error) error {
	_, err := RetryWithBackoff(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
