// Package retry implements a bounded retry controller with exponential
// backoff and jitter for absorbing transient failures around blocking calls.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Policy describes how a call is retried. The zero value is not usable; start
// from DefaultPolicy and override fields as needed.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the wait before the second attempt. Each subsequent
	// wait is multiplied by Multiplier, capped at MaxDelay.
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration

	// MaxElapsed bounds the total wall-clock spent inside Do, so a
	// persistently unavailable backend cannot stall a whole test suite.
	// Zero means no bound beyond MaxAttempts.
	MaxElapsed time.Duration

	// Jitter is the fraction of each delay randomized away (0..1).
	Jitter float64

	// Retryable classifies errors. Only errors for which it returns true are
	// retried; everything else is returned after a single attempt. A nil
	// Retryable retries nothing.
	Retryable func(error) bool

	// Sleep waits for d or until ctx is done. Nil uses a real timer. Tests
	// inject a recording fake to avoid real sleeps.
	Sleep func(ctx context.Context, d time.Duration) error

	// Rand returns a value in [0,1) for jitter. Nil uses math/rand.
	Rand func() float64
}

// DefaultPolicy returns the retry policy used around model inference calls.
// The retryable predicate must still be supplied by the caller.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     10 * time.Second,
		MaxElapsed:   30 * time.Second,
		Jitter:       0.2,
	}
}

// Do invokes fn up to p.MaxAttempts times and returns its first successful
// result. On exhaustion the last observed error is returned. Non-retryable
// errors are returned immediately after one attempt. Context cancellation
// stops the loop with the context error wrapped around the last attempt's
// error, never leaving fn mid-flight.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = realSleep
	}
	rnd := p.Rand
	if rnd == nil {
		rnd = rand.Float64
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if p.Retryable == nil || !p.Retryable(err) {
			return zero, err
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := backoffDelay(p, attempt, rnd)
		if p.MaxElapsed > 0 && time.Since(start)+delay > p.MaxElapsed {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, errors.Join(err, lastErr)
		}
	}
	return zero, lastErr
}

// backoffDelay computes the wait after the given attempt (1-based):
// InitialDelay * Multiplier^(attempt-1), capped at MaxDelay, with +/- Jitter
// fraction randomized.
func backoffDelay(p Policy, attempt int, rnd func() float64) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * (2*rnd() - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func realSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
