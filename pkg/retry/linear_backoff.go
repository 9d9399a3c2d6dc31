package retry

import (
	"context"
	"time"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// LinearBackoff runs fn up to MaxAttempts times. After the n-th failed
// attempt it waits n*Step before trying again.
type LinearBackoff struct {
	Step        time.Duration
	MaxAttempts int
	Sleep       SleepFunc
}

type LinearBackoffConfig struct {
	Step        time.Duration
	MaxAttempts int
}

// NewLinearBackoff builds a backoff that sleeps with ContextSleep.
func NewLinearBackoff(config LinearBackoffConfig) *LinearBackoff {
	return &LinearBackoff{
		Step:        config.Step,
		MaxAttempts: config.MaxAttempts,
		Sleep:       ContextSleep,
	}
}

func (lb *LinearBackoff) Do(ctx context.Context, fn func() error) error {
	var lastErr error
	maxAttempts := lb.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := lb.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == maxAttempts {
			break
		}

		if err := sleep(ctx, lb.Delay(attempt)); err != nil {
			return err
		}
	}

	return lastErr
}

// Delay is the wait after the given failed attempt (1-based).
func (lb *LinearBackoff) Delay(attempt int) time.Duration {
	return time.Duration(attempt) * lb.Step
}

func ContextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
