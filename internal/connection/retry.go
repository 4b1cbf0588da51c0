package connection

import (
	"context"
	"math"
	"time"
)

// RetryPolicy bounds a retry loop. MaxAttempts counts retries after the
// initial try, so a loop makes at most MaxAttempts+1 attempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// FixedRetry returns a policy that waits delay between every attempt.
func FixedRetry(maxAttempts int, delay time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   delay,
		Multiplier:  1,
		MaxDelay:    delay,
	}
}

// ExponentialBackoff returns a policy whose delay grows by multiplier per
// retry, capped at maxDelay.
func ExponentialBackoff(maxAttempts int, base time.Duration, multiplier float64, maxDelay time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   base,
		Multiplier:  multiplier,
		MaxDelay:    maxDelay,
	}
}

// Delay returns the wait before retry n (1-based):
// min(BaseDelay * Multiplier^(n-1), MaxDelay). A zero MaxDelay means no cap.
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	d := float64(p.BaseDelay) * math.Pow(mult, float64(n-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// SleepContext waits for d or until ctx ends, returning ctx.Err() in the
// latter case.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
