package connection

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicy_Delay(t *testing.T) {
	tests := []struct {
		name   string
		policy RetryPolicy
		n      int
		want   time.Duration
	}{
		{"fixed first", FixedRetry(5, 5*time.Second), 1, 5 * time.Second},
		{"fixed fifth", FixedRetry(5, 5*time.Second), 5, 5 * time.Second},
		{"exponential 1", ExponentialBackoff(3, time.Second, 2, 10*time.Second), 1, time.Second},
		{"exponential 2", ExponentialBackoff(3, time.Second, 2, 10*time.Second), 2, 2 * time.Second},
		{"exponential 3", ExponentialBackoff(3, time.Second, 2, 10*time.Second), 3, 4 * time.Second},
		{"exponential 4", ExponentialBackoff(3, time.Second, 2, 10*time.Second), 4, 8 * time.Second},
		{"exponential capped", ExponentialBackoff(3, time.Second, 2, 10*time.Second), 5, 10 * time.Second},
		{"zero retry treated as first", ExponentialBackoff(3, time.Second, 2, 10*time.Second), 0, time.Second},
		{"multiplier below one", RetryPolicy{BaseDelay: time.Second, Multiplier: 0.5}, 3, time.Second},
		{"uncapped overflow", RetryPolicy{BaseDelay: time.Hour, Multiplier: 10}, 40, time.Duration(1<<63 - 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Delay(tt.n); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}
}

func TestSleepContext(t *testing.T) {
	if err := SleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("SleepContext = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := SleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("SleepContext = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("SleepContext ignored cancellation")
	}
}
