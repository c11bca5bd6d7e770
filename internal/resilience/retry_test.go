package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		Name:           "test",
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
}

func TestDo_RetriesTransient(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return MarkTransient(errors.New("temporary"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(4), func(_ context.Context) error {
		calls++
		return MarkTransient(errors.New("still down"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(5), func(_ context.Context) error {
		calls++
		return errors.New(`relation "occurrences" does not exist`)
	})
	if err == nil || calls != 1 {
		t.Errorf("calls=%d err=%v", calls, err)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, RetryConfig{MaxAttempts: 5, InitialBackoff: time.Hour}, func(_ context.Context) error {
		calls++
		cancel()
		return MarkTransient(errors.New("temporary"))
	})
	if err == nil || calls != 1 {
		t.Errorf("calls=%d err=%v", calls, err)
	}
}

func TestDoVal(t *testing.T) {
	calls := 0
	v, err := DoVal(context.Background(), fastRetry(3), func(_ context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, MarkTransient(errors.New("temporary"))
		}
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Fatalf("got %d, %v", v, err)
	}

	v, err = DoVal(context.Background(), fastRetry(2), func(_ context.Context) (int, error) {
		return 7, errors.New("permanent")
	})
	if err == nil || v != 0 {
		t.Errorf("expected zero value with error, got %d, %v", v, err)
	}
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2}.withDefaults()
	cfg.JitterFraction = 0

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second}
	for i, w := range want {
		if got := cfg.backoff(i + 1); got != w {
			t.Errorf("attempt %d: got %s, want %s", i+1, got, w)
		}
	}

	cfg.JitterFraction = 0.5
	for i := 0; i < 100; i++ {
		d := cfg.backoff(1)
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("jittered delay %s out of range", d)
		}
	}
}

func TestConfig(t *testing.T) {
	c := Config{MaxAttempts: 5, InitialBackoffMs: 10, FailureThreshold: 2, ResetTimeoutSecs: 7}

	r := c.Retry("points")
	if r.Name != "points" || r.MaxAttempts != 5 || r.InitialBackoff != 10*time.Millisecond {
		t.Errorf("unexpected retry config %+v", r)
	}
	if r.MaxBackoff != DefaultRetryConfig().MaxBackoff {
		t.Errorf("unset max backoff should keep default, got %s", r.MaxBackoff)
	}

	b := c.Breaker("redis")
	if b.Name != "redis" || b.FailureThreshold != 2 || b.ResetTimeout != 7*time.Second {
		t.Errorf("unexpected breaker config %+v", b)
	}
}
