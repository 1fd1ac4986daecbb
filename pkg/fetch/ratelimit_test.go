package fetch

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(0, testLogger())
	if rl.Enabled() {
		t.Fatal("zero delay should disable the limiter")
	}

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := rl.Wait(context.Background(), "example.com"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("disabled limiter waited %v", elapsed)
	}

	var nilLimiter *RateLimiter
	if err := nilLimiter.Wait(context.Background(), "example.com"); err != nil {
		t.Errorf("nil limiter should be a no-op, got %v", err)
	}
}

func TestRateLimiter_NoDelayOnFirstRequest(t *testing.T) {
	rl := NewRateLimiter(5*time.Second, testLogger())

	start := time.Now()
	if err := rl.Wait(context.Background(), "fresh-host.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 20*time.Millisecond {
		t.Errorf("first request took %v, expected instant return", elapsed)
	}
}

func TestRateLimiter_SpacesRequestsToSameHost(t *testing.T) {
	rl := NewRateLimiter(100*time.Millisecond, testLogger())
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := rl.Wait(ctx, "example.com"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	elapsed := time.Since(start)

	if elapsed < 80*time.Millisecond {
		t.Errorf("second request returned too quickly: %v, expected ~100ms", elapsed)
	}
	if elapsed > 400*time.Millisecond {
		t.Errorf("second request took too long: %v", elapsed)
	}
}

func TestRateLimiter_HostsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(5*time.Second, testLogger())
	ctx := context.Background()

	start := time.Now()
	for _, host := range []string{"a.com", "b.com", "c.com"} {
		if err := rl.Wait(ctx, host); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("distinct hosts should not wait on each other, took %v", elapsed)
	}
}

func TestRateLimiter_RespectsContextCancellation(t *testing.T) {
	rl := NewRateLimiter(5*time.Second, testLogger())
	host := "example.com"
	_ = rl.Wait(context.Background(), host) // consume the burst

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := rl.Wait(ctx, host); err == nil {
		t.Error("expected error for cancelled context")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Wait with cancelled context took %v, expected <100ms", elapsed)
	}
}
