package timing

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterUnlimited(t *testing.T) {
	rl := NewRateLimiter(0, 0, nil)
	for i := 0; i < 100; i++ {
		if !rl.Allow() {
			t.Fatalf("call %d throttled with throttling disabled", i)
		}
	}
	if got := rl.GetStats()["request_count"].(int64); got != 100 {
		t.Fatalf("request_count = %d", got)
	}
}

func TestRateLimiterBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2, nil)
	if !rl.Allow() || !rl.Allow() {
		t.Fatal("burst of two should be allowed")
	}
	if rl.Allow() {
		t.Fatal("third immediate call should be throttled")
	}
	stats := rl.GetStats()
	if stats["blocked_count"].(int64) != 1 || stats["burst"].(int) != 2 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestRateLimiterWaitHonoursContext(t *testing.T) {
	rl := NewRateLimiter(0.001, 1, nil)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); err == nil {
		t.Fatal("expected error when the next token is beyond the deadline")
	}

	rl.SetRate(0)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("wait after lifting limit: %v", err)
	}
}
