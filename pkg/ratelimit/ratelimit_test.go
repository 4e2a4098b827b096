package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucketExhausts(t *testing.T) {
	tb := NewTokenBucket(3, 1)
	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Fatalf("token %d should be available", i)
		}
	}
	if tb.Allow() {
		t.Fatal("bucket should be empty")
	}
	if got := tb.Remaining(); got != 0 {
		t.Fatalf("Remaining = %d, want 0", got)
	}
}

func TestSlidingWindowLimit(t *testing.T) {
	sw := NewSlidingWindow(2, time.Minute)
	if !sw.Allow() || !sw.Allow() {
		t.Fatal("first two requests should pass")
	}
	if sw.Allow() {
		t.Fatal("third request should be rejected inside the window")
	}
	if got := sw.Remaining(); got != 0 {
		t.Fatalf("Remaining = %d, want 0", got)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	tb := NewTokenBucket(1, 0)
	tb.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := tb.Wait(ctx); err == nil {
		t.Fatal("Wait should fail once the context expires")
	}
}

func TestManagerFallback(t *testing.T) {
	m := NewManager()
	if m.Get(KalshiOrder) == nil {
		t.Fatal("order limiter missing")
	}
	if err := m.Wait(context.Background(), "unknown:endpoint"); err != nil {
		t.Fatalf("fallback limiter should allow immediately: %v", err)
	}
}
