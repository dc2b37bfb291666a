package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowDrainsAndRefills(t *testing.T) {
	l := New()
	now := time.Unix(0, 0)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if !l.Allow("k", 2, 1) {
			t.Fatalf("token %d should be available", i)
		}
	}
	if l.Allow("k", 2, 1) {
		t.Fatalf("bucket should be empty")
	}
	if !l.Allow("other", 2, 1) {
		t.Fatalf("keys must not share a bucket")
	}
	now = now.Add(time.Second)
	if !l.Allow("k", 2, 1) {
		t.Fatalf("bucket should have refilled")
	}
}

func TestWaitHonorsContext(t *testing.T) {
	l := New()
	if err := l.Wait(context.Background(), "k", 1, 0.001); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "k", 1, 0.001); err == nil {
		t.Fatalf("expected context error")
	}
}
