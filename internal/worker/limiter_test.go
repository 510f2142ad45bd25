package worker

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1) // 100 rps, burst 1
	ctx := context.Background()

	if err := limiter.Wait(ctx, "http://example.com/cat.png"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	// Different host should also work
	if err := limiter.Wait(ctx, "http://images.example.org/dog.png"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	// 1 rps, burst 1
	limiter := NewLimiter(1, 1)
	ctx := context.Background()
	url := "http://example.com/a.png"

	if err := limiter.Wait(ctx, url); err != nil {
		t.Errorf("first wait failed: %v", err)
	}

	// Same host, token consumed
	if limiter.Allow("http://example.com/b.png") {
		t.Errorf("expected allow to fail (exhausted tokens)")
	}

	// Host matching ignores case
	if limiter.Allow("http://EXAMPLE.com/c.png") {
		t.Errorf("expected host match to be case-insensitive")
	}

	// Different host should be allowed
	if !limiter.Allow("http://other.com/a.png") {
		t.Errorf("expected allow for other host")
	}
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	url := "http://slow.example.com/a.png"

	if !limiter.Allow(url) {
		t.Fatal("first request should pass")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx, url); err == nil {
		t.Error("expected wait to fail when the deadline is shorter than the refill interval")
	}
}

func TestHostKey(t *testing.T) {
	host, err := hostKey("http://Example.com:8080/foo.png")
	if err != nil {
		t.Fatalf("hostKey failed: %v", err)
	}
	if host != "example.com:8080" {
		t.Errorf("expected example.com:8080, got %s", host)
	}

	_, err = hostKey("::invalid")
	if err == nil {
		t.Errorf("expected error for invalid URL")
	}
}
