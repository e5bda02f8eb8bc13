package providers

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_Wait(t *testing.T) {
	t.Run("consumes available tokens immediately", func(t *testing.T) {
		limiter := NewRateLimiter(10.0)

		start := time.Now()
		for i := 0; i < 5; i++ {
			if err := limiter.Wait(context.Background()); err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
			t.Errorf("burst consumption took %v, expected near-instant", elapsed)
		}
	})

	t.Run("blocks when bucket empty", func(t *testing.T) {
		limiter := NewRateLimiter(100.0)

		// Drain the bucket.
		for limiter.TryConsume() {
		}

		start := time.Now()
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
			t.Errorf("expected wait for refill, returned after %v", elapsed)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		limiter := NewRateLimiter(0.1) // One token every 10s

		// Drain the bucket.
		for limiter.TryConsume() {
		}

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		if err := limiter.Wait(ctx); err == nil {
			t.Error("expected context error")
		}
	})
}

func TestRateLimiter_TryConsume(t *testing.T) {
	limiter := NewRateLimiter(2.0)

	consumed := 0
	for limiter.TryConsume() {
		consumed++
		if consumed > 10 {
			t.Fatal("bucket never drained")
		}
	}
	if consumed != 2 {
		t.Errorf("consumed %d tokens from fresh bucket, want 2", consumed)
	}
}

func TestRateLimiter_Status(t *testing.T) {
	limiter := NewRateLimiter(4.0)

	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	status := limiter.Status()
	if status.TokensLimit != 4 {
		t.Errorf("TokensLimit = %d, want 4", status.TokensLimit)
	}
	if status.TotalConsumed != 1 {
		t.Errorf("TotalConsumed = %d, want 1", status.TotalConsumed)
	}
}

func TestRateLimiter_Record429(t *testing.T) {
	limiter := NewRateLimiter(10.0)
	limiter.Record429(2 * time.Second)

	status := limiter.Status()
	if status.Last429Time.IsZero() {
		t.Error("Last429Time not recorded")
	}
	if status.TokensAvailable != 0 {
		t.Errorf("TokensAvailable = %d after 429, want 0", status.TokensAvailable)
	}
}

func TestRateLimitError(t *testing.T) {
	err := &RateLimitError{Message: "too many requests", RetryAfter: 3 * time.Second, StatusCode: 429}
	if got := err.Error(); got != "too many requests (retry after 3s)" {
		t.Errorf("Error() = %q", got)
	}

	bare := &RateLimitError{Message: "too many requests"}
	if got := bare.Error(); got != "too many requests" {
		t.Errorf("Error() = %q", got)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"0", 0},
		{"-3", 0},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.in); got != tt.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
