package notifier

import (
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{
		MaxPerWindow: 3,
		Window:       time.Minute,
		Enabled:      true,
	})

	for i := 0; i < 3; i++ {
		if !r.Allow() {
			t.Fatalf("Allow() = false at %d, want true", i)
		}
	}
	if r.Allow() {
		t.Error("Allow() = true over the limit, want false")
	}
	if r.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", r.Dropped())
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{
		MaxPerWindow: 1,
		Window:       time.Minute,
		Enabled:      false,
	})

	for i := 0; i < 10; i++ {
		if !r.Allow() {
			t.Fatal("disabled limiter refused a notification")
		}
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{
		MaxPerWindow: 1,
		Window:       20 * time.Millisecond,
		Enabled:      true,
	})

	if !r.Allow() {
		t.Fatal("first Allow() = false")
	}
	if r.Allow() {
		t.Fatal("second Allow() = true inside window")
	}

	time.Sleep(30 * time.Millisecond)
	if !r.Allow() {
		t.Error("Allow() = false after window expired")
	}
}

func TestRateLimiterRelease(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{
		MaxPerWindow: 1,
		Window:       time.Minute,
		Enabled:      true,
	})

	if !r.Allow() {
		t.Fatal("Allow() = false")
	}
	r.Release()
	if !r.Allow() {
		t.Error("Allow() = false after Release refunded the token")
	}
}

func TestRateLimiterReset(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{
		MaxPerWindow: 1,
		Window:       time.Minute,
		Enabled:      true,
	})

	r.Allow()
	r.Allow()
	r.Reset()

	stats := r.Stats()
	if stats.CurrentCount != 0 || stats.Dropped != 0 {
		t.Errorf("Stats() after reset = %+v", stats)
	}
}
