package middleware

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRateLimiterWindowSlides(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2)
	rl.now = func() time.Time { return clock }

	for i := 0; i < 2; i++ {
		if _, _, ok := rl.Allow("a"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
		clock = clock.Add(10 * time.Second)
	}

	// first request was at 12:00:00; it leaves the window at 12:01:00
	_, retry, ok := rl.Allow("a")
	if ok {
		t.Fatal("third request inside the window should be limited")
	}
	if retry != 40*time.Second {
		t.Errorf("retryAfter = %v, want 40s", retry)
	}

	clock = clock.Add(41 * time.Second)
	if remaining, _, ok := rl.Allow("a"); !ok || remaining != 0 {
		t.Errorf("after the oldest entry expires: ok=%v remaining=%d, want true 0", ok, remaining)
	}
}

func TestRateLimiterSweep(t *testing.T) {
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5)
	rl.now = func() time.Time { return clock }

	rl.Allow("idle")
	clock = clock.Add(50 * time.Second)
	rl.Allow("active")
	clock = clock.Add(20 * time.Second)

	rl.Sweep()
	if _, ok := rl.clients["idle"]; ok {
		t.Error("idle client should be swept")
	}
	if _, ok := rl.clients["active"]; !ok {
		t.Error("active client should be kept")
	}
}

func TestAccessLevel(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   zerolog.Level
	}{
		{"/api/v1/agents/invoke", 200, zerolog.InfoLevel},
		{"/api/v1/agents/invoke", 422, zerolog.WarnLevel},
		{"/api/v1/agents/invoke", 502, zerolog.ErrorLevel},
		{"/health", 200, zerolog.DebugLevel},
		{"/health", 503, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := accessLevel(tt.path, tt.status); got != tt.want {
			t.Errorf("accessLevel(%s, %d) = %v, want %v", tt.path, tt.status, got, tt.want)
		}
	}
}
