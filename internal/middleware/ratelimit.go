package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/chebacca/agentcore/internal/models"
)

// window is a sliding one-minute log of request times for one client.
type window struct {
	mu    sync.Mutex
	times []time.Time
	last  time.Time
}

// take records a request at now if fewer than limit fall inside span. When
// the client is over the limit it returns how long until the oldest entry
// leaves the window.
func (w *window) take(now time.Time, limit int, span time.Duration) (remaining int, retryAfter time.Duration, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-span)
	i := 0
	for i < len(w.times) && !w.times[i].After(cutoff) {
		i++
	}
	w.times = w.times[i:]
	w.last = now

	if len(w.times) >= limit {
		return 0, w.times[0].Sub(cutoff), false
	}
	w.times = append(w.times, now)
	return limit - len(w.times), 0, true
}

func (w *window) idleSince(t time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last.Before(t)
}

// RateLimiter tracks one sliding window per client key.
type RateLimiter struct {
	limit int
	span  time.Duration
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*window
}

func NewRateLimiter(limitPerMinute int) *RateLimiter {
	return &RateLimiter{
		limit:   limitPerMinute,
		span:    time.Minute,
		now:     time.Now,
		clients: make(map[string]*window),
	}
}

// Allow records a request for key.
func (rl *RateLimiter) Allow(key string) (remaining int, retryAfter time.Duration, ok bool) {
	rl.mu.Lock()
	w, found := rl.clients[key]
	if !found {
		w = &window{}
		rl.clients[key] = w
	}
	rl.mu.Unlock()
	return w.take(rl.now(), rl.limit, rl.span)
}

// Sweep forgets clients idle for longer than the window.
func (rl *RateLimiter) Sweep() {
	cutoff := rl.now().Add(-rl.span)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, w := range rl.clients {
		if w.idleSince(cutoff) {
			delete(rl.clients, key)
		}
	}
}

// Run sweeps idle clients every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}

// RateLimit allows rl's limit of requests per minute per client. Clients are
// keyed by the API key Auth accepted, otherwise by remote host, so it must
// be mounted after Auth.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	limit := strconv.Itoa(rl.limit)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			remaining, retryAfter, ok := rl.Allow(key)

			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !ok {
				secs := int(math.Ceil(retryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				models.WriteErrorKind(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if k := APIKey(r); k != "" {
		return "key:" + k
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}
