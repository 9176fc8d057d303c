package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/searchapi-console/internal/httputil"
)

// RateLimiter is a per-key fixed window limiter for proxied search
// calls. Keys are stored hashed.
type RateLimiter struct {
	mu          sync.Mutex
	max         int
	window      time.Duration
	counters    map[string]*window
	lastCleanup time.Time
}

type window struct {
	count    int
	resetAt  time.Time
	lastSeen time.Time
}

const (
	cleanupInterval    = 5 * time.Minute
	expiredWindowGrace = 10 * time.Minute
	staleEntryTTL      = 24 * time.Hour
)

// NewRateLimiter allows limit requests per key per period. A
// non-positive limit disables limiting.
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		max:         limit,
		window:      period,
		counters:    make(map[string]*window),
		lastCleanup: time.Now(),
	}
}

// Allow counts a request for apiKey. Returns (allowed, remaining, resetAt).
func (rl *RateLimiter) Allow(apiKey string) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	id := SHA256Hex(apiKey)
	now := time.Now()
	defer rl.cleanupLocked(now)

	w, exists := rl.counters[id]
	if !exists || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(rl.window)}
		rl.counters[id] = w
	}
	w.lastSeen = now

	if w.count >= rl.max {
		return false, 0, w.resetAt
	}
	w.count++
	return true, rl.max - w.count, w.resetAt
}

// Remaining returns the remaining request count without incrementing.
func (rl *RateLimiter) Remaining(apiKey string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, exists := rl.counters[SHA256Hex(apiKey)]
	if !exists || time.Now().After(w.resetAt) {
		return rl.max
	}
	return max(rl.max-w.count, 0)
}

// RateLimitMiddleware enforces the limit for the key attached by
// SearchKeyAuth. Requests without a key pass through.
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := GetSearchKey(r.Context())
			if apiKey == "" || rl.max <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			allowed, remaining, resetAt := rl.Allow(apiKey)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !allowed {
				httputil.RespondError(w, http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) cleanupLocked(now time.Time) {
	if now.Sub(rl.lastCleanup) < cleanupInterval {
		return
	}

	for id, w := range rl.counters {
		if now.Sub(w.lastSeen) > staleEntryTTL || now.After(w.resetAt.Add(expiredWindowGrace)) {
			delete(rl.counters, id)
		}
	}
	rl.lastCleanup = now
}
