package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/searchapi-console/internal/httputil"
)

// AuthAttemptLimiter blocks a client after repeated credential failures
// within a window. Entries are keyed by purpose and client IP.
type AuthAttemptLimiter struct {
	mu            sync.Mutex
	entries       map[string]*authAttempt
	maxFailures   int
	window        time.Duration
	blockDuration time.Duration
	lastCleanup   time.Time
	cleanupEvery  time.Duration
	staleEntryTTL time.Duration
}

type authAttempt struct {
	failures     int
	windowStart  time.Time
	blockedUntil time.Time
	lastSeen     time.Time
}

func NewAuthAttemptLimiter(maxFailures int, window, blockDuration time.Duration) *AuthAttemptLimiter {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	if blockDuration <= 0 {
		blockDuration = 15 * time.Minute
	}

	return &AuthAttemptLimiter{
		entries:       make(map[string]*authAttempt),
		maxFailures:   maxFailures,
		window:        window,
		blockDuration: blockDuration,
		lastCleanup:   time.Now(),
		cleanupEvery:  5 * time.Minute,
		staleEntryTTL: 24 * time.Hour,
	}
}

// LoginAttempts guards the login route: a client that keeps sending bad
// credentials is answered 429 until its block expires. 401 responses
// count as failures, 2xx responses reset the count.
func LoginAttempts(limiter *AuthAttemptLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIPKey(r, "login")
			if !limiter.allow(key) {
				log.Warn().Str("client", key).Msg("login attempt blocked")
				httputil.RespondError(w, http.StatusTooManyRequests, "rate_limited", "Too many failed login attempts, try again later")
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			limiter.record(key, rec.status)
		})
	}
}

func (l *AuthAttemptLimiter) record(key string, status int) {
	switch {
	case status == http.StatusUnauthorized:
		l.registerFailure(key)
	case status >= 200 && status < 300:
		l.registerSuccess(key)
	}
}

func (l *AuthAttemptLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	defer l.cleanupLocked(now)

	entry, ok := l.entries[key]
	if !ok {
		return true
	}

	entry.lastSeen = now
	if now.Before(entry.blockedUntil) {
		return false
	}
	if now.Sub(entry.windowStart) > l.window {
		entry.failures = 0
		entry.windowStart = now
	}
	return true
}

func (l *AuthAttemptLimiter) registerFailure(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	defer l.cleanupLocked(now)

	entry, ok := l.entries[key]
	if !ok {
		entry = &authAttempt{windowStart: now}
		l.entries[key] = entry
	}

	entry.lastSeen = now
	if now.Sub(entry.windowStart) > l.window {
		entry.windowStart = now
		entry.failures = 0
	}

	entry.failures++
	if entry.failures >= l.maxFailures {
		entry.blockedUntil = now.Add(l.blockDuration)
		entry.failures = 0
		entry.windowStart = now
	}
}

func (l *AuthAttemptLimiter) registerSuccess(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.entries, key)
	l.cleanupLocked(time.Now())
}

func (l *AuthAttemptLimiter) cleanupLocked(now time.Time) {
	if now.Sub(l.lastCleanup) < l.cleanupEvery {
		return
	}

	for key, entry := range l.entries {
		if now.Sub(entry.lastSeen) > l.staleEntryTTL && now.After(entry.blockedUntil) {
			delete(l.entries, key)
		}
	}
	l.lastCleanup = now
}

func clientIPKey(r *http.Request, prefix string) string {
	host := r.RemoteAddr
	if parsedHost, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		host = parsedHost
	}
	if host == "" {
		host = "unknown"
	}
	return prefix + ":" + host
}
