package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/searchapi-console/internal/httputil"
)

type contextKey string

const searchKeyContextKey contextKey = "search_api_key"

// SessionChecker reports whether the dashboard session is logged in.
type SessionChecker interface {
	IsLoggedIn() bool
}

// GetSearchKey returns the API key attached by SearchKeyAuth.
func GetSearchKey(ctx context.Context) string {
	key, _ := ctx.Value(searchKeyContextKey).(string)
	return key
}

// RequireSession rejects requests while the dashboard session is not
// authenticated.
func RequireSession(s SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.IsLoggedIn() {
				httputil.RespondError(w, http.StatusUnauthorized, "not_authenticated", "Log in to continue")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SearchKeyAuth requires an API key in X-API-Key and stores it in the
// request context. Authorization headers are ignored. The key itself
// is validated by the remote service.
func SearchKeyAuth(limiter *AuthAttemptLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attemptKey := clientIPKey(r, "search_key")
			if limiter != nil && !limiter.allow(attemptKey) {
				httputil.RespondError(w, http.StatusTooManyRequests, "rate_limited", "Too many authentication failures")
				return
			}

			key := strings.TrimSpace(r.Header.Get("X-API-Key"))
			if key == "" {
				if limiter != nil {
					limiter.registerFailure(attemptKey)
				}
				httputil.RespondError(w, http.StatusUnauthorized, "invalid_api_key", "Missing API key")
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			ctx := context.WithValue(r.Context(), searchKeyContextKey, key)
			next.ServeHTTP(rec, r.WithContext(ctx))

			if limiter != nil {
				limiter.record(attemptKey, rec.status)
			}
		})
	}
}

// SHA256Hex returns the hex-encoded SHA-256 hash of the input.
func SHA256Hex(input string) string {
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:])
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}
