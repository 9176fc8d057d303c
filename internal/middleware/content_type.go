package middleware

import (
	"net/http"
	"strings"

	"github.com/searchapi-console/internal/httputil"
)

// maxBodyBytes caps request bodies on the local API.
const maxBodyBytes = 1 << 20

// RequireJSON rejects bodies that are not JSON and caps their size.
// A POST without a body is allowed (logout, visibility toggles).
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPatch, http.MethodPut:
			ct := r.Header.Get("Content-Type")
			if r.ContentLength != 0 && !strings.HasPrefix(ct, "application/json") {
				httputil.RespondError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "Content-Type must be application/json")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
