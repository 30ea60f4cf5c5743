package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyAuth returns a middleware enforcing "<prefix> <key>" in the given
// header. An empty key disables authentication entirely. The prefix match
// is case-insensitive, the key comparison is constant-time, and failures
// are independent of the request content.
func APIKeyAuth(header, prefix, key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(header)
			if raw == "" {
				reject(w, prefix, "missing "+header+" header")
				return
			}
			parts := strings.SplitN(raw, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], prefix) {
				reject(w, prefix, "invalid credential format, expected: "+prefix+" <api key>")
				return
			}
			if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(key)) != 1 {
				reject(w, prefix, "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func reject(w http.ResponseWriter, prefix, msg string) {
	authFailuresTotal.Inc()
	w.Header().Set("WWW-Authenticate", prefix)
	writeJSONError(w, http.StatusUnauthorized, msg)
}
