package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/statsanytime/trade-bots/pkg/response"
)

// NewOpsAuth guards the ops API with a single shared key. Health probes
// stay open so orchestrators can reach them. An empty key disables the
// guard, which is only sensible for local development.
func NewOpsAuth(opsKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opsKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			if r.URL.Path == "/api/v1/health" || r.URL.Path == "/api/v1/ready" {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-Ops-Key")
			if key == "" {
				auth := r.Header.Get("Authorization")
				if strings.HasPrefix(auth, "Bearer ") {
					key = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if key == "" {
				response.Unauthorized(w, "Authentication required. Use X-Ops-Key header.")
				return
			}

			if subtle.ConstantTimeCompare([]byte(key), []byte(opsKey)) != 1 {
				response.Unauthorized(w, "Invalid ops key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
