package httpserver

import (
	"crypto/subtle"
	"net/http"

	apierrors "github.com/ShieldStack/server/internal/errors"
)

// adminAuth protects the admin surface with an API key. If no key is
// configured the endpoints are open, which is the expected setup for local
// development. With a key configured, requests must carry an
// "Authorization: Bearer {key}" header.
func adminAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			expected := "Bearer " + apiKey
			if subtle.ConstantTimeCompare([]byte(authHeader), []byte(expected)) != 1 {
				apierrors.WriteError(w, apierrors.ErrCodeUnauthorized, "Invalid or missing admin API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
