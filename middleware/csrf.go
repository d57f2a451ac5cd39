// ABOUTME: CSRF protection middleware using double-submit cookie pattern
// ABOUTME: Validates X-CSRF-Token header matches the csrf_token cookie on state-changing requests

package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/markalston/flashdeck/backend/models"
)

// CSRF returns middleware that validates CSRF tokens for state-changing requests.
// Validation is skipped for:
//   - GET, HEAD, OPTIONS requests (safe methods)
//   - exempt paths (the login endpoint creates a new session and must work
//     with stale cookies)
//
// Every other request needs a non-empty csrf_token cookie and an identical
// X-CSRF-Token header.
func CSRF(exempt ...string) func(http.HandlerFunc) http.HandlerFunc {
	skip := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		skip[p] = true
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next(w, r)
				return
			}

			if skip[r.URL.Path] {
				slog.Debug("CSRF skipped: exempt path", "path", sanitizePath(r.URL.Path))
				next(w, r)
				return
			}

			if !ValidCSRF(r) {
				slog.Warn("CSRF rejected", "path", sanitizePath(r.URL.Path), "method", r.Method)
				writeAPIError(w, models.NewForbiddenError(models.CodeForbidden, "Invalid CSRF token"))
				return
			}

			next(w, r)
		}
	}
}

// ValidCSRF reports whether the csrf_token cookie and X-CSRF-Token header
// are both present and equal
func ValidCSRF(r *http.Request) bool {
	cookie := cookieValue(r, CSRFCookie)
	header := r.Header.Get(CSRFHeader)
	if cookie == "" || header == "" {
		return false
	}
	// Constant-time comparison to prevent timing attacks
	return subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) == 1
}
