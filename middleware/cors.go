// ABOUTME: CORS middleware for API cross-origin requests
// ABOUTME: Echoes allowlisted origins with credentials and answers preflight requests

package middleware

import (
	"net/http"
	"slices"
)

// CORSWithConfig returns middleware that allows cross-origin requests from
// allowedOrigins only. Cookies travel with cross-origin requests, so the
// origin is echoed rather than "*". Same-origin requests carry no Origin
// header and get no CORS headers. OPTIONS preflight requests return 204
// without calling the wrapped handler.
func CORSWithConfig(allowedOrigins []string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				w.Header().Add("Vary", "Origin")
			}
			if origin != "" && slices.Contains(allowedOrigins, origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+CSRFHeader)
				w.Header().Set("Access-Control-Max-Age", "600")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next(w, r)
		}
	}
}
