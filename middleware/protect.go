// ABOUTME: Route gate that requires an established session
// ABOUTME: Redirects pages to the login path and answers API requests with 401

package middleware

import (
	"log/slog"
	"net/http"

	"github.com/markalston/flashdeck/backend/models"
)

// ProtectRoute rejects requests that the session middleware left anonymous
func ProtectRoute(loginPath string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if GetSession(r) != nil {
				next(w, r)
				return
			}

			slog.Debug("Protected route rejected: no session", "path", sanitizePath(r.URL.Path))
			if isAPIPath(r.URL.Path) {
				writeAPIError(w, models.NewAuthError(models.CodeUnauthorized, "Authentication required", nil))
				return
			}
			redirectToLogin(w, r, loginPath)
		}
	}
}
