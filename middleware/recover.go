// ABOUTME: Panic recovery middleware
// ABOUTME: Converts handler panics into the standard 500 error body

package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/markalston/flashdeck/backend/models"
)

// Recover catches panics from downstream handlers. It should wrap everything
// else so no panic escapes to net/http.
func Recover(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			slog.Error("Handler panicked",
				"method", r.Method,
				"path", sanitizePath(r.URL.Path),
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
			if wrapped.wroteHeader {
				return
			}
			writeAPIError(w, models.NewInternalError(fmt.Errorf("panic: %v", rec)))
		}()
		next(wrapped, r)
	}
}
