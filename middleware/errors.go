// ABOUTME: JSON error response helper for middleware
// ABOUTME: Renders APIError values in the same envelope the handlers use

package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/markalston/flashdeck/backend/models"
)

// writeAPIError writes e as {"error":{"code","message","details"?}}.
// Matches handlers.writeAPIError so middleware and handler failures look alike.
func writeAPIError(w http.ResponseWriter, e *models.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(e.RetryAfter))
	}
	w.WriteHeader(e.Status())
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error: models.ErrorBody{
			Code:    e.Code,
			Message: e.Message,
			Details: e.Details,
		},
	})
}
