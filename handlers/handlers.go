// ABOUTME: HTTP handlers for the account and session API
// ABOUTME: Holds service dependencies and the single JSON response boundary

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/markalston/flashdeck/backend/config"
	"github.com/markalston/flashdeck/backend/middleware"
	"github.com/markalston/flashdeck/backend/models"
	"github.com/markalston/flashdeck/backend/services"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 64 << 10

type Handler struct {
	cfg      *config.Config
	provider services.IdentityProvider
	accounts *services.AccountService
	profiles services.ProfileStore
	audit    *services.AuditLog
	cookies  middleware.CookieJar
}

func NewHandler(cfg *config.Config, provider services.IdentityProvider) *Handler {
	h := &Handler{
		cfg:      cfg,
		provider: provider,
		cookies:  middleware.CookieJar{Secure: true},
	}
	if cfg != nil {
		h.cookies.Secure = cfg.CookieSecure
	}
	return h
}

// SetAccountService sets the service behind the account endpoints
func (h *Handler) SetAccountService(s *services.AccountService) {
	h.accounts = s
}

// SetProfileStore sets the store consulted at login
func (h *Handler) SetProfileStore(s services.ProfileStore) {
	h.profiles = s
}

// SetAuditLog sets the audit log for login and logout events
func (h *Handler) SetAuditLog(a *services.AuditLog) {
	h.audit = a
}

// Cookies returns the cookie jar the handlers write with
func (h *Handler) Cookies() middleware.CookieJar {
	return h.cookies
}

// writeJSON writes data inside the {"data": ...} envelope
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(models.DataResponse{Data: data}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeAPIError maps any error to the error envelope. Values that are not
// APIErrors become a generic 500.
func (h *Handler) writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *models.APIError
	if !errors.As(err, &apiErr) {
		apiErr = models.NewInternalError(err)
	}

	if apiErr.Status() >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "code", apiErr.Code, "error", apiErr.Err)
	} else {
		slog.Debug("Request rejected", "path", r.URL.Path, "code", apiErr.Code, "kind", apiErr.Kind)
	}

	if apiErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(apiErr.RetryAfter))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status())
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error: models.ErrorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
	})
}

// decodeJSON reads a bounded JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.NewValidationError("Invalid request body", nil)
	}
	return nil
}

// noStore marks a response as uncacheable
func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
}
