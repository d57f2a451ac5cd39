// ABOUTME: HTTP handler for the health endpoint
// ABOUTME: Reports liveness plus the configured provider and store kinds

package handlers

import (
	"net/http"

	"github.com/markalston/flashdeck/backend/config"
)

// HealthData is the health endpoint payload
type HealthData struct {
	Status       string `json:"status"`
	AuthProvider string `json:"auth_provider"`
	AttemptStore string `json:"attempt_store"`
	Persistence  string `json:"persistence"`
}

// Health returns API health status and which backends are configured.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthData{
		Status:       "ok",
		AuthProvider: config.ProviderLocal,
		AttemptStore: config.AttemptStoreMemory,
		Persistence:  "memory",
	}
	if h.cfg != nil {
		resp.AuthProvider = h.cfg.AuthProvider
		resp.AttemptStore = h.cfg.AttemptStore
		if h.cfg.DatabaseURL != "" {
			resp.Persistence = "postgres"
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}
