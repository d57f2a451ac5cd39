// ABOUTME: Handlers for sensitive account mutations
// ABOUTME: Change-password and soft-delete, each behind session, CSRF, and attempt limits

package handlers

import (
	"net/http"

	"github.com/markalston/flashdeck/backend/middleware"
	"github.com/markalston/flashdeck/backend/models"
	"github.com/markalston/flashdeck/backend/services"
)

// ChangePassword handles POST /api/v1/account/change-password. A body that
// does not decode still counts as an attempt.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	noStore(w)

	var req models.ChangePasswordRequest
	ar := h.accountRequest(r)
	ar.BodyErr = decodeJSON(w, r, &req)

	if err := h.accounts.ChangePassword(r.Context(), ar, req); err != nil {
		h.writeAPIError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, models.MessageData{Message: "Password updated successfully"})
}

// DeleteAccount handles POST /api/v1/account/delete. The session cookies are
// cleared once the profile is marked deleted.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	noStore(w)

	var req models.DeleteAccountRequest
	ar := h.accountRequest(r)
	ar.BodyErr = decodeJSON(w, r, &req)

	if err := h.accounts.DeleteAccount(r.Context(), ar, req); err != nil {
		h.writeAPIError(w, r, err)
		return
	}

	h.cookies.Clear(w)
	h.writeJSON(w, http.StatusOK, models.MessageData{Message: "Account deleted successfully"})
}

func (h *Handler) accountRequest(r *http.Request) services.AccountRequest {
	return services.AccountRequest{
		Session:      middleware.GetSession(r),
		Client:       middleware.GetIdentityClient(r),
		CookieUserID: h.cookies.Read(r).UserID,
	}
}
