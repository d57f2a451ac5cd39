// ABOUTME: Auth handlers for cookie-based sessions
// ABOUTME: Handles login, logout, and current-user lookups

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/markalston/flashdeck/backend/middleware"
	"github.com/markalston/flashdeck/backend/models"
	"github.com/markalston/flashdeck/backend/services"
)

// Login signs the user in with the identity provider and sets the session cookies
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	ctx := r.Context()

	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeAPIError(w, r, err)
		return
	}
	if fields := services.ValidateLogin(req); len(fields) > 0 {
		h.writeAPIError(w, r, models.NewValidationError("Invalid input", fields))
		return
	}

	session, err := h.provider.SignInWithPassword(ctx, req.Email, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		slog.Warn("Login failed", "reason", "invalid credentials")
		h.audit.Failure(ctx, "", models.AuditLogin, "invalid credentials")
		h.writeAPIError(w, r, models.NewAuthError(models.CodeInvalidCredentials, "Invalid credentials", nil))
		return
	}
	if err != nil {
		h.writeAPIError(w, r, models.NewInternalError(err))
		return
	}

	if h.profiles != nil {
		if err := h.profiles.Ensure(ctx, session.UserID); err != nil {
			h.writeAPIError(w, r, models.NewUpstreamError(models.CodeDatabase, "Failed to load account", err))
			return
		}
		deleted, err := h.profiles.IsDeleted(ctx, session.UserID)
		if err != nil {
			h.writeAPIError(w, r, models.NewUpstreamError(models.CodeDatabase, "Failed to load account", err))
			return
		}
		if deleted {
			// Same answer as a wrong password so deleted accounts are not disclosed
			if err := h.provider.SignOut(ctx, session); err != nil {
				slog.Warn("Failed to revoke session of deleted account", "user_id", session.UserID, "error", err)
			}
			h.audit.Failure(ctx, session.UserID, models.AuditLogin, "account deleted")
			h.writeAPIError(w, r, models.NewAuthError(models.CodeInvalidCredentials, "Invalid credentials", nil))
			return
		}
	}

	session.CSRFToken, err = services.NewCSRFToken()
	if err != nil {
		h.writeAPIError(w, r, models.NewInternalError(err))
		return
	}

	h.cookies.WriteSession(w, session)
	h.audit.Success(ctx, session.UserID, models.AuditLogin, "")
	slog.Info("User logged in", "user_id", session.UserID)

	h.writeJSON(w, http.StatusOK, models.LoginData{
		UserID: session.UserID,
		Email:  session.Email,
	})
}

// Logout revokes the refresh token and clears the session cookies.
// Revocation is best-effort; the cookies are cleared regardless.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	ctx := r.Context()

	if session := middleware.GetSession(r); session != nil {
		if err := h.provider.SignOut(ctx, session); err != nil {
			slog.Warn("Session revocation failed", "user_id", session.UserID, "error", err)
		}
		h.audit.Success(ctx, session.UserID, models.AuditLogout, "")
		slog.Info("User logged out", "user_id", session.UserID)
	}

	h.cookies.Clear(w)
	h.writeJSON(w, http.StatusOK, models.MessageData{Message: "Logged out"})
}

// Me returns the current user's authentication status
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	noStore(w)

	user := middleware.GetUser(r)
	if user == nil {
		h.writeJSON(w, http.StatusOK, models.UserInfoData{Authenticated: false})
		return
	}

	h.writeJSON(w, http.StatusOK, models.UserInfoData{
		Authenticated: true,
		UserID:        user.ID,
		Email:         user.Email,
	})
}
