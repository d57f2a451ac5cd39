// ABOUTME: Request-scoped session loading and proactive refresh
// ABOUTME: Verifies cookie tokens, cross-checks identity, and rotates CSRF tokens on refresh

package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/markalston/flashdeck/backend/models"
)

// RefreshThreshold is how close to expiry a session is refreshed
const RefreshThreshold = 60 * time.Second

// LoadOutcome classifies the result of loading a session from cookies
type LoadOutcome int

const (
	// LoadAnonymous means no token pair was presented
	LoadAnonymous LoadOutcome = iota
	// LoadAuthenticated means the presented tokens are valid and unchanged
	LoadAuthenticated
	// LoadRefreshed means the provider issued a new token pair
	LoadRefreshed
	// LoadInvalid means the presented tokens were rejected
	LoadInvalid
	// LoadMismatch means the user_id cookie or a refresh disagreed with the session
	LoadMismatch
)

func (o LoadOutcome) String() string {
	switch o {
	case LoadAnonymous:
		return "anonymous"
	case LoadAuthenticated:
		return "authenticated"
	case LoadRefreshed:
		return "refreshed"
	case LoadInvalid:
		return "invalid"
	case LoadMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// LoadResult tells the caller which cookies to write or clear.
// Session is set for LoadAuthenticated and LoadRefreshed.
type LoadResult struct {
	Outcome        LoadOutcome
	Session        *models.Session
	BackfillUserID bool // user_id cookie was absent
	BackfillCSRF   bool // csrf_token cookie was absent and a token was generated
}

// SessionManager establishes sessions from cookie values
type SessionManager struct {
	provider IdentityProvider
	audit    *AuditLog
	group    singleflight.Group
	now      func() time.Time
}

func NewSessionManager(provider IdentityProvider, audit *AuditLog) *SessionManager {
	return &SessionManager{provider: provider, audit: audit, now: time.Now}
}

// Provider returns the identity provider sessions are verified against
func (m *SessionManager) Provider() IdentityProvider {
	return m.provider
}

// Load verifies the cookie token pair, refreshing near expiry. Provider
// failures on verification yield LoadInvalid, never a stale session.
func (m *SessionManager) Load(ctx context.Context, c models.SessionCookies) LoadResult {
	if !c.HasTokenPair() {
		return LoadResult{Outcome: LoadAnonymous}
	}

	session, err := m.provider.VerifySession(ctx, c.AccessToken, c.RefreshToken)
	if err != nil || session == nil || session.UserID == "" {
		slog.Debug("Session verification failed", "error", err)
		m.audit.Failure(ctx, c.UserID, models.AuditTokenVerificationFailed, "session tokens rejected")
		return LoadResult{Outcome: LoadInvalid}
	}

	if c.UserID != "" && c.UserID != session.UserID {
		slog.Warn("User cookie does not match session", "session_user_id", session.UserID)
		m.audit.Failure(ctx, session.UserID, models.AuditSessionMismatch, "user_id cookie does not match session")
		return LoadResult{Outcome: LoadMismatch}
	}

	result := LoadResult{
		Outcome:        LoadAuthenticated,
		BackfillUserID: c.UserID == "",
	}
	// VerifySession refreshes transparently when the access token has already expired
	refreshed := session.AccessToken != c.AccessToken || session.RefreshToken != c.RefreshToken

	if !refreshed && session.ExpiresWithin(m.now(), RefreshThreshold) {
		next, err := m.refresh(ctx, session)
		switch {
		case err != nil:
			// Keep the current session; the next request retries
			slog.Warn("Session refresh failed", "user_id", session.UserID, "error", err)
			m.audit.Failure(ctx, session.UserID, models.AuditSessionRefresh, "refresh failed")
		case next.UserID != session.UserID:
			slog.Error("Refreshed session belongs to a different user",
				"session_user_id", session.UserID, "refreshed_user_id", next.UserID)
			m.audit.Failure(ctx, session.UserID, models.AuditSessionMismatch, "refresh returned a different user")
			return LoadResult{Outcome: LoadMismatch}
		default:
			m.audit.Success(ctx, session.UserID, models.AuditSessionRefresh, "")
			session = next
			refreshed = true
		}
	}

	if refreshed {
		result.Outcome = LoadRefreshed
		session.CSRFToken, err = NewCSRFToken()
	} else if c.CSRFToken != "" {
		session.CSRFToken = c.CSRFToken
	} else {
		session.CSRFToken, err = NewCSRFToken()
		result.BackfillCSRF = true
	}
	if err != nil {
		slog.Error("Failed to generate CSRF token", "error", err)
		return LoadResult{Outcome: LoadInvalid}
	}

	result.Session = session
	return result
}

// refresh coalesces concurrent refreshes of the same refresh token into one
// provider call. Each caller gets its own copy of the result.
func (m *SessionManager) refresh(ctx context.Context, current *models.Session) (*models.Session, error) {
	v, err, _ := m.group.Do(current.RefreshToken, func() (interface{}, error) {
		return m.provider.RefreshSession(context.WithoutCancel(ctx), current)
	})
	if err != nil {
		return nil, err
	}
	next := *(v.(*models.Session))
	return &next, nil
}

// NewCSRFToken returns 32 random bytes as padded base64url (44 characters)
func NewCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
