// ABOUTME: Session bootstrap middleware for cookie-authenticated requests
// ABOUTME: Loads and refreshes the session, syncs cookies, and stores the identity in the request context

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/markalston/flashdeck/backend/models"
	"github.com/markalston/flashdeck/backend/services"
)

// SessionConfig holds session middleware settings
type SessionConfig struct {
	Manager          *services.SessionManager
	Cookies          CookieJar
	LoginPath        string        // page anonymous browsers are sent to
	LoginAPIPath     string        // login endpoint, never session-checked
	PublicPrefixes   []string      // paths served without a session check
	MismatchDelayMax time.Duration // bounds the random pause before an API user mismatch is answered
}

type contextKey string

const sessionStateKey contextKey = "sessionState"

// sessionState is what downstream handlers see for an authenticated request
type sessionState struct {
	client  *services.IdentityClient
	session *models.Session
	user    models.User
}

// Session returns middleware that establishes the request's session from cookies.
//   - Invalid tokens or a user mismatch clear all session cookies
//   - Page requests without a session are redirected to the login page
//   - API requests without a session continue anonymously, except a user
//     mismatch which is rejected with 403
func Session(cfg SessionConfig) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx := services.WithClientInfo(r.Context(), RemoteIP(r), r.UserAgent())
			r = r.WithContext(ctx)

			if cfg.skip(r.URL.Path) {
				next(w, r)
				return
			}

			cookies := cfg.Cookies.Read(r)
			result := cfg.Manager.Load(ctx, cookies)
			api := isAPIPath(r.URL.Path)

			switch result.Outcome {
			case services.LoadInvalid:
				slog.Debug("Session rejected, clearing cookies", "path", sanitizePath(r.URL.Path))
				cfg.Cookies.Clear(w)
				if !api {
					redirectToLogin(w, r, cfg.LoginPath)
					return
				}
				next(w, r)
				return

			case services.LoadMismatch:
				cfg.Cookies.Clear(w)
				if !api {
					redirectToLogin(w, r, cfg.LoginPath)
					return
				}
				services.MismatchDelay(ctx, cfg.MismatchDelayMax)
				writeAPIError(w, models.NewForbiddenError(models.CodeSessionMismatch, "Session validation failed"))
				return

			case services.LoadAnonymous:
				if cookies.HasAnyToken() {
					cfg.Cookies.Clear(w)
				}
				if !api {
					redirectToLogin(w, r, cfg.LoginPath)
					return
				}
				next(w, r)
				return
			}

			s := result.Session
			if result.Outcome == services.LoadRefreshed {
				slog.Debug("Session refreshed", "user_id", s.UserID)
				cfg.Cookies.WriteSession(w, s)
			} else {
				if result.BackfillUserID {
					cfg.Cookies.WriteUserID(w, s)
				}
				if result.BackfillCSRF {
					cfg.Cookies.WriteCSRF(w, s)
				}
			}

			client := services.NewIdentityClient(cfg.Manager.Provider(), s)
			next(w, WithSession(r, client, s))
		}
	}
}

func (cfg SessionConfig) skip(path string) bool {
	if path == cfg.LoginPath || path == cfg.LoginAPIPath {
		return true
	}
	for _, prefix := range cfg.PublicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// WithSession returns a copy of r carrying the identity client and session
func WithSession(r *http.Request, client *services.IdentityClient, s *models.Session) *http.Request {
	state := &sessionState{client: client, session: s, user: s.User()}
	return r.WithContext(context.WithValue(r.Context(), sessionStateKey, state))
}

// GetSession returns the request's session, nil when anonymous
func GetSession(r *http.Request) *models.Session {
	if state, ok := r.Context().Value(sessionStateKey).(*sessionState); ok {
		return state.session
	}
	return nil
}

// GetIdentityClient returns the request-scoped identity client, nil when anonymous
func GetIdentityClient(r *http.Request) *services.IdentityClient {
	if state, ok := r.Context().Value(sessionStateKey).(*sessionState); ok {
		return state.client
	}
	return nil
}

// GetUser returns the authenticated user, nil when anonymous
func GetUser(r *http.Request) *models.User {
	if state, ok := r.Context().Value(sessionStateKey).(*sessionState); ok {
		u := state.user
		return &u
	}
	return nil
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

func redirectToLogin(w http.ResponseWriter, r *http.Request, loginPath string) {
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}
