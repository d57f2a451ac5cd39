// ABOUTME: Identity provider contract and request-scoped identity client
// ABOUTME: Providers verify, refresh, issue, and revoke session token pairs

package services

import (
	"context"
	"errors"
	"sync"

	"github.com/markalston/flashdeck/backend/models"
)

var (
	// ErrInvalidCredentials is returned when an email/password pair is rejected.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidToken is returned when an access or refresh token is malformed, revoked, or forged.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSessionExpired is returned when a token pair can no longer be used or refreshed.
	ErrSessionExpired = errors.New("session expired")
	// ErrNoActiveSession is returned by IdentityClient operations that need a session.
	ErrNoActiveSession = errors.New("no active session")
)

// IdentityProvider is the external identity service. Implementations own
// credential storage, hashing, and token issuance.
type IdentityProvider interface {
	// VerifySession establishes a session from a token pair, refreshing it
	// transparently if the access token has already expired. Browser cookies
	// for both tokens expire with the access token, so over HTTP that path is
	// only reached by clients that keep cookies past their expiry (the CLI
	// session file does); browsers are refreshed ahead of expiry by
	// SessionManager instead.
	VerifySession(ctx context.Context, accessToken, refreshToken string) (*models.Session, error)
	// RefreshSession exchanges the session's refresh token for a new pair.
	RefreshSession(ctx context.Context, current *models.Session) (*models.Session, error)
	// SignInWithPassword issues a new session for valid credentials.
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	// VerifyAccessToken validates an access token and returns its subject.
	VerifyAccessToken(ctx context.Context, token string) (string, error)
	// UpdatePassword changes the password of the user owning accessToken.
	UpdatePassword(ctx context.Context, accessToken, newPassword string) error
	// SignOut revokes the session's refresh token.
	SignOut(ctx context.Context, session *models.Session) error
}

// IdentityClient is a per-request handle on the provider holding the active
// session. SignInWithPassword replaces the active session, mirroring the
// provider's own side effect.
type IdentityClient struct {
	provider IdentityProvider

	mu      sync.Mutex
	session *models.Session
}

// NewIdentityClient returns a client whose active session is session (may be nil)
func NewIdentityClient(provider IdentityProvider, session *models.Session) *IdentityClient {
	c := &IdentityClient{provider: provider}
	c.SetSession(session)
	return c
}

// Provider returns the underlying identity provider
func (c *IdentityClient) Provider() IdentityProvider {
	return c.provider
}

// Session returns a copy of the active session, or nil
func (c *IdentityClient) Session() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

// SetSession replaces the active session
func (c *IdentityClient) SetSession(s *models.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == nil {
		c.session = nil
		return
	}
	cp := *s
	c.session = &cp
}

// SignInWithPassword authenticates and makes the new session active
func (c *IdentityClient) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	s, err := c.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.SetSession(s)
	return s, nil
}

// UpdatePassword changes the password of the active session's user
func (c *IdentityClient) UpdatePassword(ctx context.Context, newPassword string) error {
	s := c.Session()
	if s == nil || s.AccessToken == "" {
		return ErrNoActiveSession
	}
	return c.provider.UpdatePassword(ctx, s.AccessToken, newPassword)
}

// VerifyAccessToken validates token against the provider
func (c *IdentityClient) VerifyAccessToken(ctx context.Context, token string) (string, error) {
	return c.provider.VerifyAccessToken(ctx, token)
}
