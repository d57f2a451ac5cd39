// ABOUTME: Session and login models for cookie-based authentication
// ABOUTME: Defines the session token pair, cookie values, and auth API contracts

package models

import "time"

// LoginRequest represents credentials for authentication
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the identity attached to an authenticated session
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// LoginData is returned inside the data envelope after a successful login
type LoginData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// UserInfoData represents the current user's authentication state
type UserInfoData struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
}

// Session is one authenticated browser-to-server continuity window.
// AccessToken and RefreshToken are always set or cleared together.
type Session struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"-"` // Never expose to client
	RefreshToken string    `json:"-"` // Never expose to client
	ExpiresAt    time.Time `json:"expires_at"`
	CSRFToken    string    `json:"-"`
}

// HasTokens reports whether both halves of the token pair are present
func (s *Session) HasTokens() bool {
	return s != nil && s.AccessToken != "" && s.RefreshToken != ""
}

// User returns the identity carried by the session
func (s *Session) User() User {
	return User{ID: s.UserID, Email: s.Email}
}

// ExpiresWithin reports whether the session expires within d of now
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	return s.ExpiresAt.Sub(now) <= d
}

// SessionCookies holds the raw values of the four session cookies on a request.
// Empty strings mean the cookie was absent.
type SessionCookies struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	CSRFToken    string
}

// HasTokenPair reports whether both token cookies are present
func (c SessionCookies) HasTokenPair() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// HasAnyToken reports whether at least one token cookie is present
func (c SessionCookies) HasAnyToken() bool {
	return c.AccessToken != "" || c.RefreshToken != ""
}
