// ABOUTME: Reads, writes, and clears the four session cookies
// ABOUTME: Token and user cookies are HttpOnly; the CSRF cookie is readable by scripts

package middleware

import (
	"net/http"
	"time"

	"github.com/markalston/flashdeck/backend/models"
)

// Cookie and header names shared with the frontend
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
	UserIDCookie       = "user_id"
	CSRFCookie         = "csrf_token"
	CSRFHeader         = "X-CSRF-Token"
)

// CookieJar applies the cookie attributes for session cookies
type CookieJar struct {
	Secure bool
}

// Read returns the raw session cookie values, empty when absent
func (j CookieJar) Read(r *http.Request) models.SessionCookies {
	return models.SessionCookies{
		AccessToken:  cookieValue(r, AccessTokenCookie),
		RefreshToken: cookieValue(r, RefreshTokenCookie),
		UserID:       cookieValue(r, UserIDCookie),
		CSRFToken:    cookieValue(r, CSRFCookie),
	}
}

// WriteSession sets all four cookies from s, expiring with the session
func (j CookieJar) WriteSession(w http.ResponseWriter, s *models.Session) {
	j.set(w, AccessTokenCookie, s.AccessToken, s.ExpiresAt, true)
	j.set(w, RefreshTokenCookie, s.RefreshToken, s.ExpiresAt, true)
	j.WriteUserID(w, s)
	j.WriteCSRF(w, s)
}

// WriteUserID sets the user_id cookie
func (j CookieJar) WriteUserID(w http.ResponseWriter, s *models.Session) {
	j.set(w, UserIDCookie, s.UserID, s.ExpiresAt, true)
}

// WriteCSRF sets the csrf_token cookie
func (j CookieJar) WriteCSRF(w http.ResponseWriter, s *models.Session) {
	j.set(w, CSRFCookie, s.CSRFToken, s.ExpiresAt, false)
}

// Clear expires all four cookies
func (j CookieJar) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie, UserIDCookie} {
		j.expire(w, name, true)
	}
	j.expire(w, CSRFCookie, false)
}

func (j CookieJar) set(w http.ResponseWriter, name, value string, expires time.Time, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: httpOnly,
		Secure:   j.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (j CookieJar) expire(w http.ResponseWriter, name string, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: httpOnly,
		Secure:   j.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
