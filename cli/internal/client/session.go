// ABOUTME: On-disk store for the session cookies the CLI holds between runs
// ABOUTME: Saves the cookie values as JSON with owner-only permissions

package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Cookie names set by the backend
const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
	userIDCookie       = "user_id"
	csrfCookie         = "csrf_token"
	csrfHeader         = "X-CSRF-Token"
)

// SessionFile is the persisted form of a session
type SessionFile struct {
	BaseURL   string            `json:"base_url"`
	Cookies   map[string]string `json:"cookies"`
	ExpiresAt time.Time         `json:"expires_at,omitempty"`
	SavedAt   time.Time         `json:"saved_at"`
}

// DefaultSessionPath returns the per-user session file location
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(dir, "flashdeck", "session.json"), nil
}

// loadSession reads path. A missing file is an empty session.
func loadSession(path string) (*SessionFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &SessionFile{Cookies: map[string]string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var s SessionFile
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session file %s: %w", path, err)
	}
	if s.Cookies == nil {
		s.Cookies = map[string]string{}
	}
	return &s, nil
}

// saveSession writes s to path, removing the file when no cookies remain
func saveSession(path string, s *SessionFile) error {
	if len(s.Cookies) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove session file: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	s.SavedAt = time.Now().UTC()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
