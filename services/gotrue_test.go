// ABOUTME: Tests for the GoTrue identity adapter
// ABOUTME: Runs the adapter against an httptest mock of the auth server

package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/markalston/flashdeck/backend/models"
)

const gotrueSecret = "gotrue-test-secret-at-least-32-bytes-long"

func signGoTrueToken(t *testing.T, sub, email string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   exp.Unix(),
	}).SignedString([]byte(gotrueSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

// mockGoTrue is a minimal in-memory GoTrue server
type mockGoTrue struct {
	t        *testing.T
	mu       sync.Mutex
	password string
	refresh  map[string]bool
	logouts  []string
}

func newMockGoTrue(t *testing.T) (*mockGoTrue, *httptest.Server) {
	m := &mockGoTrue{t: t, password: "OldPass1!", refresh: map[string]bool{"rt-1": true}}
	srv := httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(srv.Close)
	return m, srv
}

func (m *mockGoTrue) issue(w http.ResponseWriter, rt string) {
	m.refresh[rt] = true
	exp := time.Now().Add(time.Hour)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token":  signGoTrueToken(m.t, "user-1", "alice@example.com", exp),
		"refresh_token": rt,
		"expires_in":    3600,
		"expires_at":    exp.Unix(),
		"user":          map[string]string{"id": "user-1", "email": "alice@example.com"},
	})
}

func (m *mockGoTrue) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.Header.Get("apikey") != "anon-key" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case r.URL.Path == "/token" && r.URL.Query().Get("grant_type") == "password":
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "alice@example.com" || body["password"] != m.password {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
			return
		}
		m.issue(w, "rt-"+time.Now().Format("150405.000000000"))

	case r.URL.Path == "/token" && r.URL.Query().Get("grant_type") == "refresh_token":
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if !m.refresh[body["refresh_token"]] {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid Refresh Token"}`))
			return
		}
		delete(m.refresh, body["refresh_token"])
		m.issue(w, body["refresh_token"]+"-next")

	case r.URL.Path == "/user" && r.Method == http.MethodGet:
		if !m.validBearer(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "user-1", "email": "alice@example.com"})

	case r.URL.Path == "/user" && r.Method == http.MethodPut:
		if !m.validBearer(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		m.password = body["password"]
		json.NewEncoder(w).Encode(map[string]string{"id": "user-1", "email": "alice@example.com"})

	case r.URL.Path == "/logout":
		m.logouts = append(m.logouts, r.URL.Query().Get("scope"))
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (m *mockGoTrue) validBearer(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if len(auth) < 8 {
		return false
	}
	_, err := jwt.Parse(auth[7:], func(*jwt.Token) (interface{}, error) { return []byte(gotrueSecret), nil })
	return err == nil
}

func TestGoTrueProvider_SignInWithPassword(t *testing.T) {
	_, srv := newMockGoTrue(t)
	p := NewGoTrueProvider(srv.URL+"/", "anon-key", "")

	s, err := p.SignInWithPassword(context.Background(), "alice@example.com", "OldPass1!")
	if err != nil {
		t.Fatalf("SignInWithPassword failed: %v", err)
	}
	if s.UserID != "user-1" || s.Email != "alice@example.com" {
		t.Errorf("session = %+v", s)
	}
	if !s.HasTokens() {
		t.Error("session should carry both tokens")
	}
	if time.Until(s.ExpiresAt) < 59*time.Minute {
		t.Errorf("ExpiresAt = %v", s.ExpiresAt)
	}

	_, err = p.SignInWithPassword(context.Background(), "alice@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestGoTrueProvider_ServerErrorIsNotCredentialError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewGoTrueProvider(srv.URL, "anon-key", "")
	_, err := p.SignInWithPassword(context.Background(), "alice@example.com", "OldPass1!")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want an upstream error", err)
	}
}

func TestGoTrueProvider_VerifyAccessToken(t *testing.T) {
	_, srv := newMockGoTrue(t)
	valid := signGoTrueToken(t, "user-1", "alice@example.com", time.Now().Add(time.Hour))
	expired := signGoTrueToken(t, "user-1", "alice@example.com", time.Now().Add(-time.Minute))

	tests := []struct {
		name    string
		secret  string
		token   string
		wantErr error
	}{
		{"remote valid", "", valid, nil},
		{"remote expired", "", expired, ErrSessionExpired},
		{"remote garbage", "", "garbage", ErrInvalidToken},
		{"local valid", gotrueSecret, valid, nil},
		{"local expired", gotrueSecret, expired, ErrSessionExpired},
		{"local wrong secret", "another-secret-at-least-32-bytes-long!!", valid, ErrInvalidToken},
		{"empty", gotrueSecret, "", ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewGoTrueProvider(srv.URL, "anon-key", tt.secret)
			sub, err := p.VerifyAccessToken(context.Background(), tt.token)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("VerifyAccessToken failed: %v", err)
			}
			if sub != "user-1" {
				t.Errorf("subject = %q, want user-1", sub)
			}
		})
	}
}

func TestGoTrueProvider_VerifySession_RefreshesExpired(t *testing.T) {
	_, srv := newMockGoTrue(t)
	p := NewGoTrueProvider(srv.URL, "anon-key", gotrueSecret)
	expired := signGoTrueToken(t, "user-1", "alice@example.com", time.Now().Add(-time.Minute))

	s, err := p.VerifySession(context.Background(), expired, "rt-1")
	if err != nil {
		t.Fatalf("VerifySession failed: %v", err)
	}
	if s.RefreshToken != "rt-1-next" {
		t.Errorf("RefreshToken = %q, want rt-1-next", s.RefreshToken)
	}

	// rt-1 has been consumed
	if _, err := p.VerifySession(context.Background(), expired, "rt-1"); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("err = %v, want ErrSessionExpired", err)
	}
}

func TestGoTrueProvider_VerifySession_Valid(t *testing.T) {
	_, srv := newMockGoTrue(t)
	p := NewGoTrueProvider(srv.URL, "anon-key", "")
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := signGoTrueToken(t, "user-1", "alice@example.com", exp)

	s, err := p.VerifySession(context.Background(), tok, "rt-1")
	if err != nil {
		t.Fatalf("VerifySession failed: %v", err)
	}
	if s.UserID != "user-1" || s.AccessToken != tok || s.RefreshToken != "rt-1" {
		t.Errorf("session = %+v", s)
	}
	if !s.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", s.ExpiresAt, exp)
	}
}

func TestGoTrueProvider_UpdatePasswordAndSignOut(t *testing.T) {
	m, srv := newMockGoTrue(t)
	p := NewGoTrueProvider(srv.URL, "anon-key", "")
	ctx := context.Background()

	s, err := p.SignInWithPassword(ctx, "alice@example.com", "OldPass1!")
	if err != nil {
		t.Fatalf("SignInWithPassword failed: %v", err)
	}
	if err := p.UpdatePassword(ctx, s.AccessToken, "NewPass2@"); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}
	if _, err := p.SignInWithPassword(ctx, "alice@example.com", "NewPass2@"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
	if err := p.UpdatePassword(ctx, "garbage", "x"); err == nil {
		t.Error("UpdatePassword with bad token should fail")
	}

	if err := p.SignOut(ctx, s); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if err := p.SignOut(ctx, &models.Session{}); err != nil {
		t.Errorf("SignOut without tokens should be a no-op: %v", err)
	}
	if len(m.logouts) != 1 || m.logouts[0] != "local" {
		t.Errorf("logouts = %v, want one local-scope logout", m.logouts)
	}
}
