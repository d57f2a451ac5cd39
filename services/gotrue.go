// ABOUTME: HTTP adapter for a GoTrue-compatible auth server
// ABOUTME: Password grant, refresh grant, user lookup/update, and logout

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/markalston/flashdeck/backend/models"
)

// GoTrueProvider implements IdentityProvider against a GoTrue server
type GoTrueProvider struct {
	baseURL   string
	apiKey    string
	jwtSecret []byte
	client    *http.Client
	parser    *jwt.Parser
}

// NewGoTrueProvider creates a provider. When jwtSecret is non-empty access
// tokens are verified locally with HS256, otherwise through GET /user.
func NewGoTrueProvider(baseURL, apiKey, jwtSecret string) *GoTrueProvider {
	p := &GoTrueProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
	if jwtSecret != "" {
		p.jwtSecret = []byte(jwtSecret)
	}
	return p
}

type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type gotrueTokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int64      `json:"expires_in"`
	ExpiresAt    int64      `json:"expires_at"`
	User         gotrueUser `json:"user"`
}

func (r *gotrueTokenResponse) session() *models.Session {
	expiresAt := time.Unix(r.ExpiresAt, 0)
	if r.ExpiresAt == 0 {
		expiresAt = time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return &models.Session{
		UserID:       r.User.ID,
		Email:        r.User.Email,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    expiresAt,
	}
}

// SignInWithPassword uses the password grant
func (p *GoTrueProvider) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	var resp gotrueTokenResponse
	err := p.do(ctx, http.MethodPost, "/token?grant_type=password", "", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		if isClientError(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return resp.session(), nil
}

// RefreshSession uses the refresh_token grant
func (p *GoTrueProvider) RefreshSession(ctx context.Context, current *models.Session) (*models.Session, error) {
	if current == nil || current.RefreshToken == "" {
		return nil, ErrSessionExpired
	}
	var resp gotrueTokenResponse
	err := p.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", map[string]string{
		"refresh_token": current.RefreshToken,
	}, &resp)
	if err != nil {
		if isClientError(err) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	return resp.session(), nil
}

// VerifySession validates the access token and refreshes when it has expired
func (p *GoTrueProvider) VerifySession(ctx context.Context, accessToken, refreshToken string) (*models.Session, error) {
	user, err := p.user(ctx, accessToken)
	if errors.Is(err, ErrSessionExpired) {
		return p.RefreshSession(ctx, &models.Session{RefreshToken: refreshToken})
	}
	if err != nil {
		return nil, err
	}

	expiresAt, err := tokenExpiry(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return &models.Session{
		UserID:       user.ID,
		Email:        user.Email,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

// VerifyAccessToken returns the token subject
func (p *GoTrueProvider) VerifyAccessToken(ctx context.Context, token string) (string, error) {
	user, err := p.user(ctx, token)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// UpdatePassword calls PUT /user as the token's owner
func (p *GoTrueProvider) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	err := p.do(ctx, http.MethodPut, "/user", accessToken, map[string]string{"password": newPassword}, nil)
	if err != nil && isClientError(err) {
		return fmt.Errorf("password update rejected: %w", err)
	}
	return err
}

// SignOut revokes the session's refresh token only, leaving other devices signed in
func (p *GoTrueProvider) SignOut(ctx context.Context, session *models.Session) error {
	if session == nil || session.AccessToken == "" {
		return nil
	}
	return p.do(ctx, http.MethodPost, "/logout?scope=local", session.AccessToken, nil, nil)
}

// user resolves the token owner, locally when a secret is configured
func (p *GoTrueProvider) user(ctx context.Context, token string) (*gotrueUser, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	if p.jwtSecret != nil {
		claims := jwt.MapClaims{}
		_, err := p.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			return p.jwtSecret, nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return nil, ErrSessionExpired
			}
			return nil, ErrInvalidToken
		}
		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			return nil, ErrInvalidToken
		}
		email, _ := claims["email"].(string)
		return &gotrueUser{ID: sub, Email: email}, nil
	}

	if exp, err := tokenExpiry(token); err == nil && !exp.After(time.Now()) {
		return nil, ErrSessionExpired
	}
	var user gotrueUser
	if err := p.do(ctx, http.MethodGet, "/user", token, nil, &user); err != nil {
		if isClientError(err) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if user.ID == "" {
		return nil, ErrInvalidToken
	}
	return &user, nil
}

// gotrueError is a non-2xx response from the auth server
type gotrueError struct {
	StatusCode int
	Message    string
}

func (e *gotrueError) Error() string {
	return fmt.Sprintf("auth server returned %d: %s", e.StatusCode, e.Message)
}

func isClientError(err error) bool {
	var ge *gotrueError
	return errors.As(err, &ge) && ge.StatusCode >= 400 && ge.StatusCode < 500
}

func (p *GoTrueProvider) do(ctx context.Context, method, path, bearer string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", p.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("auth server request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &gotrueError{StatusCode: resp.StatusCode, Message: sanitizeForLog(errorMessage(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse auth server response: %w", err)
	}
	return nil
}

// errorMessage extracts a message from GoTrue's error bodies
func errorMessage(body []byte) string {
	var e struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal(body, &e) == nil {
		for _, m := range []string{e.ErrorDescription, e.Msg, e.Message} {
			if m != "" {
				return m
			}
		}
	}
	return strings.TrimSpace(string(body))
}

// tokenExpiry reads exp without verifying the signature
func tokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("token has no expiry")
	}
	return exp.Time, nil
}
