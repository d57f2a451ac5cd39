// ABOUTME: HTTP client for the Flashdeck account API
// ABOUTME: Carries the session cookies and CSRF header the backend expects from a browser

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client is the API client for the Flashdeck backend
type Client struct {
	baseURL     string
	httpClient  *http.Client
	sessionPath string // empty keeps cookies in memory only
	session     *SessionFile
}

// New creates a client whose cookies live only as long as the value
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		session: &SessionFile{Cookies: map[string]string{}},
	}
}

// NewWithSession creates a client that loads and saves cookies at path.
// Cookies saved for a different backend are ignored.
func NewWithSession(baseURL, path string) (*Client, error) {
	c := New(baseURL)
	s, err := loadSession(path)
	if err != nil {
		return nil, err
	}
	if s.BaseURL != "" && s.BaseURL != c.baseURL {
		s = &SessionFile{Cookies: map[string]string{}}
	}
	c.sessionPath = path
	c.session = s
	return c, nil
}

// HasSession reports whether the client holds a token pair
func (c *Client) HasSession() bool {
	return c.session.Cookies[accessTokenCookie] != "" && c.session.Cookies[refreshTokenCookie] != ""
}

// UserID returns the user_id cookie value
func (c *Client) UserID() string {
	return c.session.Cookies[userIDCookie]
}

// APIError is a non-2xx response in the backend's error envelope
type APIError struct {
	Status     int
	Code       string
	Message    string
	Fields     []FieldError
	RetryAfter int
}

// FieldError is one entry of a validation error's details
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(", retry in %ds", e.RetryAfter)
	}
	return msg
}

// IsAPIError reports whether err came back from the backend rather than the transport
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// HealthResponse represents the /api/v1/health payload
type HealthResponse struct {
	Status       string `json:"status"`
	AuthProvider string `json:"auth_provider"`
	AttemptStore string `json:"attempt_store"`
	Persistence  string `json:"persistence"`
}

// LoginResponse is returned after signing in
type LoginResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// UserInfo is the /api/v1/auth/me payload
type UserInfo struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
}

type messageData struct {
	Message string `json:"message"`
}

// Health calls GET /api/v1/health
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Login calls POST /api/v1/auth/login and stores the returned cookies
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body := map[string]string{"email": email, "password": password}
	var login LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", body, &login); err != nil {
		return nil, err
	}
	return &login, nil
}

// Me calls GET /api/v1/auth/me
func (c *Client) Me(ctx context.Context) (*UserInfo, error) {
	var info UserInfo
	if err := c.do(ctx, http.MethodGet, "/api/v1/auth/me", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Logout calls POST /api/v1/auth/logout. Local cookies are dropped even
// when the backend call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil)
	if err != nil && IsAPIError(err) {
		c.session.Cookies = map[string]string{}
		if saveErr := c.persist(); saveErr != nil {
			return saveErr
		}
	}
	return err
}

// ChangePassword calls POST /api/v1/account/change-password
func (c *Client) ChangePassword(ctx context.Context, current, next string) (string, error) {
	body := map[string]string{"currentPassword": current, "newPassword": next}
	var msg messageData
	if err := c.do(ctx, http.MethodPost, "/api/v1/account/change-password", body, &msg); err != nil {
		return "", err
	}
	return msg.Message, nil
}

// DeleteAccount calls POST /api/v1/account/delete
func (c *Client) DeleteAccount(ctx context.Context, password string) (string, error) {
	body := map[string]string{"password": password}
	var msg messageData
	if err := c.do(ctx, http.MethodPost, "/api/v1/account/delete", body, &msg); err != nil {
		return "", err
	}
	return msg.Message, nil
}

// do sends one request with the stored cookies, records any cookie changes,
// and decodes the data envelope into out
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range c.session.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	if method != http.MethodGet {
		if token := c.session.Cookies[csrfCookie]; token != "" {
			req.Header.Set(csrfHeader, token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.handleRequestError(ctx, err)
	}
	defer resp.Body.Close()

	if err := c.absorbCookies(resp); err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.handleErrorResponse(resp)
	}
	if out == nil {
		return nil
	}

	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("invalid response from backend: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("invalid response from backend: %w", err)
	}
	return nil
}

// absorbCookies applies Set-Cookie headers to the stored session and saves it
func (c *Client) absorbCookies(resp *http.Response) error {
	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return nil
	}
	for _, ck := range cookies {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.session.Cookies, ck.Name)
			continue
		}
		c.session.Cookies[ck.Name] = ck.Value
		if ck.Name == accessTokenCookie && !ck.Expires.IsZero() {
			c.session.ExpiresAt = ck.Expires.UTC()
		}
	}
	if len(c.session.Cookies) == 0 {
		c.session.ExpiresAt = time.Time{}
	}
	return c.persist()
}

func (c *Client) persist() error {
	if c.sessionPath == "" {
		return nil
	}
	c.session.BaseURL = c.baseURL
	return saveSession(c.sessionPath, c.session)
}

// handleRequestError converts context errors to user-friendly messages
func (c *Client) handleRequestError(ctx context.Context, err error) error {
	if ctx.Err() == context.Canceled {
		return fmt.Errorf("request canceled")
	}
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("request timed out")
	}
	return fmt.Errorf("cannot connect to backend at %s: %w", c.baseURL, err)
}

// handleErrorResponse parses API error responses
func (c *Client) handleErrorResponse(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	if v := resp.Header.Get("Retry-After"); v != "" {
		apiErr.RetryAfter, _ = strconv.Atoi(v)
	}

	var body struct {
		Error struct {
			Code    string          `json:"code"`
			Message string          `json:"message"`
			Details json.RawMessage `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error.Code == "" {
		apiErr.Message = fmt.Sprintf("backend returned status %d", resp.StatusCode)
		return apiErr
	}
	apiErr.Code = body.Error.Code
	apiErr.Message = body.Error.Message
	if len(body.Error.Details) > 0 {
		// Details are only field lists for validation errors
		_ = json.Unmarshal(body.Error.Details, &apiErr.Fields)
	}
	return apiErr
}
