// ABOUTME: Test helpers for e2e tests
// ABOUTME: Boots the assembled app behind httptest and drives it with a cookie-jar client

package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/markalston/flashdeck/backend/config"
	"github.com/markalston/flashdeck/backend/models"
	"github.com/markalston/flashdeck/backend/server"
	"github.com/markalston/flashdeck/backend/services"
)

const (
	testEmail    = "alice@example.com"
	testPassword = "OldPass1!"
	testSecret   = "e2e-test-secret-that-is-long-enough!!"
)

// testConfig mirrors config.Load defaults with a cheap bcrypt cost and plain-HTTP cookies
func testConfig() *config.Config {
	return &config.Config{
		Port:                      "0",
		CookieSecure:              false,
		LoginPath:                 "/login",
		AuthProvider:              config.ProviderLocal,
		JWTSecret:                 testSecret,
		AccessTokenTTL:            time.Hour,
		RefreshTokenTTL:           24 * time.Hour,
		BcryptCost:                4,
		LocalUsers:                []string{testEmail + ":" + testPassword, "bob@example.com:BobPass1!"},
		RateLimitEnabled:          true,
		RateLimitAuth:             5,
		RateLimitDefault:          100,
		ChangePasswordMaxAttempts: 5,
		ChangePasswordWindow:      5 * time.Minute,
		ChangePasswordBlock:       15 * time.Minute,
		DeleteAccountMaxAttempts:  3,
		DeleteAccountWindow:       5 * time.Minute,
		DeleteAccountBlock:        30 * time.Minute,
		AttemptStore:              config.AttemptStoreMemory,
	}
}

type testApp struct {
	srv   *httptest.Server
	audit *services.MemoryAuditSink
}

// startApp builds the app from cfg (testConfig when nil) and serves it
func startApp(t *testing.T, cfg *config.Config) *testApp {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}

	audit := services.NewMemoryAuditSink()
	app, err := server.NewApp(context.Background(), cfg, audit)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	srv := httptest.NewServer(app.Handler)
	t.Cleanup(func() {
		srv.Close()
		app.Close()
	})
	return &testApp{srv: srv, audit: audit}
}

// browser is a client with its own cookie jar that never follows redirects
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func (a *testApp) newBrowser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &browser{
		t:    t,
		base: a.srv.URL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) cookie(name string) string {
	u, _ := url.Parse(b.base)
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (b *browser) setCookie(name, value string) {
	u, _ := url.Parse(b.base)
	b.client.Jar.SetCookies(u, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
}

// do sends a request, attaching the CSRF header from the jar when withCSRF is set
func (b *browser) do(method, path, body string, withCSRF bool) *http.Response {
	b.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, b.base+path, reader)
	if err != nil {
		b.t.Fatalf("NewRequest: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if withCSRF {
		req.Header.Set("X-CSRF-Token", b.cookie("csrf_token"))
	}
	resp, err := b.client.Do(req)
	if err != nil {
		b.t.Fatalf("%s %s: %v", method, path, err)
	}
	b.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (b *browser) login(email, password string) *http.Response {
	b.t.Helper()
	body, _ := json.Marshal(models.LoginRequest{Email: email, Password: password})
	return b.do(http.MethodPost, "/api/v1/auth/login", string(body), false)
}

// mustLogin signs in as the default test user
func (b *browser) mustLogin() models.LoginData {
	b.t.Helper()
	resp := b.login(testEmail, testPassword)
	if resp.StatusCode != http.StatusOK {
		b.t.Fatalf("login status = %d", resp.StatusCode)
	}
	var data models.LoginData
	decodeData(b.t, resp, &data)
	return data
}

func decodeData(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body models.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return body.Error.Code
}

func expectError(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("status = %d, want %d", resp.StatusCode, status)
	}
	if got := errorCode(t, resp); got != code {
		t.Errorf("error code = %q, want %q", got, code)
	}
}

// countEvents counts audit events with the given action and status
func countEvents(sink *services.MemoryAuditSink, action models.AuditAction, status models.AuditStatus) int {
	n := 0
	for _, e := range sink.Events() {
		if e.Action == action && e.Status == status {
			n++
		}
	}
	return n
}
