// ABOUTME: Declarative route table for API endpoints
// ABOUTME: Defines all routes with their HTTP methods, handlers, and protection tiers

package handlers

import "net/http"

// Rate limit tiers applied per route
const (
	RateLimitAuth    = "auth"    // login budget keyed by client IP
	RateLimitDefault = "default" // general budget keyed by user or IP
	RateLimitNone    = "none"    // unlimited (health, docs)
)

// Route defines an API endpoint with its HTTP method and handler.
type Route struct {
	Method    string           // HTTP method (GET, POST, etc.)
	Path      string           // URL path (e.g., "/api/v1/health")
	Handler   http.HandlerFunc // Handler function
	Protected bool             // requires an established session
	RateLimit string           // one of the RateLimit* tiers
}

// LoginAPIPath is the login endpoint. It is exempt from session loading and CSRF.
const LoginAPIPath = "/api/v1/auth/login"

// Routes returns all API routes for registration.
func (h *Handler) Routes() []Route {
	return []Route{
		// Health & Documentation
		{Method: http.MethodGet, Path: "/api/v1/health", Handler: h.Health, RateLimit: RateLimitNone},
		{Method: http.MethodGet, Path: "/api/v1/openapi.yaml", Handler: h.OpenAPISpec, RateLimit: RateLimitNone},

		// Auth
		{Method: http.MethodPost, Path: LoginAPIPath, Handler: h.Login, RateLimit: RateLimitAuth},
		{Method: http.MethodPost, Path: "/api/v1/auth/logout", Handler: h.Logout, Protected: true, RateLimit: RateLimitDefault},
		{Method: http.MethodGet, Path: "/api/v1/auth/me", Handler: h.Me, RateLimit: RateLimitDefault},

		// Account
		{Method: http.MethodPost, Path: "/api/v1/account/change-password", Handler: h.ChangePassword, Protected: true, RateLimit: RateLimitDefault},
		{Method: http.MethodPost, Path: "/api/v1/account/delete", Handler: h.DeleteAccount, Protected: true, RateLimit: RateLimitDefault},
	}
}
