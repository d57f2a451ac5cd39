// ABOUTME: Assembles handlers and middleware into the HTTP handler tree
// ABOUTME: Applies per-route rate limits, session loading, CSRF, and route protection

package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/markalston/flashdeck/backend/handlers"
	"github.com/markalston/flashdeck/backend/middleware"
	"github.com/markalston/flashdeck/backend/services"
)

// Options configures the middleware stack
type Options struct {
	Sessions           *services.SessionManager
	LoginPath          string
	CORSAllowedOrigins []string
	AuthLimiter        *middleware.RateLimiter // login budget; nil disables
	DefaultLimiter     *middleware.RateLimiter // every other limited route; nil disables
	FrontendDir        string                  // static frontend, empty to serve the API only
	MismatchDelayMax   time.Duration           // random pause before an API SESSION_MISMATCH
}

type mw = func(http.HandlerFunc) http.HandlerFunc

// New builds the handler tree. Outermost first, each API route runs
// Recover, LogRequest, CORS, the auth rate limit, Session, the default rate
// limit, CSRF, and ProtectRoute for protected routes.
func New(h *handlers.Handler, opts Options) http.Handler {
	mux := http.NewServeMux()

	session := middleware.Session(middleware.SessionConfig{
		Manager:          opts.Sessions,
		Cookies:          h.Cookies(),
		LoginPath:        opts.LoginPath,
		LoginAPIPath:     handlers.LoginAPIPath,
		PublicPrefixes:   []string{"/api/v1/health", "/api/v1/openapi.yaml", "/assets/"},
		MismatchDelayMax: opts.MismatchDelayMax,
	})
	csrf := middleware.CSRF(handlers.LoginAPIPath)
	cors := middleware.CORSWithConfig(opts.CORSAllowedOrigins)

	for _, route := range h.Routes() {
		chain := []mw{middleware.Recover, middleware.LogRequest, cors}
		if route.RateLimit == handlers.RateLimitAuth {
			chain = append(chain, middleware.RateLimit(opts.AuthLimiter, middleware.ClientIP))
		}
		chain = append(chain, session)
		if route.RateLimit == handlers.RateLimitDefault {
			chain = append(chain, middleware.RateLimit(opts.DefaultLimiter, middleware.UserOrIP))
		}
		chain = append(chain, csrf)
		if route.Protected {
			chain = append(chain, middleware.ProtectRoute(opts.LoginPath))
		}
		mux.HandleFunc(route.Method+" "+route.Path, middleware.Chain(route.Handler, chain...))
	}

	// Preflight requests never reach method-specific routes
	mux.HandleFunc("OPTIONS /api/", middleware.Chain(func(w http.ResponseWriter, r *http.Request) {},
		middleware.Recover, cors))

	if opts.FrontendDir != "" {
		mux.HandleFunc("GET /", middleware.Chain(spaHandler(opts.FrontendDir),
			middleware.Recover, middleware.LogRequest, session))
	}

	return mux
}

// spaHandler serves files from dir and falls back to index.html so client
// side routes (including the login page) resolve.
func spaHandler(dir string) http.HandlerFunc {
	files := http.FileServer(http.Dir(dir))
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		name := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(name); err != nil || info.IsDir() {
			if !strings.HasPrefix(r.URL.Path, "/assets/") {
				http.ServeFile(w, r, filepath.Join(dir, "index.html"))
				return
			}
		}
		files.ServeHTTP(w, r)
	}
}
