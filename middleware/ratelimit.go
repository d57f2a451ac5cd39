// ABOUTME: Rate limiting middleware with fixed-window counters
// ABOUTME: Per-route request budgets keyed by client IP or signed-in user

package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/markalston/flashdeck/backend/models"
)

// sweepEvery is how many new windows are opened between full sweeps
const sweepEvery = 100

type window struct {
	used int
	ends time.Time
}

// RateLimiter gives each key a budget of requests per fixed window.
// The login route keys by client address; other routes by user.
type RateLimiter struct {
	mu      sync.Mutex
	budgets map[string]*window
	limit   int
	period  time.Duration
	opened  int
	now     func() time.Time
}

// NewRateLimiter allows limit requests per key in each period
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		budgets: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

// Allow spends one request from key's budget. When the budget is spent it
// returns false and the time left until the window closes.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.budgets[key]
	if ok && now.Before(w.ends) {
		if w.used >= rl.limit {
			return false, w.ends.Sub(now)
		}
		w.used++
		return true, 0
	}

	// No window yet, or the old one closed at or before now
	rl.budgets[key] = &window{used: 1, ends: now.Add(rl.period)}
	rl.opened++
	if rl.opened >= sweepEvery {
		rl.opened = 0
		rl.dropClosed(now)
	}
	return true, 0
}

// dropClosed forgets windows that have ended. Caller holds rl.mu.
func (rl *RateLimiter) dropClosed(now time.Time) {
	for key, w := range rl.budgets {
		if !now.Before(w.ends) {
			delete(rl.budgets, key)
		}
	}
}

// Len reports how many keys are being tracked
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.budgets)
}

// RemoteIP returns the caller's address. The leftmost X-Forwarded-For entry
// wins when it parses as an IP, which assumes a proxy in front that sets the
// header; otherwise RemoteAddr without its port.
func RemoteIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ClientIP keys a budget by caller address
func ClientIP(r *http.Request) string {
	return "ip:" + RemoteIP(r)
}

// UserOrIP keys a budget by the session user, or by address when anonymous.
// It must run after Session.
func UserOrIP(r *http.Request) string {
	if user := GetUser(r); user != nil && user.ID != "" {
		return "user:" + user.ID
	}
	return ClientIP(r)
}

// RateLimit rejects requests over the key's budget with 429 and Retry-After.
// A nil limiter disables it; an empty key lets the request through.
func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || keyFunc == nil {
				next(w, r)
				return
			}
			key := keyFunc(r)
			if key == "" {
				next(w, r)
				return
			}

			ok, wait := limiter.Allow(key)
			if ok {
				next(w, r)
				return
			}

			seconds := max(int(math.Ceil(wait.Seconds())), 1)
			slog.Warn("Request budget exhausted", "key", key, "path", sanitizePath(r.URL.Path), "retry_after", seconds)
			apiErr := models.NewRateLimitError(seconds)
			apiErr.Message = "Too many requests. Please try again later."
			writeAPIError(w, apiErr)
		}
	}
}
