// ABOUTME: Configuration loader for backend service
// ABOUTME: Loads settings from .env and environment variables with defaults

package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Identity provider kinds
const (
	ProviderLocal  = "local"
	ProviderGoTrue = "gotrue"
)

// Attempt store kinds
const (
	AttemptStoreMemory = "memory"
	AttemptStoreRedis  = "redis"
)

type Config struct {
	// Server
	Port               string
	CORSAllowedOrigins []string // allowed CORS origins (empty = block all cross-origin)
	CookieSecure       bool     // Set Secure flag on session cookies (default: true)
	LoginPath          string   // page unauthenticated browsers are redirected to
	FrontendDir        string   // optional static frontend served behind the session middleware

	// Identity provider
	AuthProvider    string // local or gotrue (default: local)
	GoTrueURL       string
	GoTrueAPIKey    string
	JWTSecret       string        // HS256 secret for access tokens
	AccessTokenTTL  time.Duration // local provider only
	RefreshTokenTTL time.Duration // local provider only
	BcryptCost      int           // local provider only
	LocalUsers      []string      // email:password pairs seeded into the local provider

	// Request rate limiting
	RateLimitEnabled bool // Enable rate limiting (default: true)
	RateLimitAuth    int  // Requests per minute for the login endpoint (default: 5)
	RateLimitDefault int  // Requests per minute for all other endpoints (default: 100)

	// Sensitive action attempt limits
	ChangePasswordMaxAttempts int
	ChangePasswordWindow      time.Duration
	ChangePasswordBlock       time.Duration
	DeleteAccountMaxAttempts  int
	DeleteAccountWindow       time.Duration
	DeleteAccountBlock        time.Duration
	AttemptStore              string // memory or redis
	RedisURL                  string

	// Persistence (optional)
	DatabaseURL    string
	MigrateOnStart bool // apply embedded migrations before serving

	// Upper bound for the random delay added to session mismatch responses
	MismatchDelayMax time.Duration
}

func Load() (*Config, error) {
	// A missing .env is normal outside local development
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to read .env file", "error", err)
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		CORSAllowedOrigins: getEnvStringList("CORS_ALLOWED_ORIGINS"),
		CookieSecure:       getEnvBool("COOKIE_SECURE", true),
		LoginPath:          getEnv("LOGIN_PATH", "/login"),
		FrontendDir:        os.Getenv("FRONTEND_DIR"),

		AuthProvider:    strings.ToLower(getEnv("AUTH_PROVIDER", ProviderLocal)),
		GoTrueURL:       strings.TrimRight(os.Getenv("GOTRUE_URL"), "/"),
		GoTrueAPIKey:    os.Getenv("GOTRUE_API_KEY"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		BcryptCost:      getEnvInt("BCRYPT_COST", 12),
		LocalUsers:      getEnvStringList("LOCAL_USERS"),

		RateLimitEnabled: getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitAuth:    getEnvInt("RATE_LIMIT_AUTH", 5),
		RateLimitDefault: getEnvInt("RATE_LIMIT_DEFAULT", 100),

		ChangePasswordMaxAttempts: getEnvInt("CHANGE_PASSWORD_MAX_ATTEMPTS", 5),
		ChangePasswordWindow:      getEnvDuration("CHANGE_PASSWORD_WINDOW", 5*time.Minute),
		ChangePasswordBlock:       getEnvDuration("CHANGE_PASSWORD_BLOCK", 15*time.Minute),
		DeleteAccountMaxAttempts:  getEnvInt("DELETE_ACCOUNT_MAX_ATTEMPTS", 3),
		DeleteAccountWindow:       getEnvDuration("DELETE_ACCOUNT_WINDOW", 5*time.Minute),
		DeleteAccountBlock:        getEnvDuration("DELETE_ACCOUNT_BLOCK", 30*time.Minute),
		AttemptStore:              strings.ToLower(getEnv("ATTEMPT_STORE", AttemptStoreMemory)),
		RedisURL:                  os.Getenv("REDIS_URL"),

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", false),

		MismatchDelayMax: getEnvDuration("MISMATCH_DELAY_MAX", 200*time.Millisecond),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements
func (c *Config) Validate() error {
	switch c.AuthProvider {
	case ProviderLocal:
		if c.BcryptCost < 4 || c.BcryptCost > 31 {
			return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
		}
		for _, pair := range c.LocalUsers {
			if _, _, err := SplitUserPair(pair); err != nil {
				return err
			}
		}
	case ProviderGoTrue:
		if c.GoTrueURL == "" {
			return fmt.Errorf("GOTRUE_URL is required when AUTH_PROVIDER=gotrue")
		}
		if c.GoTrueAPIKey == "" {
			return fmt.Errorf("GOTRUE_API_KEY is required when AUTH_PROVIDER=gotrue")
		}
	default:
		return fmt.Errorf("invalid AUTH_PROVIDER: %q (must be local or gotrue)", c.AuthProvider)
	}

	switch c.AttemptStore {
	case AttemptStoreMemory:
	case AttemptStoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when ATTEMPT_STORE=redis")
		}
	default:
		return fmt.Errorf("invalid ATTEMPT_STORE: %q (must be memory or redis)", c.AttemptStore)
	}

	if !strings.HasPrefix(c.LoginPath, "/") {
		return fmt.Errorf("LOGIN_PATH must start with /, got %q", c.LoginPath)
	}

	for _, rl := range []struct {
		name  string
		value int
	}{
		{"RATE_LIMIT_AUTH", c.RateLimitAuth},
		{"RATE_LIMIT_DEFAULT", c.RateLimitDefault},
	} {
		if rl.value < 1 || rl.value > 10000 {
			return fmt.Errorf("%s must be between 1 and 10000, got %d", rl.name, rl.value)
		}
	}

	for _, p := range []struct {
		name   string
		max    int
		window time.Duration
		block  time.Duration
	}{
		{"CHANGE_PASSWORD", c.ChangePasswordMaxAttempts, c.ChangePasswordWindow, c.ChangePasswordBlock},
		{"DELETE_ACCOUNT", c.DeleteAccountMaxAttempts, c.DeleteAccountWindow, c.DeleteAccountBlock},
	} {
		if p.max < 1 {
			return fmt.Errorf("%s_MAX_ATTEMPTS must be at least 1, got %d", p.name, p.max)
		}
		if p.window <= 0 || p.block <= 0 {
			return fmt.Errorf("%s_WINDOW and %s_BLOCK must be positive", p.name, p.name)
		}
	}

	if c.MismatchDelayMax < 0 {
		return fmt.Errorf("MISMATCH_DELAY_MAX must not be negative")
	}
	return nil
}

// SplitUserPair parses an "email:password" entry from LOCAL_USERS
func SplitUserPair(pair string) (email, password string, err error) {
	email, password, ok := strings.Cut(pair, ":")
	if !ok || email == "" || password == "" {
		return "", "", fmt.Errorf("invalid LOCAL_USERS entry %q (want email:password)", redactPair(pair))
	}
	return email, password, nil
}

// redactPair keeps the email part of a user pair for error messages
func redactPair(pair string) string {
	email, _, _ := strings.Cut(pair, ":")
	return email + ":***"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("15m") or plain seconds ("900")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvStringList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
