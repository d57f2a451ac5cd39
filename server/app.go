// ABOUTME: Builds the service graph from configuration
// ABOUTME: Chooses the identity provider, stores, and audit sinks and wires them into handlers

package server

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/markalston/flashdeck/backend/cache"
	"github.com/markalston/flashdeck/backend/config"
	"github.com/markalston/flashdeck/backend/db"
	"github.com/markalston/flashdeck/backend/handlers"
	"github.com/markalston/flashdeck/backend/middleware"
	"github.com/markalston/flashdeck/backend/services"
)

// App is the assembled service
type App struct {
	Handler http.Handler

	// Exposed for tooling and tests
	Provider services.IdentityProvider
	Profiles services.ProfileStore

	closers []func()
}

// NewApp builds every dependency named by cfg. Audit events go to the log,
// to Postgres when configured, and to any extra sinks. Close releases them.
func NewApp(ctx context.Context, cfg *config.Config, extraSinks ...services.AuditSink) (*App, error) {
	app := &App{}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		if cfg.MigrateOnStart {
			if err := db.Migrate(cfg.DatabaseURL, "up"); err != nil {
				return nil, err
			}
		}
		var err error
		pool, err = db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, pool.Close)
		slog.Info("Postgres connected")
	}

	// Profiles and audit events
	sinks := services.MultiAuditSink{services.SlogAuditSink{Logger: slog.Default()}}
	if pool != nil {
		app.Profiles = services.NewPostgresProfileStore(pool)
		sinks = append(sinks, services.NewPostgresAuditSink(pool))
	} else {
		app.Profiles = services.NewMemoryProfileStore()
		slog.Warn("DATABASE_URL not set, profiles are kept in memory")
	}
	sinks = append(sinks, extraSinks...)
	audit := services.NewAuditLog(sinks)

	provider, err := app.newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Provider = provider

	limiter, err := app.newAttemptLimiter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	accounts := services.NewAccountService(services.AccountServiceConfig{
		Limiter:  limiter,
		Audit:    audit,
		Profiles: app.Profiles,
		ChangePolicy: services.AttemptPolicy{
			Name:        services.ChangePasswordPolicy.Name,
			MaxAttempts: cfg.ChangePasswordMaxAttempts,
			Window:      cfg.ChangePasswordWindow,
			Block:       cfg.ChangePasswordBlock,
		},
		DeletePolicy: services.AttemptPolicy{
			Name:        services.DeleteAccountPolicy.Name,
			MaxAttempts: cfg.DeleteAccountMaxAttempts,
			Window:      cfg.DeleteAccountWindow,
			Block:       cfg.DeleteAccountBlock,
		},
		MismatchDelayMax: cfg.MismatchDelayMax,
	})

	h := handlers.NewHandler(cfg, provider)
	h.SetAccountService(accounts)
	h.SetProfileStore(app.Profiles)
	h.SetAuditLog(audit)

	opts := Options{
		Sessions:           services.NewSessionManager(provider, audit),
		LoginPath:          cfg.LoginPath,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		FrontendDir:        cfg.FrontendDir,
		MismatchDelayMax:   cfg.MismatchDelayMax,
	}
	if cfg.RateLimitEnabled {
		opts.AuthLimiter = middleware.NewRateLimiter(cfg.RateLimitAuth, time.Minute)
		opts.DefaultLimiter = middleware.NewRateLimiter(cfg.RateLimitDefault, time.Minute)
		slog.Info("Rate limiting enabled", "auth_per_min", cfg.RateLimitAuth, "default_per_min", cfg.RateLimitDefault)
	} else {
		slog.Warn("Rate limiting disabled")
	}
	app.Handler = New(h, opts)

	ok = true
	return app, nil
}

// Close releases pools, clients, and background sweepers in reverse order
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) newProvider(ctx context.Context, cfg *config.Config) (services.IdentityProvider, error) {
	if cfg.AuthProvider == config.ProviderGoTrue {
		slog.Info("Identity provider configured", "provider", "gotrue", "url", cfg.GoTrueURL,
			"local_verification", cfg.JWTSecret != "")
		return services.NewGoTrueProvider(cfg.GoTrueURL, cfg.GoTrueAPIKey, cfg.JWTSecret), nil
	}

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate signing secret: %w", err)
		}
		slog.Warn("JWT_SECRET not set, sessions will not survive a restart")
	}

	refreshStore := cache.New(cfg.RefreshTokenTTL)
	a.closers = append(a.closers, refreshStore.Close)

	p, err := services.NewLocalIdentityProvider(services.LocalProviderConfig{
		Secret:     secret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		BcryptCost: cfg.BcryptCost,
	}, refreshStore)
	if err != nil {
		return nil, err
	}

	for _, pair := range cfg.LocalUsers {
		email, password, err := config.SplitUserPair(pair)
		if err != nil {
			return nil, err
		}
		id, err := p.CreateUser(email, password)
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", email, err)
		}
		if err := a.Profiles.Ensure(ctx, id); err != nil {
			return nil, fmt.Errorf("seed profile for %s: %w", email, err)
		}
		slog.Info("Seeded local user", "email", email, "user_id", id)
	}

	slog.Info("Identity provider configured", "provider", "local", "users", len(cfg.LocalUsers))
	return p, nil
}

func (a *App) newAttemptLimiter(ctx context.Context, cfg *config.Config) (services.AttemptLimiter, error) {
	if cfg.AttemptStore == config.AttemptStoreRedis {
		client, err := services.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { closeRedis(client) })
		slog.Info("Attempt limiter backed by Redis")
		return services.NewRedisAttemptStore(client, "flashdeck:attempts:"), nil
	}

	store := services.NewMemoryAttemptStore(time.Minute)
	a.closers = append(a.closers, store.Close)
	slog.Warn("Attempt limiter is in memory, limits are per instance")
	return store, nil
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		slog.Warn("Failed to close Redis client", "error", err)
	}
}
