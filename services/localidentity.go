// ABOUTME: Single-process identity provider for development and tests
// ABOUTME: bcrypt password hashes, HS256 access JWTs, rotating opaque refresh tokens

package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/markalston/flashdeck/backend/cache"
	"github.com/markalston/flashdeck/backend/models"
)

const localIssuer = "flashdeck-local"

// ErrUserExists is returned by CreateUser for a duplicate email
var ErrUserExists = errors.New("user already exists")

// LocalProviderConfig configures LocalIdentityProvider
type LocalProviderConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

// accessClaims are the claims carried by local access tokens
type accessClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	SessionID string `json:"sid"`
}

// refreshRecord is stored in the cache under the refresh token
type refreshRecord struct {
	UserID    string
	SessionID string
}

type localUser struct {
	ID           string
	Email        string
	PasswordHash []byte
}

// LocalIdentityProvider implements IdentityProvider in memory. State is lost
// on restart and is not shared between processes.
type LocalIdentityProvider struct {
	cfg     LocalProviderConfig
	refresh *cache.Cache
	mu      sync.RWMutex
	byEmail map[string]*localUser
	byID    map[string]*localUser
	parser  *jwt.Parser
	now     func() time.Time
}

// NewLocalIdentityProvider returns a provider signing tokens with cfg.Secret.
// refreshStore holds refresh tokens; it is typically a dedicated cache.Cache.
func NewLocalIdentityProvider(cfg LocalProviderConfig, refreshStore *cache.Cache) (*LocalIdentityProvider, error) {
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("local identity provider secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &LocalIdentityProvider{
		cfg:     cfg,
		refresh: refreshStore,
		byEmail: make(map[string]*localUser),
		byID:    make(map[string]*localUser),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(localIssuer),
			jwt.WithExpirationRequired(),
		),
		now: time.Now,
	}, nil
}

// CreateUser registers an account and returns its id
func (p *LocalIdentityProvider) CreateUser(email, password string) (string, error) {
	email = normalizeEmail(email)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cfg.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byEmail[email]; ok {
		return "", ErrUserExists
	}
	u := &localUser{ID: uuid.NewString(), Email: email, PasswordHash: hash}
	p.byEmail[email] = u
	p.byID[u.ID] = u
	return u.ID, nil
}

// SignInWithPassword issues a new session for valid credentials
func (p *LocalIdentityProvider) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	p.mu.RLock()
	u, ok := p.byEmail[normalizeEmail(email)]
	var hash []byte
	if ok {
		hash = u.PasswordHash
	}
	p.mu.RUnlock()

	if !ok {
		// Burn comparable time so unknown emails are not distinguishable
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return p.issue(u.ID, u.Email, uuid.NewString())
}

// VerifySession validates the access token, falling back to a refresh when it has expired
func (p *LocalIdentityProvider) VerifySession(ctx context.Context, accessToken, refreshToken string) (*models.Session, error) {
	claims, err := p.parse(accessToken)
	if err == nil {
		u, ok := p.userByID(claims.Subject)
		if !ok {
			return nil, ErrInvalidToken
		}
		return &models.Session{
			UserID:       u.ID,
			Email:        u.Email,
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresAt:    claims.ExpiresAt.Time,
		}, nil
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return p.RefreshSession(ctx, &models.Session{RefreshToken: refreshToken})
	}
	return nil, ErrInvalidToken
}

// RefreshSession rotates the refresh token. A refresh token can be used once.
func (p *LocalIdentityProvider) RefreshSession(ctx context.Context, current *models.Session) (*models.Session, error) {
	if current == nil || current.RefreshToken == "" {
		return nil, ErrSessionExpired
	}
	val, ok := p.refresh.Take(refreshKey(current.RefreshToken))
	if !ok {
		return nil, ErrSessionExpired
	}
	rec := val.(refreshRecord)

	u, ok := p.userByID(rec.UserID)
	if !ok {
		return nil, ErrSessionExpired
	}
	return p.issue(u.ID, u.Email, rec.SessionID)
}

// VerifyAccessToken returns the subject of a valid access token
func (p *LocalIdentityProvider) VerifyAccessToken(ctx context.Context, token string) (string, error) {
	claims, err := p.parse(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrSessionExpired
		}
		return "", ErrInvalidToken
	}
	if _, ok := p.userByID(claims.Subject); !ok {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// UpdatePassword replaces the password hash of the token's user.
// Existing sessions stay valid.
func (p *LocalIdentityProvider) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	userID, err := p.VerifyAccessToken(ctx, accessToken)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.byID[userID]
	if !ok {
		return ErrInvalidToken
	}
	u.PasswordHash = hash
	return nil
}

// SignOut revokes the session's refresh token
func (p *LocalIdentityProvider) SignOut(ctx context.Context, session *models.Session) error {
	if session == nil || session.RefreshToken == "" {
		return nil
	}
	p.refresh.Clear(refreshKey(session.RefreshToken))
	return nil
}

// IssueAccessToken signs an access token for userID with the given lifetime.
// Used by tooling and tests that need tokens with specific expiries.
func (p *LocalIdentityProvider) IssueAccessToken(userID string, ttl time.Duration) (string, time.Time, error) {
	u, ok := p.userByID(userID)
	if !ok {
		return "", time.Time{}, fmt.Errorf("unknown user %s", userID)
	}
	return p.sign(u.ID, u.Email, uuid.NewString(), ttl)
}

func (p *LocalIdentityProvider) issue(userID, email, sessionID string) (*models.Session, error) {
	access, expiresAt, err := p.sign(userID, email, sessionID, p.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := randomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	p.refresh.SetWithTTL(refreshKey(refresh), refreshRecord{UserID: userID, SessionID: sessionID}, p.cfg.RefreshTTL)

	return &models.Session{
		UserID:       userID,
		Email:        email,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

func (p *LocalIdentityProvider) sign(userID, email, sessionID string, ttl time.Duration) (string, time.Time, error) {
	now := p.now().UTC()
	expiresAt := now.Add(ttl)
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    localIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:     email,
		SessionID: sessionID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.cfg.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	// JWT expiry has second precision
	return token, claims.ExpiresAt.Time, nil
}

func (p *LocalIdentityProvider) parse(token string) (*accessClaims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims := &accessClaims{}
	_, err := p.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return p.cfg.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (p *LocalIdentityProvider) userByID(id string) (*localUser, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.byID[id]
	return u, ok
}

func refreshKey(token string) string {
	return "refresh:" + token
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// randomToken returns n random bytes encoded as unpadded base64url
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// dummyHash is compared against when an email is unknown
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("flashdeck-timing-equaliser"), bcrypt.MinCost)
