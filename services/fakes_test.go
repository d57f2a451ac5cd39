// ABOUTME: Hand-written identity provider fake shared by service tests
// ABOUTME: Scripted verify/refresh/sign-in behaviour with call counters

package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/markalston/flashdeck/backend/models"
)

// fakeProvider is a scriptable IdentityProvider
type fakeProvider struct {
	mu sync.Mutex

	sessions  map[string]*models.Session // by access token
	passwords map[string]string          // email -> password
	users     map[string]string          // email -> user id

	verifyErr    error
	refreshErr   error
	refreshUser  string // overrides the user of refreshed sessions
	refreshGate  chan struct{}
	updateErr    error
	expiresIn    time.Duration
	now          func() time.Time
	seq          int
	refreshCalls int
	signInCalls  int
	updateCalls  int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		sessions:  make(map[string]*models.Session),
		passwords: make(map[string]string),
		users:     make(map[string]string),
		expiresIn: time.Hour,
		now:       time.Now,
	}
}

func (f *fakeProvider) addUser(id, email, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[email] = id
	f.passwords[email] = password
}

// issue creates a session for userID expiring after expiresIn
func (f *fakeProvider) issue(userID, email string, expiresIn time.Duration) *models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issueLocked(userID, email, expiresIn)
}

func (f *fakeProvider) issueLocked(userID, email string, expiresIn time.Duration) *models.Session {
	f.seq++
	s := &models.Session{
		UserID:       userID,
		Email:        email,
		AccessToken:  "access-" + strconv.Itoa(f.seq),
		RefreshToken: "refresh-" + strconv.Itoa(f.seq),
		ExpiresAt:    f.now().Add(expiresIn),
	}
	cp := *s
	f.sessions[s.AccessToken] = &cp
	return s
}

func (f *fakeProvider) VerifySession(ctx context.Context, accessToken, refreshToken string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	s, ok := f.sessions[accessToken]
	if !ok || s.RefreshToken != refreshToken {
		return nil, ErrInvalidToken
	}
	cp := *s
	return &cp, nil
}

func (f *fakeProvider) RefreshSession(ctx context.Context, current *models.Session) (*models.Session, error) {
	f.mu.Lock()
	f.refreshCalls++
	gate := f.refreshGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	userID := current.UserID
	if f.refreshUser != "" {
		userID = f.refreshUser
	}
	return f.issueLocked(userID, current.Email, f.expiresIn), nil
}

func (f *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signInCalls++
	if pw, ok := f.passwords[email]; !ok || pw != password {
		return nil, ErrInvalidCredentials
	}
	return f.issueLocked(f.users[email], email, f.expiresIn), nil
}

func (f *fakeProvider) VerifyAccessToken(ctx context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok {
		return "", ErrInvalidToken
	}
	return s.UserID, nil
}

func (f *fakeProvider) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	s, ok := f.sessions[accessToken]
	if !ok {
		return ErrInvalidToken
	}
	f.passwords[s.Email] = newPassword
	return nil
}

func (f *fakeProvider) SignOut(ctx context.Context, session *models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, session.AccessToken)
	return nil
}
