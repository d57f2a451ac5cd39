// ABOUTME: Account profile soft-delete flags
// ABOUTME: In-memory and Postgres stores behind the ProfileStore interface

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/markalston/flashdeck/backend/models"
)

// ErrProfileNotFound is returned when a user has no profile row
var ErrProfileNotFound = errors.New("profile not found")

// ProfileStore reads and writes the soft-delete flags of account profiles
type ProfileStore interface {
	IsDeleted(ctx context.Context, userID string) (bool, error)
	MarkDeleted(ctx context.Context, userID string, at time.Time) error
	// Ensure creates an active profile for userID if none exists
	Ensure(ctx context.Context, userID string) error
}

// MemoryProfileStore keeps profiles in process memory
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]models.AccountProfile
}

func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{profiles: make(map[string]models.AccountProfile)}
}

func (s *MemoryProfileStore) IsDeleted(ctx context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return false, ErrProfileNotFound
	}
	return p.IsDeleted, nil
}

func (s *MemoryProfileStore) MarkDeleted(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return ErrProfileNotFound
	}
	at = at.UTC()
	p.IsDeleted = true
	p.DeletedAt = &at
	s.profiles[userID] = p
	return nil
}

func (s *MemoryProfileStore) Ensure(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[userID]; !ok {
		s.profiles[userID] = models.AccountProfile{UserID: userID}
	}
	return nil
}

// Profile returns a copy of the stored profile
func (s *MemoryProfileStore) Profile(userID string) (models.AccountProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	return p, ok
}

// PostgresProfileStore reads and writes the profiles table
type PostgresProfileStore struct {
	db *pgxpool.Pool
}

func NewPostgresProfileStore(db *pgxpool.Pool) *PostgresProfileStore {
	return &PostgresProfileStore{db: db}
}

func (s *PostgresProfileStore) IsDeleted(ctx context.Context, userID string) (bool, error) {
	var deleted bool
	err := s.db.QueryRow(ctx,
		`SELECT is_deleted FROM profiles WHERE user_id = $1`, userID).Scan(&deleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrProfileNotFound
		}
		return false, fmt.Errorf("query profile: %w", err)
	}
	return deleted, nil
}

func (s *PostgresProfileStore) MarkDeleted(ctx context.Context, userID string, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE profiles SET is_deleted = TRUE, deleted_at = $2 WHERE user_id = $1`, userID, at.UTC())
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (s *PostgresProfileStore) Ensure(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	return nil
}
