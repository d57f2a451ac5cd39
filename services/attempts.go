// ABOUTME: Attempt limiter for sensitive account actions
// ABOUTME: Sliding window with an extended block once a policy's quota is used up

package services

import (
	"context"
	"math"
	"sync"
	"time"
)

// AttemptPolicy bounds attempts for one action class
type AttemptPolicy struct {
	Name        string
	MaxAttempts int
	Window      time.Duration
	Block       time.Duration
}

var (
	ChangePasswordPolicy = AttemptPolicy{Name: "change_password", MaxAttempts: 5, Window: 5 * time.Minute, Block: 15 * time.Minute}
	DeleteAccountPolicy  = AttemptPolicy{Name: "delete_account", MaxAttempts: 3, Window: 5 * time.Minute, Block: 30 * time.Minute}
)

// AttemptDecision is the outcome of CheckAndRecord. RetryAfter is in whole
// seconds and only set when Allowed is false.
type AttemptDecision struct {
	Allowed    bool
	RetryAfter int
}

// AttemptLimiter counts attempts per (policy, identifier). Implementations
// must make CheckAndRecord atomic per key.
type AttemptLimiter interface {
	CheckAndRecord(ctx context.Context, policy AttemptPolicy, identifier string) (AttemptDecision, error)
	Reset(ctx context.Context, policy AttemptPolicy, identifier string) error
}

type attemptEntry struct {
	count         int
	lastAttemptAt time.Time
}

// decideAttempt applies the policy to an entry. ok reports whether an entry existed.
// A denied attempt leaves the entry untouched.
func decideAttempt(e attemptEntry, ok bool, now time.Time, p AttemptPolicy) (attemptEntry, AttemptDecision) {
	fresh := attemptEntry{count: 1, lastAttemptAt: now}
	if !ok {
		return fresh, AttemptDecision{Allowed: true}
	}

	elapsed := now.Sub(e.lastAttemptAt)
	// An exhausted entry is judged against the block period, so staleness of
	// the window cannot end a lockout early
	if e.count >= p.MaxAttempts {
		if elapsed < p.Block {
			return e, AttemptDecision{Allowed: false, RetryAfter: retryAfterSeconds(e.lastAttemptAt.Add(p.Block).Sub(now))}
		}
		return fresh, AttemptDecision{Allowed: true}
	}
	if elapsed > p.Window {
		return fresh, AttemptDecision{Allowed: true}
	}
	return attemptEntry{count: e.count + 1, lastAttemptAt: now}, AttemptDecision{Allowed: true}
}

// retryAfterSeconds rounds up and never returns less than 1
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func attemptKey(p AttemptPolicy, identifier string) string {
	return p.Name + ":" + identifier
}

// MemoryAttemptStore keeps attempt counters in process memory. Counters are
// not shared between instances and do not survive a restart.
type MemoryAttemptStore struct {
	mu      sync.Mutex
	entries map[string]attemptEntry
	expiry  map[string]time.Duration
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// NewMemoryAttemptStore creates a store. A positive sweepInterval starts a
// goroutine that drops entries past both their window and block; stop it with Close.
func NewMemoryAttemptStore(sweepInterval time.Duration) *MemoryAttemptStore {
	s := &MemoryAttemptStore{
		entries: make(map[string]attemptEntry),
		expiry:  make(map[string]time.Duration),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if sweepInterval > 0 {
		go s.sweepLoop(sweepInterval)
	}
	return s
}

func (s *MemoryAttemptStore) CheckAndRecord(ctx context.Context, p AttemptPolicy, identifier string) (AttemptDecision, error) {
	key := attemptKey(p, identifier)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	next, decision := decideAttempt(e, ok, s.now(), p)
	s.entries[key] = next
	s.expiry[key] = max(p.Window, p.Block)
	return decision, nil
}

func (s *MemoryAttemptStore) Reset(ctx context.Context, p AttemptPolicy, identifier string) error {
	key := attemptKey(p, identifier)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	delete(s.expiry, key)
	return nil
}

// Len returns the number of tracked keys
func (s *MemoryAttemptStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the sweeper. Safe to call more than once.
func (s *MemoryAttemptStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *MemoryAttemptStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryAttemptStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, e := range s.entries {
		if now.Sub(e.lastAttemptAt) >= s.expiry[key] {
			delete(s.entries, key)
			delete(s.expiry, key)
		}
	}
}
