package sessionstore

import (
	"context"
	"sync"
	"time"

	"agegate/internal/verification/models"
	"agegate/pkg/platform/sentinel"
)

// entry pairs a pending session with its expiry deadline.
type entry struct {
	pending   *models.PendingSession
	expiresAt time.Time
}

// InMemoryStore keeps pending sessions in process memory. Suitable for tests
// and single-instance development; production uses the Redis store.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// WithClock overrides the time source, for expiry tests.
func (s *InMemoryStore) WithClock(now func() time.Time) *InMemoryStore {
	s.now = now
	return s
}

func (s *InMemoryStore) Put(_ context.Context, stateToken string, pending *models.PendingSession, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[stateToken] = entry{
		pending:   pending,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// Redeem deletes and returns the entry under a single lock acquisition, so a
// concurrent second redemption observes the deletion and fails closed.
func (s *InMemoryStore) Redeem(_ context.Context, stateToken string) (*models.PendingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[stateToken]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	delete(s.entries, stateToken)

	if s.now().After(e.expiresAt) {
		return nil, sentinel.ErrNotFound
	}
	return e.pending, nil
}
