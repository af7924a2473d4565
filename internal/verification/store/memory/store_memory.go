// Package memory is the in-memory session store, used in tests and
// single-node development runs.
package memory

import (
	"context"
	"sync"
	"time"

	"agegate/internal/verification/models"
	"agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"
)

type Store struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*models.VerificationSession
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[domain.SessionID]*models.VerificationSession),
	}
}

func (s *Store) Create(_ context.Context, session *models.VerificationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *Store) Get(_ context.Context, id domain.SessionID) (*models.VerificationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *session
	return &cp, nil
}

func (s *Store) MarkOutcome(_ context.Context, id domain.SessionID, status models.SessionStatus, verifiedAge *int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if session.Status != models.SessionStatusPending {
		return sentinel.ErrInvalidState
	}

	session.Status = status
	session.VerifiedAge = verifiedAge
	session.FailureReason = reason
	return nil
}

func (s *Store) ExpireStale(_ context.Context, now time.Time) ([]domain.SessionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []domain.SessionID
	for id, session := range s.sessions {
		if session.Status == models.SessionStatusPending && now.After(session.ExpiresAt) {
			session.Status = models.SessionStatusExpired
			session.FailureReason = "session_expired"
			expired = append(expired, id)
		}
	}
	return expired, nil
}
