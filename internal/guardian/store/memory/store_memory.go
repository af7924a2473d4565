// Package memory is the in-memory consent link store, used in tests and
// single-node development runs.
package memory

import (
	"context"
	"sync"
	"time"

	"agegate/internal/guardian/models"
	"agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"
)

type Store struct {
	mu    sync.RWMutex
	links map[domain.LinkID]*models.GuardianConsentLink
}

func NewStore() *Store {
	return &Store{
		links: make(map[domain.LinkID]*models.GuardianConsentLink),
	}
}

func (s *Store) Create(_ context.Context, link *models.GuardianConsentLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.links[link.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *link
	s.links[link.ID] = &cp
	return nil
}

func (s *Store) Get(_ context.Context, id domain.LinkID) (*models.GuardianConsentLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *link
	return &cp, nil
}

func (s *Store) AttachGuardian(_ context.Context, id domain.LinkID, guardianSessionID domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if link.Status != models.LinkStatusAwaitingGuardian {
		return sentinel.ErrInvalidState
	}

	link.Status = models.LinkStatusGuardianVerified
	link.GuardianSessionID = guardianSessionID
	return nil
}

func (s *Store) Transition(_ context.Context, id domain.LinkID, from, to models.LinkStatus, decidedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if link.Status != from || !from.CanTransitionTo(to) {
		return sentinel.ErrInvalidState
	}

	link.Status = to
	if to.IsTerminal() {
		link.DecidedAt = &decidedAt
	}
	return nil
}

func (s *Store) ExpireStale(_ context.Context, now time.Time) ([]*models.GuardianConsentLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*models.GuardianConsentLink
	for _, link := range s.links {
		if !link.Status.IsTerminal() && now.After(link.ExpiresAt) {
			link.Status = models.LinkStatusExpired
			decidedAt := now
			link.DecidedAt = &decidedAt
			cp := *link
			expired = append(expired, &cp)
		}
	}
	return expired, nil
}
