// Package memory is the in-memory artifact store, used in tests and
// single-node development runs.
package memory

import (
	"context"
	"sync"

	"agegate/internal/postback/models"
	"agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"
)

type Store struct {
	mu        sync.RWMutex
	artifacts map[domain.ArtifactID]*models.ConsentArtifact
	order     []domain.ArtifactID
}

func NewStore() *Store {
	return &Store{
		artifacts: make(map[domain.ArtifactID]*models.ConsentArtifact),
	}
}

func (s *Store) Create(_ context.Context, artifact *models.ConsentArtifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.artifacts[artifact.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *artifact
	s.artifacts[artifact.ID] = &cp
	s.order = append(s.order, artifact.ID)
	return nil
}

func (s *Store) Get(_ context.Context, id domain.ArtifactID) (*models.ConsentArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	artifact, ok := s.artifacts[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *artifact
	return &cp, nil
}

func (s *Store) ListByLink(_ context.Context, linkID domain.LinkID) ([]*models.ConsentArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ConsentArtifact
	for _, id := range s.order {
		if a := s.artifacts[id]; a.LinkID == linkID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}
