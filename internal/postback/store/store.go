// Package store persists consent artifacts.
package store

import (
	"context"

	"agegate/internal/postback/models"
	"agegate/pkg/domain"
)

// Store is the append-only artifact repository. Artifacts are never updated
// or deleted; the record of what the consent system sent is the point.
type Store interface {
	Create(ctx context.Context, artifact *models.ConsentArtifact) error
	Get(ctx context.Context, id domain.ArtifactID) (*models.ConsentArtifact, error)
	ListByLink(ctx context.Context, linkID domain.LinkID) ([]*models.ConsentArtifact, error)
}
