// Package store persists guardian consent links.
package store

import (
	"context"
	"time"

	"agegate/internal/guardian/models"
	"agegate/pkg/domain"
)

// Store is the consent link repository. Every status mutation is a
// compare-and-swap on the current status: a transition whose precondition no
// longer holds returns sentinel.ErrInvalidState and changes nothing, which
// makes duplicate guardian completions and duplicate decisions detectable
// no-ops at the service layer.
type Store interface {
	Create(ctx context.Context, link *models.GuardianConsentLink) error
	Get(ctx context.Context, id domain.LinkID) (*models.GuardianConsentLink, error)
	// AttachGuardian moves awaiting_guardian to guardian_verified and records
	// the guardian's session in the same step.
	AttachGuardian(ctx context.Context, id domain.LinkID, guardianSessionID domain.SessionID) error
	// Transition moves the link from one explicit status to another,
	// stamping DecidedAt when the target is terminal.
	Transition(ctx context.Context, id domain.LinkID, from, to models.LinkStatus, decidedAt time.Time) error
	// ExpireStale expires every non-terminal link past its expiry and returns
	// the affected links so the caller can fail the minor sessions.
	ExpireStale(ctx context.Context, now time.Time) ([]*models.GuardianConsentLink, error)
}
