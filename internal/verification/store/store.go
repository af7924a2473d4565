// Package store persists verification sessions.
package store

import (
	"context"
	"time"

	"agegate/internal/verification/models"
	"agegate/pkg/domain"
)

// Store is the durable session repository.
//
// MarkOutcome is conditional: it transitions pending to the given terminal
// status and returns sentinel.ErrInvalidState when the session is already
// terminal, so concurrent callbacks and the sweeper cannot overwrite a
// decided outcome.
type Store interface {
	Create(ctx context.Context, session *models.VerificationSession) error
	Get(ctx context.Context, id domain.SessionID) (*models.VerificationSession, error)
	MarkOutcome(ctx context.Context, id domain.SessionID, status models.SessionStatus, verifiedAge *int, reason string) error
	// ExpireStale marks every pending session past its expiry as expired and
	// returns their IDs so the caller can emit audit events.
	ExpireStale(ctx context.Context, now time.Time) ([]domain.SessionID, error)
}
