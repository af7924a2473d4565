// Package sessionstore holds pending verification sessions between initiate
// and callback. Entries are keyed by state token, TTL-bounded, and consumed
// exactly once.
package sessionstore

import (
	"context"
	"time"

	"agegate/internal/verification/models"
)

// Store is the TTL-bounded key-value contract for pending sessions.
//
// Error Contract:
// - Redeem returns sentinel.ErrNotFound for unknown, expired, or already
//   redeemed state tokens. Callers cannot distinguish the three: a state
//   token either redeems exactly once or fails closed.
// - Redemption is atomic get-and-delete. Two concurrent Redeem calls for the
//   same token must never both succeed, even across process instances.
type Store interface {
	Put(ctx context.Context, stateToken string, pending *models.PendingSession, ttl time.Duration) error
	Redeem(ctx context.Context, stateToken string) (*models.PendingSession, error)
}
