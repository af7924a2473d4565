// Package outbox defines the transactional outbox contract for audit events.
// Events are written to the outbox table in the same database as domain state
// and published to Kafka by a background worker; Kafka is the source of truth
// for the audit trail.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is a single outbox row awaiting publication.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// Store is the persistence contract the outbox worker polls.
type Store interface {
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
