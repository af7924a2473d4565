package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	audit "agegate/pkg/platform/audit"
	"agegate/pkg/platform/audit/outbox"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table and published to Kafka by the outbox
// worker. It also implements outbox.Store so the worker can poll the same
// table.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// outboxPayload is the JSON structure published to Kafka.
// Field names match audit.Event for proper deserialization by consumers.
type outboxPayload struct {
	ID         string `json:"ID"`
	Category   string `json:"Category"`
	Timestamp  string `json:"Timestamp"`
	SessionID  string `json:"SessionID,omitempty"`
	LinkID     string `json:"LinkID,omitempty"`
	ArtifactID string `json:"ArtifactID,omitempty"`
	WidgetID   string `json:"WidgetID,omitempty"`
	Provider   string `json:"Provider,omitempty"`
	Action     string `json:"Action"`
	Decision   string `json:"Decision,omitempty"`
	Reason     string `json:"Reason,omitempty"`
	RequestID  string `json:"RequestID,omitempty"`
	DeviceName string `json:"DeviceName,omitempty"`
	SourceIP   string `json:"SourceIP,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// Always derive category from action; eventCategories is the source of truth.
	category := audit.AuditEvent(event.Action).Category()

	payload := outboxPayload{
		ID:         eventID.String(),
		Category:   string(category),
		Timestamp:  event.Timestamp.Format(time.RFC3339Nano),
		SessionID:  event.SessionID,
		LinkID:     event.LinkID,
		ArtifactID: event.ArtifactID,
		WidgetID:   event.WidgetID,
		Provider:   event.Provider,
		Action:     event.Action,
		Decision:   event.Decision,
		Reason:     event.Reason,
		RequestID:  event.RequestID,
		DeviceName: event.DeviceName,
		SourceIP:   event.SourceIP,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType := "audit"
	aggregateID := eventID.String()
	if event.SessionID != "" {
		aggregateType = "session"
		aggregateID = event.SessionID
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.db.ExecContext(ctx, query,
		eventID,
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// FetchUnprocessed returns up to limit entries that haven't been published.
// Uses FOR UPDATE SKIP LOCKED to support concurrent workers without blocking.
func (s *Store) FetchUnprocessed(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	const maxBatch = 1000
	if limit > maxBatch {
		limit = maxBatch
	}

	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE processed_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unprocessed entries: %w", err)
	}
	defer rows.Close()

	var entries []*outbox.Entry
	for rows.Next() {
		var e outbox.Entry
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// MarkProcessed marks an entry as successfully published.
func (s *Store) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET processed_at = $2 WHERE id = $1 AND processed_at IS NULL`,
		id, processedAt,
	)
	if err != nil {
		return fmt.Errorf("mark outbox entry processed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("outbox entry not found or already processed: %s", id)
	}
	return nil
}

// DeleteProcessedBefore removes old published entries.
func (s *Store) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM outbox WHERE processed_at IS NOT NULL AND processed_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("delete processed entries: %w", err)
	}
	return result.RowsAffected()
}
