// Package postgres is the durable session store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"agegate/internal/verification/models"
	"agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, session *models.VerificationSession) error {
	query := `
		INSERT INTO verification_sessions
			(id, widget_id, provider, purpose, link_id, status, verified_age, failure_reason, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	var linkID any
	if !session.LinkID.IsNil() {
		linkID = session.LinkID.String()
	}
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(session.ID),
		session.WidgetID.String(),
		string(session.Provider),
		string(session.Purpose),
		linkID,
		string(session.Status),
		session.VerifiedAge,
		nullableString(session.FailureReason),
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert verification session: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.SessionID) (*models.VerificationSession, error) {
	query := `
		SELECT id, widget_id, provider, purpose, link_id, status, verified_age, failure_reason, created_at, expires_at
		FROM verification_sessions
		WHERE id = $1
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(id))
	return scanSession(row)
}

// MarkOutcome transitions pending to a terminal status. The WHERE clause is
// the concurrency guard: a session already decided is left untouched and the
// caller gets sentinel.ErrInvalidState.
func (s *Store) MarkOutcome(ctx context.Context, id domain.SessionID, status models.SessionStatus, verifiedAge *int, reason string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE verification_sessions
		SET status = $2, verified_age = $3, failure_reason = $4
		WHERE id = $1 AND status = 'pending'
	`, uuid.UUID(id), string(status), verifiedAge, nullableString(reason))
	if err != nil {
		return fmt.Errorf("mark session outcome: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish missing from already-terminal for the caller.
		var exists bool
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM verification_sessions WHERE id = $1)`,
			uuid.UUID(id),
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check session existence: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Store) ExpireStale(ctx context.Context, now time.Time) ([]domain.SessionID, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE verification_sessions
		SET status = 'expired', failure_reason = 'session_expired'
		WHERE status = 'pending' AND expires_at < $1
		RETURNING id
	`, now)
	if err != nil {
		return nil, fmt.Errorf("expire stale sessions: %w", err)
	}
	defer rows.Close()

	var expired []domain.SessionID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired session id: %w", err)
		}
		expired = append(expired, domain.SessionID(id))
	}
	return expired, rows.Err()
}

func scanSession(row *sql.Row) (*models.VerificationSession, error) {
	var (
		session  models.VerificationSession
		id       uuid.UUID
		widgetID string
		provider string
		purpose  string
		linkID   sql.NullString
		status   string
		reason   sql.NullString
	)
	err := row.Scan(&id, &widgetID, &provider, &purpose, &linkID, &status,
		&session.VerifiedAge, &reason, &session.CreatedAt, &session.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan verification session: %w", err)
	}

	session.ID = domain.SessionID(id)
	session.WidgetID = domain.WidgetID(widgetID)
	session.Provider = domain.Provider(provider)
	session.Purpose = models.Purpose(purpose)
	session.Status = models.SessionStatus(status)
	session.FailureReason = reason.String
	if linkID.Valid {
		parsed, err := domain.ParseLinkID(linkID.String)
		if err != nil {
			return nil, fmt.Errorf("parse stored link id: %w", err)
		}
		session.LinkID = parsed
	}
	return &session, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
