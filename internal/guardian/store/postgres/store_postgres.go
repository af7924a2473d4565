// Package postgres is the durable consent link store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"agegate/internal/guardian/models"
	"agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, link *models.GuardianConsentLink) error {
	query := `
		INSERT INTO guardian_consent_links
			(id, minor_session_id, widget_id, status, guardian_session_id, created_at, expires_at, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	var guardianSessionID any
	if !link.GuardianSessionID.IsNil() {
		guardianSessionID = link.GuardianSessionID.String()
	}
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(link.ID),
		uuid.UUID(link.MinorSessionID),
		link.WidgetID.String(),
		string(link.Status),
		guardianSessionID,
		link.CreatedAt,
		link.ExpiresAt,
		link.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("insert consent link: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.LinkID) (*models.GuardianConsentLink, error) {
	query := `
		SELECT id, minor_session_id, widget_id, status, guardian_session_id, created_at, expires_at, decided_at
		FROM guardian_consent_links
		WHERE id = $1
	`
	var (
		link              models.GuardianConsentLink
		linkID            uuid.UUID
		minorSessionID    uuid.UUID
		widgetID          string
		status            string
		guardianSessionID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(id)).Scan(
		&linkID, &minorSessionID, &widgetID, &status, &guardianSessionID,
		&link.CreatedAt, &link.ExpiresAt, &link.DecidedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan consent link: %w", err)
	}

	link.ID = domain.LinkID(linkID)
	link.MinorSessionID = domain.SessionID(minorSessionID)
	link.WidgetID = domain.WidgetID(widgetID)
	link.Status = models.LinkStatus(status)
	if guardianSessionID.Valid {
		parsed, err := domain.ParseSessionID(guardianSessionID.String)
		if err != nil {
			return nil, fmt.Errorf("parse stored guardian session id: %w", err)
		}
		link.GuardianSessionID = parsed
	}
	return &link, nil
}

// AttachGuardian is a compare-and-swap on status: the WHERE clause rejects the
// update when the link is no longer awaiting a guardian.
func (s *Store) AttachGuardian(ctx context.Context, id domain.LinkID, guardianSessionID domain.SessionID) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE guardian_consent_links
		SET status = $2, guardian_session_id = $3
		WHERE id = $1 AND status = $4
	`, uuid.UUID(id), string(models.LinkStatusGuardianVerified),
		uuid.UUID(guardianSessionID), string(models.LinkStatusAwaitingGuardian))
	if err != nil {
		return fmt.Errorf("attach guardian to link: %w", err)
	}
	return s.checkAffected(ctx, result, id)
}

func (s *Store) Transition(ctx context.Context, id domain.LinkID, from, to models.LinkStatus, decidedAt time.Time) error {
	if !from.CanTransitionTo(to) {
		return sentinel.ErrInvalidState
	}

	var decided any
	if to.IsTerminal() {
		decided = decidedAt
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE guardian_consent_links
		SET status = $2, decided_at = COALESCE($3, decided_at)
		WHERE id = $1 AND status = $4
	`, uuid.UUID(id), string(to), decided, string(from))
	if err != nil {
		return fmt.Errorf("transition consent link: %w", err)
	}
	return s.checkAffected(ctx, result, id)
}

func (s *Store) ExpireStale(ctx context.Context, now time.Time) ([]*models.GuardianConsentLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE guardian_consent_links
		SET status = 'expired', decided_at = $1
		WHERE status IN ('awaiting_guardian', 'guardian_verified') AND expires_at < $1
		RETURNING id, minor_session_id, widget_id, status, guardian_session_id, created_at, expires_at, decided_at
	`, now)
	if err != nil {
		return nil, fmt.Errorf("expire stale consent links: %w", err)
	}
	defer rows.Close()

	var expired []*models.GuardianConsentLink
	for rows.Next() {
		var (
			link              models.GuardianConsentLink
			linkID            uuid.UUID
			minorSessionID    uuid.UUID
			widgetID          string
			status            string
			guardianSessionID sql.NullString
		)
		if err := rows.Scan(&linkID, &minorSessionID, &widgetID, &status, &guardianSessionID,
			&link.CreatedAt, &link.ExpiresAt, &link.DecidedAt); err != nil {
			return nil, fmt.Errorf("scan expired consent link: %w", err)
		}
		link.ID = domain.LinkID(linkID)
		link.MinorSessionID = domain.SessionID(minorSessionID)
		link.WidgetID = domain.WidgetID(widgetID)
		link.Status = models.LinkStatus(status)
		if guardianSessionID.Valid {
			parsed, err := domain.ParseSessionID(guardianSessionID.String)
			if err != nil {
				return nil, fmt.Errorf("parse stored guardian session id: %w", err)
			}
			link.GuardianSessionID = parsed
		}
		expired = append(expired, &link)
	}
	return expired, rows.Err()
}

func (s *Store) checkAffected(ctx context.Context, result sql.Result, id domain.LinkID) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM guardian_consent_links WHERE id = $1)`,
			uuid.UUID(id),
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check link existence: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}
