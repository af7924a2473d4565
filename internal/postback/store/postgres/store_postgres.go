// Package postgres is the durable artifact store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"agegate/internal/postback/models"
	"agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, artifact *models.ConsentArtifact) error {
	query := `
		INSERT INTO consent_artifacts
			(id, link_id, subject_ref, action, issuer, key_id, signature_valid, reject_reason, raw_assertion, source_ip, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	var linkID any
	if !artifact.LinkID.IsNil() {
		linkID = artifact.LinkID.String()
	}
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(artifact.ID),
		linkID,
		artifact.SubjectRef,
		string(artifact.Action),
		artifact.Issuer,
		artifact.KeyID,
		artifact.SignatureValid,
		nullableString(artifact.RejectReason),
		artifact.RawAssertion,
		nullableString(artifact.SourceIP),
		artifact.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert consent artifact: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.ArtifactID) (*models.ConsentArtifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, link_id, subject_ref, action, issuer, key_id, signature_valid, reject_reason, raw_assertion, source_ip, received_at
		FROM consent_artifacts
		WHERE id = $1
	`, uuid.UUID(id))

	artifact, err := scanArtifact(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return artifact, err
}

func (s *Store) ListByLink(ctx context.Context, linkID domain.LinkID) ([]*models.ConsentArtifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, link_id, subject_ref, action, issuer, key_id, signature_valid, reject_reason, raw_assertion, source_ip, received_at
		FROM consent_artifacts
		WHERE link_id = $1
		ORDER BY received_at
	`, uuid.UUID(linkID))
	if err != nil {
		return nil, fmt.Errorf("list consent artifacts: %w", err)
	}
	defer rows.Close()

	var out []*models.ConsentArtifact
	for rows.Next() {
		artifact, err := scanArtifact(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, artifact)
	}
	return out, rows.Err()
}

func scanArtifact(scan func(...any) error) (*models.ConsentArtifact, error) {
	var (
		artifact     models.ConsentArtifact
		id           uuid.UUID
		linkID       sql.NullString
		action       string
		rejectReason sql.NullString
		sourceIP     sql.NullString
	)
	err := scan(&id, &linkID, &artifact.SubjectRef, &action, &artifact.Issuer, &artifact.KeyID,
		&artifact.SignatureValid, &rejectReason, &artifact.RawAssertion, &sourceIP, &artifact.ReceivedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan consent artifact: %w", err)
	}

	artifact.ID = domain.ArtifactID(id)
	artifact.Action = models.PostbackAction(action)
	artifact.RejectReason = rejectReason.String
	artifact.SourceIP = sourceIP.String
	if linkID.Valid {
		parsed, err := domain.ParseLinkID(linkID.String)
		if err != nil {
			return nil, fmt.Errorf("parse stored link id: %w", err)
		}
		artifact.LinkID = parsed
	}
	return &artifact, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
