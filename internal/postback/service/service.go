// Package service receives consent postbacks. Every postback leaves an
// artifact, valid or not; only one that clears the shared secret and the
// signature checks moves the consent link.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"agegate/internal/platform/metrics"
	"agegate/internal/platform/middleware"
	"agegate/internal/postback/models"
	"agegate/internal/postback/verifier"
	"agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
	audit "agegate/pkg/platform/audit"
	"agegate/pkg/platform/sentinel"
)

// ArtifactStore is the append-only artifact repository.
type ArtifactStore interface {
	Create(ctx context.Context, artifact *models.ConsentArtifact) error
	Get(ctx context.Context, id domain.ArtifactID) (*models.ConsentArtifact, error)
	ListByLink(ctx context.Context, linkID domain.LinkID) ([]*models.ConsentArtifact, error)
}

// AssertionVerifier validates the postback assertion.
type AssertionVerifier interface {
	CheckSecret(presented string) bool
	VerifyAssertion(raw string) (*verifier.Claims, error)
}

// LinkDecider applies a consented decision to the guardian link.
type LinkDecider interface {
	Decide(ctx context.Context, linkID domain.LinkID, approve bool) error
	Revoke(ctx context.Context, linkID domain.LinkID) error
}

// Auditor records compliance events.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	artifacts ArtifactStore
	verifier  AssertionVerifier
	guardian  LinkDecider
	auditor   Auditor
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func New(artifacts ArtifactStore, v AssertionVerifier, guardian LinkDecider, auditor Auditor, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		artifacts: artifacts,
		verifier:  v,
		guardian:  guardian,
		auditor:   auditor,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Result reports what happened to a received postback.
type Result struct {
	ArtifactID     domain.ArtifactID
	SignatureValid bool
	Applied        bool
}

// Receive handles one postback. The shared secret is the first check; a
// mismatch skips all signature work but the postback is still recorded as a
// rejected artifact, like every other verification failure.
func (s *Service) Receive(ctx context.Context, rawAssertion, presentedSecret, sourceIP string) (*Result, error) {
	var (
		claims    *verifier.Claims
		verifyErr error
	)
	if !s.verifier.CheckSecret(presentedSecret) {
		verifyErr = dErrors.New(dErrors.CodeUnauthorized, "postback secret mismatch")
	} else {
		claims, verifyErr = s.verifier.VerifyAssertion(rawAssertion)
	}

	artifact := &models.ConsentArtifact{
		ID:           domain.NewArtifactID(),
		RawAssertion: rawAssertion,
		SourceIP:     sourceIP,
		ReceivedAt:   s.now(),
	}
	if claims != nil {
		artifact.SubjectRef = claims.SubjectRef
		artifact.Action = models.PostbackAction(claims.Action)
		artifact.Issuer = claims.Issuer
		if linkID, err := domain.ParseLinkID(claims.LinkID); err == nil {
			artifact.LinkID = linkID
		}
	}
	if verifyErr != nil {
		artifact.RejectReason = string(dErrors.CodeOf(verifyErr))
	} else {
		artifact.SignatureValid = true
	}

	if err := s.artifacts.Create(ctx, artifact); err != nil {
		// Without the artifact there is no compliance record; refuse the
		// postback so the sender retries.
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not record consent artifact")
	}

	if verifyErr != nil {
		s.metrics.Postbacks.WithLabelValues("false").Inc()
		s.audit(ctx, audit.Event{
			Action:     string(audit.EventPostbackRejected),
			ArtifactID: artifact.ID.String(),
			LinkID:     artifact.LinkID.String(),
			Reason:     artifact.RejectReason,
			SourceIP:   sourceIP,
		})
		return &Result{ArtifactID: artifact.ID, SignatureValid: false}, verifyErr
	}

	s.metrics.Postbacks.WithLabelValues("true").Inc()
	s.audit(ctx, audit.Event{
		Action:     string(audit.EventPostbackRecorded),
		ArtifactID: artifact.ID.String(),
		LinkID:     artifact.LinkID.String(),
		Decision:   string(artifact.Action),
		SourceIP:   sourceIP,
	})

	applied, err := s.apply(ctx, artifact)
	if err != nil {
		return &Result{ArtifactID: artifact.ID, SignatureValid: true}, err
	}
	return &Result{ArtifactID: artifact.ID, SignatureValid: true, Applied: applied}, nil
}

// apply moves the link. An unknown link is not an error for the sender: the
// artifact is already recorded, which is the contract.
func (s *Service) apply(ctx context.Context, artifact *models.ConsentArtifact) (bool, error) {
	var err error
	switch artifact.Action {
	case models.ActionGranted:
		err = s.guardian.Decide(ctx, artifact.LinkID, true)
	case models.ActionDenied:
		err = s.guardian.Decide(ctx, artifact.LinkID, false)
	case models.ActionRevoked:
		err = s.guardian.Revoke(ctx, artifact.LinkID)
	}
	switch {
	case err == nil:
		return true, nil
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		s.logger.Warn("postback names unknown consent link",
			"artifact_id", artifact.ID.String(),
			"link_id", artifact.LinkID.String(),
		)
		return false, nil
	default:
		return false, err
	}
}

// Artifact returns one recorded artifact.
func (s *Service) Artifact(ctx context.Context, id domain.ArtifactID) (*models.ConsentArtifact, error) {
	artifact, err := s.artifacts.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "consent artifact not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load consent artifact")
	}
	return artifact, nil
}

// ArtifactsForLink returns every artifact recorded against a link, rejects
// included.
func (s *Service) ArtifactsForLink(ctx context.Context, linkID domain.LinkID) ([]*models.ConsentArtifact, error) {
	artifacts, err := s.artifacts.ListByLink(ctx, linkID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not list consent artifacts")
	}
	return artifacts, nil
}

func (s *Service) audit(ctx context.Context, event audit.Event) {
	event.RequestID = middleware.GetRequestID(ctx)
	event.DeviceName = middleware.GetDeviceName(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.Warn("audit emit failed", "action", event.Action, "error", err)
	}
}
