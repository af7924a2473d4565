// Package service implements the guardian consent flow: a minor's failed
// verification opens a consent link, a guardian verifies their own age
// against it, and an explicit approve or deny closes it.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"agegate/internal/guardian/models"
	"agegate/internal/platform/metrics"
	"agegate/internal/platform/middleware"
	vmodels "agegate/internal/verification/models"
	"agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
	audit "agegate/pkg/platform/audit"
	"agegate/pkg/platform/sentinel"
)

// LinkStore is the consent link repository the service drives.
type LinkStore interface {
	Create(ctx context.Context, link *models.GuardianConsentLink) error
	Get(ctx context.Context, id domain.LinkID) (*models.GuardianConsentLink, error)
	AttachGuardian(ctx context.Context, id domain.LinkID, guardianSessionID domain.SessionID) error
	Transition(ctx context.Context, id domain.LinkID, from, to models.LinkStatus, decidedAt time.Time) error
	ExpireStale(ctx context.Context, now time.Time) ([]*models.GuardianConsentLink, error)
}

// SessionOutcomes is the slice of the session store this service needs: it
// fails a minor's session when the consent window closes without approval.
type SessionOutcomes interface {
	MarkOutcome(ctx context.Context, id domain.SessionID, status vmodels.SessionStatus, verifiedAge *int, reason string) error
}

// Auditor records compliance events.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	links    LinkStore
	sessions SessionOutcomes
	auditor  Auditor
	metrics  *metrics.Metrics
	logger   *slog.Logger
	linkTTL  time.Duration
	now      func() time.Time
}

func New(links LinkStore, sessions SessionOutcomes, auditor Auditor, m *metrics.Metrics, logger *slog.Logger, linkTTL time.Duration) *Service {
	return &Service{
		links:    links,
		sessions: sessions,
		auditor:  auditor,
		metrics:  m,
		logger:   logger,
		linkTTL:  linkTTL,
		now:      time.Now,
	}
}

// WithClock overrides the time source, for expiry tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateLink opens a consent link for a minor's session. Called by the
// verification flow when a below-threshold outcome lands.
func (s *Service) CreateLink(ctx context.Context, minorSessionID domain.SessionID, widgetID domain.WidgetID) (*models.GuardianConsentLink, error) {
	now := s.now()
	link := &models.GuardianConsentLink{
		ID:             domain.NewLinkID(),
		MinorSessionID: minorSessionID,
		WidgetID:       widgetID,
		Status:         models.LinkStatusAwaitingGuardian,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.linkTTL),
	}
	if err := s.links.Create(ctx, link); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not create consent link")
	}

	s.audit(ctx, audit.Event{
		Action:    string(audit.EventLinkCreated),
		SessionID: minorSessionID.String(),
		LinkID:    link.ID.String(),
		WidgetID:  widgetID.String(),
	})
	return link, nil
}

// Get returns the link for status polling.
func (s *Service) Get(ctx context.Context, id domain.LinkID) (*models.GuardianConsentLink, error) {
	link, err := s.links.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "consent link not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load consent link")
	}
	return link, nil
}

// OnGuardianVerified applies a guardian's verification outcome to the link.
// An adult guardian moves the link to guardian_verified; a guardian who is
// themselves below the threshold closes it as denied. Repeat completions
// against an already-advanced link are audited no-ops.
func (s *Service) OnGuardianVerified(ctx context.Context, linkID domain.LinkID, guardianSessionID domain.SessionID, guardianIsAdult bool) error {
	if !guardianIsAdult {
		return s.denyUnderageGuardian(ctx, linkID, guardianSessionID)
	}

	err := s.links.AttachGuardian(ctx, linkID, guardianSessionID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "consent link not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		s.audit(ctx, audit.Event{
			Action:    string(audit.EventDuplicateIgnored),
			SessionID: guardianSessionID.String(),
			LinkID:    linkID.String(),
			Reason:    "guardian_already_verified",
		})
		return nil
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not attach guardian")
	}

	s.audit(ctx, audit.Event{
		Action:    string(audit.EventGuardianVerified),
		SessionID: guardianSessionID.String(),
		LinkID:    linkID.String(),
	})
	return nil
}

func (s *Service) denyUnderageGuardian(ctx context.Context, linkID domain.LinkID, guardianSessionID domain.SessionID) error {
	err := s.links.Transition(ctx, linkID, models.LinkStatusAwaitingGuardian, models.LinkStatusDenied, s.now())
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "consent link not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		s.audit(ctx, audit.Event{
			Action:    string(audit.EventDuplicateIgnored),
			SessionID: guardianSessionID.String(),
			LinkID:    linkID.String(),
			Reason:    "link_no_longer_awaiting",
		})
		return nil
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not deny consent link")
	}

	s.metrics.GuardianDecisions.WithLabelValues("denied").Inc()
	s.audit(ctx, audit.Event{
		Action:    string(audit.EventLinkDenied),
		SessionID: guardianSessionID.String(),
		LinkID:    linkID.String(),
		Decision:  string(models.LinkStatusDenied),
		Reason:    "guardian_below_threshold",
	})
	return nil
}

// Decide records the guardian's explicit approve or deny. Verification alone
// never approves: the guardian must act. A repeat of the same decision is an
// audited no-op; a conflicting repeat is a conflict.
func (s *Service) Decide(ctx context.Context, linkID domain.LinkID, approve bool) error {
	target := models.LinkStatusDenied
	if approve {
		target = models.LinkStatusApproved
	}

	err := s.links.Transition(ctx, linkID, models.LinkStatusGuardianVerified, target, s.now())
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "consent link not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return s.decideConflict(ctx, linkID, target)
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not record decision")
	}

	s.metrics.GuardianDecisions.WithLabelValues(string(target)).Inc()
	action := audit.EventLinkDenied
	if approve {
		action = audit.EventLinkApproved
	}
	s.audit(ctx, audit.Event{
		Action:   string(action),
		LinkID:   linkID.String(),
		Decision: string(target),
	})
	return nil
}

// Revoke withdraws consent from an approved link, moving it to denied. Driven
// by a revocation postback from the consent system. Revoking an already-denied
// link is an audited no-op; anything else is a conflict.
func (s *Service) Revoke(ctx context.Context, linkID domain.LinkID) error {
	err := s.links.Transition(ctx, linkID, models.LinkStatusApproved, models.LinkStatusDenied, s.now())
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "consent link not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		link, gerr := s.links.Get(ctx, linkID)
		if gerr != nil {
			return dErrors.Wrap(gerr, dErrors.CodeInternal, "could not load consent link")
		}
		if link.Status == models.LinkStatusDenied {
			s.audit(ctx, audit.Event{
				Action: string(audit.EventDuplicateIgnored),
				LinkID: linkID.String(),
				Reason: "consent_already_withdrawn",
			})
			return nil
		}
		return dErrors.New(dErrors.CodeConflict, "consent link is not approved")
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not revoke consent link")
	}

	s.metrics.GuardianDecisions.WithLabelValues("revoked").Inc()
	s.audit(ctx, audit.Event{
		Action:   string(audit.EventLinkRevoked),
		LinkID:   linkID.String(),
		Decision: string(models.LinkStatusDenied),
		Reason:   "consent_revoked",
	})
	return nil
}

// decideConflict separates "same decision again" from genuinely wrong states.
func (s *Service) decideConflict(ctx context.Context, linkID domain.LinkID, target models.LinkStatus) error {
	link, err := s.links.Get(ctx, linkID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not load consent link")
	}

	if link.Status == target {
		s.audit(ctx, audit.Event{
			Action: string(audit.EventDuplicateIgnored),
			LinkID: linkID.String(),
			Reason: "decision_already_recorded",
		})
		return nil
	}
	if link.Status == models.LinkStatusAwaitingGuardian {
		return dErrors.New(dErrors.CodeInvalidInput, "guardian has not verified yet")
	}
	return dErrors.New(dErrors.CodeConflict, "consent link already decided")
}

// ExpireStale closes every overdue link and fails the minor sessions still
// waiting on them. Safe to run repeatedly; an already-expired link matches
// nothing.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.links.ExpireStale(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "could not expire consent links")
	}

	for _, link := range expired {
		// The minor session may already be terminal (it usually is, marked
		// failed when the link was created); invalid state is expected here.
		err := s.sessions.MarkOutcome(ctx, link.MinorSessionID, vmodels.SessionStatusFailed, nil, "guardian_link_expired")
		if err != nil && !errors.Is(err, sentinel.ErrInvalidState) {
			s.logger.Error("could not fail minor session for expired link",
				"link_id", link.ID.String(),
				"session_id", link.MinorSessionID.String(),
				"error", err,
			)
		}

		s.metrics.GuardianDecisions.WithLabelValues(string(models.LinkStatusExpired)).Inc()
		s.audit(ctx, audit.Event{
			Action:    string(audit.EventLinkExpired),
			SessionID: link.MinorSessionID.String(),
			LinkID:    link.ID.String(),
			WidgetID:  link.WidgetID.String(),
			Decision:  string(models.LinkStatusExpired),
		})
	}
	return len(expired), nil
}

// audit emits without letting audit failures disturb the flow.
func (s *Service) audit(ctx context.Context, event audit.Event) {
	event.RequestID = middleware.GetRequestID(ctx)
	event.DeviceName = middleware.GetDeviceName(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.Warn("audit emit failed", "action", event.Action, "error", err)
	}
}
