// Package service orchestrates the verification flow: initiate against a
// provider, redeem the callback, reduce identity claims to an age, record the
// outcome, and mint the widget-scoped verification token.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	gmodels "agegate/internal/guardian/models"
	"agegate/internal/platform/metrics"
	"agegate/internal/platform/middleware"
	"agegate/internal/verification/models"
	"agegate/internal/verification/oauth"
	"agegate/internal/verification/pkce"
	"agegate/internal/verification/token"
	"agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
	audit "agegate/pkg/platform/audit"
	"agegate/pkg/platform/sentinel"
)

// PendingStore holds pending sessions between initiate and callback.
type PendingStore interface {
	Put(ctx context.Context, stateToken string, pending *models.PendingSession, ttl time.Duration) error
	Redeem(ctx context.Context, stateToken string) (*models.PendingSession, error)
}

// SessionStore is the durable session repository.
type SessionStore interface {
	Create(ctx context.Context, session *models.VerificationSession) error
	Get(ctx context.Context, id domain.SessionID) (*models.VerificationSession, error)
	MarkOutcome(ctx context.Context, id domain.SessionID, status models.SessionStatus, verifiedAge *int, reason string) error
	ExpireStale(ctx context.Context, now time.Time) ([]domain.SessionID, error)
}

// Exchanger runs the provider leg of the flow.
type Exchanger interface {
	AuthorizeURL(provider domain.Provider, stateToken string, challenge pkce.Challenge) (string, error)
	Exchange(ctx context.Context, provider domain.Provider, code, verifier string) (*oauth.TokenResponse, error)
}

// AgeExtractor reduces identity claims to an age. The date of birth never
// leaves the extractor.
type AgeExtractor interface {
	ExtractAge(ctx context.Context, provider domain.Provider, idToken, accessToken string, now time.Time) (int, error)
}

// TokenIssuer mints widget-scoped verification tokens.
type TokenIssuer interface {
	Issue(sessionID domain.SessionID, widgetID domain.WidgetID, isAdult bool) (string, error)
	Verify(tokenString string, widgetID domain.WidgetID) *token.Claims
}

// GuardianFlow is the consent side the verification flow feeds into.
type GuardianFlow interface {
	Get(ctx context.Context, id domain.LinkID) (*gmodels.GuardianConsentLink, error)
	CreateLink(ctx context.Context, minorSessionID domain.SessionID, widgetID domain.WidgetID) (*gmodels.GuardianConsentLink, error)
	OnGuardianVerified(ctx context.Context, linkID domain.LinkID, guardianSessionID domain.SessionID, guardianIsAdult bool) error
}

// Auditor records compliance events.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config carries the tunables the flow needs.
type Config struct {
	PendingSessionTTL time.Duration
	SessionTTL        time.Duration
	AdultAge          int
}

type Service struct {
	pending  PendingStore
	sessions SessionStore
	oauth    Exchanger
	claims   AgeExtractor
	tokens   TokenIssuer
	guardian GuardianFlow
	auditor  Auditor
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	cfg      Config
	now      func() time.Time
}

func New(pending PendingStore, sessions SessionStore, exchanger Exchanger, extractor AgeExtractor,
	tokens TokenIssuer, guardian GuardianFlow, auditor Auditor, m *metrics.Metrics,
	logger *slog.Logger, cfg Config) *Service {
	return &Service{
		pending:  pending,
		sessions: sessions,
		oauth:    exchanger,
		claims:   extractor,
		tokens:   tokens,
		guardian: guardian,
		auditor:  auditor,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("agegate/verification"),
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock overrides the time source, for expiry tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// BeginRequest starts a verification session.
type BeginRequest struct {
	WidgetID domain.WidgetID
	Provider domain.Provider
	Purpose  models.Purpose
	// LinkID is required when Purpose is guardian.
	LinkID domain.LinkID
}

// BeginResult carries what the widget needs to send the subject off.
type BeginResult struct {
	SessionID   domain.SessionID
	RedirectURL string
}

// Begin creates the pending session and builds the provider redirect.
func (s *Service) Begin(ctx context.Context, req BeginRequest) (*BeginResult, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Begin",
		trace.WithAttributes(
			attribute.String("provider", string(req.Provider)),
			attribute.String("purpose", string(req.Purpose)),
		))
	defer span.End()

	if req.Purpose == models.PurposeGuardian {
		link, err := s.guardian.Get(ctx, req.LinkID)
		if err != nil {
			return nil, err
		}
		if link.Status != gmodels.LinkStatusAwaitingGuardian {
			return nil, dErrors.New(dErrors.CodeConflict, "consent link is not awaiting a guardian")
		}
	}

	challenge, err := pkce.Generate()
	if err != nil {
		return nil, err
	}
	stateToken, err := pkce.NewStateToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &models.VerificationSession{
		ID:        domain.NewSessionID(),
		WidgetID:  req.WidgetID,
		Provider:  req.Provider,
		Purpose:   req.Purpose,
		LinkID:    req.LinkID,
		Status:    models.SessionStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}

	redirectURL, err := s.oauth.AuthorizeURL(req.Provider, stateToken, challenge)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not create session")
	}
	err = s.pending.Put(ctx, stateToken, &models.PendingSession{
		SessionID: session.ID,
		Verifier:  challenge.Verifier,
		WidgetID:  req.WidgetID,
		Provider:  req.Provider,
		Purpose:   req.Purpose,
		LinkID:    req.LinkID,
		CreatedAt: now,
	}, s.cfg.PendingSessionTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not store pending session")
	}

	span.SetAttributes(attribute.String("session_id", session.ID.String()))
	s.metrics.SessionsStarted.WithLabelValues(string(req.Provider), string(req.Purpose)).Inc()
	s.audit(ctx, audit.Event{
		Action:    string(audit.EventSessionInitiated),
		SessionID: session.ID.String(),
		WidgetID:  req.WidgetID.String(),
		Provider:  string(req.Provider),
	})

	return &BeginResult{SessionID: session.ID, RedirectURL: redirectURL}, nil
}

// CallbackResult is the outcome of a redeemed callback.
type CallbackResult struct {
	SessionID domain.SessionID
	Status    models.SessionStatus
	// Token is set on a verified self session.
	Token string
	// LinkID is set when a consent link is involved: freshly created for a
	// below-threshold self session, or carried through for a guardian session.
	LinkID domain.LinkID
}

// HandleCallback redeems the state token, exchanges the code, extracts the
// age, and records the outcome. The state token redeems exactly once; a
// replayed callback fails closed before any provider traffic.
func (s *Service) HandleCallback(ctx context.Context, stateToken, code string) (*CallbackResult, error) {
	ctx, span := s.tracer.Start(ctx, "verification.HandleCallback")
	defer span.End()

	pending, err := s.pending.Redeem(ctx, stateToken)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeProtocol, "unknown, expired, or already used state token")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not redeem state token")
	}
	span.SetAttributes(attribute.String("session_id", pending.SessionID.String()))

	tokens, err := s.oauth.Exchange(ctx, pending.Provider, code, pending.Verifier)
	if err != nil {
		s.failSession(ctx, pending, "exchange_failed", audit.EventExchangeFailed)
		return nil, err
	}

	age, err := s.claims.ExtractAge(ctx, pending.Provider, tokens.IDToken, tokens.AccessToken, s.now())
	if err != nil {
		s.failSession(ctx, pending, "claims_rejected", audit.EventClaimsRejected)
		return nil, err
	}

	isAdult := age >= s.cfg.AdultAge
	if pending.Purpose == models.PurposeGuardian {
		return s.completeGuardian(ctx, pending, age, isAdult)
	}
	return s.completeSelf(ctx, pending, age, isAdult)
}

// completeSelf lands a self session: adults get a token, minors get a
// consent link.
func (s *Service) completeSelf(ctx context.Context, pending *models.PendingSession, age int, isAdult bool) (*CallbackResult, error) {
	if isAdult {
		if err := s.markOutcome(ctx, pending, models.SessionStatusVerified, &age, ""); err != nil {
			return nil, err
		}
		s.audit(ctx, audit.Event{
			Action:    string(audit.EventSessionVerified),
			SessionID: pending.SessionID.String(),
			WidgetID:  pending.WidgetID.String(),
			Provider:  string(pending.Provider),
			Decision:  string(models.SessionStatusVerified),
		})

		signed, err := s.tokens.Issue(pending.SessionID, pending.WidgetID, true)
		if err != nil {
			return nil, err
		}
		s.metrics.TokensIssued.Inc()
		s.audit(ctx, audit.Event{
			Action:    string(audit.EventTokenIssued),
			SessionID: pending.SessionID.String(),
			WidgetID:  pending.WidgetID.String(),
		})
		return &CallbackResult{
			SessionID: pending.SessionID,
			Status:    models.SessionStatusVerified,
			Token:     signed,
		}, nil
	}

	// Below threshold: the session fails and the guardian flow opens. The
	// age itself is not persisted.
	if err := s.markOutcome(ctx, pending, models.SessionStatusFailed, nil, "below_threshold"); err != nil {
		return nil, err
	}
	s.audit(ctx, audit.Event{
		Action:    string(audit.EventSessionFailed),
		SessionID: pending.SessionID.String(),
		WidgetID:  pending.WidgetID.String(),
		Provider:  string(pending.Provider),
		Decision:  string(models.SessionStatusFailed),
		Reason:    "below_threshold",
	})

	link, err := s.guardian.CreateLink(ctx, pending.SessionID, pending.WidgetID)
	if err != nil {
		return nil, err
	}
	return &CallbackResult{
		SessionID: pending.SessionID,
		Status:    models.SessionStatusFailed,
		LinkID:    link.ID,
	}, nil
}

// completeGuardian lands a guardian session and feeds the outcome into the
// consent link.
func (s *Service) completeGuardian(ctx context.Context, pending *models.PendingSession, age int, isAdult bool) (*CallbackResult, error) {
	status := models.SessionStatusFailed
	reason := "below_threshold"
	var verifiedAge *int
	if isAdult {
		status = models.SessionStatusVerified
		reason = ""
		verifiedAge = &age
	}

	if err := s.markOutcome(ctx, pending, status, verifiedAge, reason); err != nil {
		return nil, err
	}
	action := audit.EventSessionFailed
	if isAdult {
		action = audit.EventSessionVerified
	}
	s.audit(ctx, audit.Event{
		Action:    string(action),
		SessionID: pending.SessionID.String(),
		LinkID:    pending.LinkID.String(),
		WidgetID:  pending.WidgetID.String(),
		Provider:  string(pending.Provider),
		Decision:  string(status),
		Reason:    reason,
	})

	if err := s.guardian.OnGuardianVerified(ctx, pending.LinkID, pending.SessionID, isAdult); err != nil {
		return nil, err
	}
	return &CallbackResult{
		SessionID: pending.SessionID,
		Status:    status,
		LinkID:    pending.LinkID,
	}, nil
}

// Get returns the session for status polling.
func (s *Service) Get(ctx context.Context, id domain.SessionID) (*models.VerificationSession, error) {
	session, err := s.sessions.Get(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load session")
	}
	return session, nil
}

// Validate checks a verification token for a widget. A nil result means not
// verified, with no further detail.
func (s *Service) Validate(tokenString string, widgetID domain.WidgetID) *token.Claims {
	return s.tokens.Verify(tokenString, widgetID)
}

// ExpireStale expires overdue pending sessions. Run by the sweeper.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.sessions.ExpireStale(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "could not expire sessions")
	}
	for _, id := range expired {
		s.audit(ctx, audit.Event{
			Action:    string(audit.EventSessionExpired),
			SessionID: id.String(),
			Decision:  string(models.SessionStatusExpired),
		})
	}
	return len(expired), nil
}

// markOutcome records a terminal status, translating a lost race into a
// conflict the handler can surface.
func (s *Service) markOutcome(ctx context.Context, pending *models.PendingSession, status models.SessionStatus, age *int, reason string) error {
	err := s.sessions.MarkOutcome(ctx, pending.SessionID, status, age, reason)
	switch {
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeConflict, "session already decided")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "session not found")
	case err != nil:
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not record session outcome")
	}
	s.metrics.SessionOutcomes.WithLabelValues(string(pending.Provider), string(status)).Inc()
	return nil
}

// failSession is best effort: the caller is already returning the primary
// error and a lost race here means another path decided first.
func (s *Service) failSession(ctx context.Context, pending *models.PendingSession, reason string, action audit.AuditEvent) {
	err := s.sessions.MarkOutcome(ctx, pending.SessionID, models.SessionStatusFailed, nil, reason)
	if err != nil && !errors.Is(err, sentinel.ErrInvalidState) {
		s.logger.Error("could not fail session",
			"session_id", pending.SessionID.String(),
			"reason", reason,
			"error", err,
		)
	}
	if err == nil {
		s.metrics.SessionOutcomes.WithLabelValues(string(pending.Provider), string(models.SessionStatusFailed)).Inc()
	}
	s.audit(ctx, audit.Event{
		Action:    string(action),
		SessionID: pending.SessionID.String(),
		WidgetID:  pending.WidgetID.String(),
		Provider:  string(pending.Provider),
		Reason:    reason,
	})
}

func (s *Service) audit(ctx context.Context, event audit.Event) {
	event.RequestID = middleware.GetRequestID(ctx)
	event.DeviceName = middleware.GetDeviceName(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.Warn("audit emit failed", "action", event.Action, "error", err)
	}
}
