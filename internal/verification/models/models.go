package models

import (
	"time"

	"agegate/pkg/domain"
)

// SessionStatus tracks the lifecycle of a verification session.
// A session mutates exactly once after creation: pending to one of the
// terminal states. The sweeper owns the pending-to-expired transition.
type SessionStatus string

const (
	SessionStatusPending  SessionStatus = "pending"
	SessionStatusVerified SessionStatus = "verified"
	SessionStatusFailed   SessionStatus = "failed"
	SessionStatusExpired  SessionStatus = "expired"
)

// IsTerminal reports whether the status admits no further transition.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusVerified || s == SessionStatusFailed || s == SessionStatusExpired
}

// Purpose distinguishes why a session was started. A guardian session runs
// the identical protocol; the purpose only controls what happens after the
// outcome is known.
type Purpose string

const (
	PurposeSelf     Purpose = "self"
	PurposeGuardian Purpose = "guardian"
)

// VerificationSession is the durable record of one verification attempt.
//
// VerifiedAge is the only identity-derived field ever persisted. The date of
// birth and raw identity token contents are consumed in-process during the
// callback and never written anywhere.
type VerificationSession struct {
	ID       domain.SessionID
	WidgetID domain.WidgetID
	Provider domain.Provider
	Purpose  Purpose
	// LinkID is set for guardian sessions only and points at the consent
	// link the guardian is verifying for.
	LinkID      domain.LinkID
	Status      SessionStatus
	VerifiedAge *int
	// FailureReason records why a session failed, for audit queries.
	// Never contains claim values.
	FailureReason string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// PendingSession is the transient session-store entry keyed by state token.
// It holds the PKCE verifier between initiate and callback and is consumed
// exactly once on redemption.
type PendingSession struct {
	SessionID domain.SessionID
	Verifier  string
	WidgetID  domain.WidgetID
	Provider  domain.Provider
	Purpose   Purpose
	LinkID    domain.LinkID
	CreatedAt time.Time
}
