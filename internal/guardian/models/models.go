package models

import (
	"time"

	"agegate/pkg/domain"
)

// LinkStatus tracks the guardian consent state machine:
//
//	awaiting_guardian -> guardian_verified -> approved | denied
//
// Any non-terminal state may move to expired. A guardian who is themselves
// below the threshold denies the link straight from awaiting_guardian, and a
// consent revocation withdraws an approved link to denied. Denied and expired
// links never transition again.
type LinkStatus string

const (
	LinkStatusAwaitingGuardian LinkStatus = "awaiting_guardian"
	LinkStatusGuardianVerified LinkStatus = "guardian_verified"
	LinkStatusApproved         LinkStatus = "approved"
	LinkStatusDenied           LinkStatus = "denied"
	LinkStatusExpired          LinkStatus = "expired"
)

// IsTerminal reports whether the link is decided or expired. The sweeper
// leaves terminal links alone; a revocation postback may still withdraw an
// approved link.
func (s LinkStatus) IsTerminal() bool {
	return s == LinkStatusApproved || s == LinkStatusDenied || s == LinkStatusExpired
}

// CanTransitionTo encodes the legal edges of the state machine.
func (s LinkStatus) CanTransitionTo(next LinkStatus) bool {
	switch next {
	case LinkStatusGuardianVerified:
		return s == LinkStatusAwaitingGuardian
	case LinkStatusApproved:
		return s == LinkStatusGuardianVerified
	case LinkStatusDenied:
		return s == LinkStatusAwaitingGuardian ||
			s == LinkStatusGuardianVerified ||
			s == LinkStatusApproved
	case LinkStatusExpired:
		return !s.IsTerminal()
	default:
		return false
	}
}

// GuardianConsentLink ties a minor's failed verification to the guardian
// consent flow that can approve it.
type GuardianConsentLink struct {
	ID             domain.LinkID
	MinorSessionID domain.SessionID
	WidgetID       domain.WidgetID
	Status         LinkStatus
	// GuardianSessionID is set when a guardian completes their own
	// verification against this link.
	GuardianSessionID domain.SessionID
	CreatedAt         time.Time
	ExpiresAt         time.Time
	DecidedAt         *time.Time
}
