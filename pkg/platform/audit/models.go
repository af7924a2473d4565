package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention. Examples:
	// consent decisions, guardian link transitions, postback artifacts.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring and
	// forensics. Examples: rejected postbacks, rate limit hits, exchange
	// failures.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled or aggregated with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
//
// Invariant: no field of this struct ever carries a date of birth, an
// identity token, or any other raw identity document content. Sessions are
// referenced by ID; outcomes by decision strings.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// SessionID references the verification session the event concerns.
	SessionID string
	// LinkID references the guardian consent link, when applicable.
	LinkID string
	// ArtifactID references the consent artifact, when applicable.
	ArtifactID string
	WidgetID   string
	Provider   string
	Action     string
	Decision   string
	Reason     string
	// RequestID is the correlation ID from HTTP request context.
	RequestID string
	// DeviceName is a coarse human-readable device description derived from
	// the User-Agent header. Never a fingerprint.
	DeviceName string
	// SourceIP is recorded for postback and rate limit events only.
	SourceIP string
}

// AuditEvent names every action this service audits.
type AuditEvent string

const (
	// Verification session events
	EventSessionInitiated AuditEvent = "session_initiated"
	EventSessionVerified  AuditEvent = "session_verified"
	EventSessionFailed    AuditEvent = "session_failed"
	EventSessionExpired   AuditEvent = "session_expired"
	EventExchangeFailed   AuditEvent = "exchange_failed"
	EventClaimsRejected   AuditEvent = "claims_rejected"
	EventTokenIssued      AuditEvent = "token_issued"

	// Guardian consent link events
	EventLinkCreated      AuditEvent = "guardian_link_created"
	EventGuardianVerified AuditEvent = "guardian_verified"
	EventLinkApproved     AuditEvent = "guardian_link_approved"
	EventLinkDenied       AuditEvent = "guardian_link_denied"
	EventLinkRevoked      AuditEvent = "guardian_link_revoked"
	EventLinkExpired      AuditEvent = "guardian_link_expired"
	EventDuplicateIgnored AuditEvent = "duplicate_ignored"

	// Postback events
	EventPostbackRecorded AuditEvent = "postback_recorded"
	EventPostbackRejected AuditEvent = "postback_rejected"

	// Rate limit events
	EventRateLimitExceeded AuditEvent = "rate_limit_exceeded"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventSessionInitiated: CategoryOperations,
	EventSessionVerified:  CategoryCompliance,
	EventSessionFailed:    CategoryCompliance,
	EventSessionExpired:   CategoryOperations,
	EventExchangeFailed:   CategorySecurity,
	EventClaimsRejected:   CategorySecurity,
	EventTokenIssued:      CategoryOperations,

	EventLinkCreated:      CategoryCompliance,
	EventGuardianVerified: CategoryCompliance,
	EventLinkApproved:     CategoryCompliance,
	EventLinkDenied:       CategoryCompliance,
	EventLinkRevoked:      CategoryCompliance,
	EventLinkExpired:      CategoryCompliance,
	EventDuplicateIgnored: CategoryOperations,

	EventPostbackRecorded: CategoryCompliance,
	EventPostbackRejected: CategorySecurity,

	EventRateLimitExceeded: CategorySecurity,
}

// Category returns the category for the event, defaulting to operations for
// unknown actions so nothing is silently dropped by category routing.
func (e AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}

// String returns the string representation of the audit event.
func (e AuditEvent) String() string { return string(e) }

// Store is the append-only persistence contract for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
