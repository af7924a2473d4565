package models

import (
	"time"

	"agegate/pkg/domain"
)

// PostbackAction is the decision the consent system reports.
type PostbackAction string

const (
	ActionGranted PostbackAction = "granted"
	ActionDenied  PostbackAction = "denied"
	// ActionRevoked withdraws consent granted earlier, un-approving the link.
	ActionRevoked PostbackAction = "revoked"
)

// Valid reports whether the action is one this service understands.
func (a PostbackAction) Valid() bool {
	return a == ActionGranted || a == ActionDenied || a == ActionRevoked
}

// ConsentArtifact is the immutable record of one received postback.
//
// Artifacts are recorded unconditionally: an invalid signature, a wrong
// audience, or an unknown link still produce a row. SignatureValid and
// RejectReason carry the verdict; the raw assertion is retained for forensic
// review.
type ConsentArtifact struct {
	ID domain.ArtifactID
	// LinkID is the consent link the artifact claims to concern. Zero when
	// the payload was too broken to name one.
	LinkID domain.LinkID
	// SubjectRef is the consent system's opaque reference for the guardian.
	// Never an identity document value.
	SubjectRef     string
	Action         PostbackAction
	Issuer         string
	KeyID          string
	SignatureValid bool
	RejectReason   string
	// RawAssertion is the postback JWT exactly as received.
	RawAssertion string
	SourceIP     string
	ReceivedAt   time.Time
}
