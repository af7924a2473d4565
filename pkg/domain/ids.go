// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "agegate/pkg/domain-errors"
)

// Distinct ID types. The compiler prevents passing a SessionID where a LinkID
// is expected, which matters here because a guardian consent link references
// two sessions of identical shape.
type (
	SessionID  uuid.UUID
	LinkID     uuid.UUID
	ArtifactID uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseSessionID(s string) (SessionID, error) {
	id, err := parseUUID(s, "session ID")
	return SessionID(id), err
}

func ParseLinkID(s string) (LinkID, error) {
	id, err := parseUUID(s, "link ID")
	return LinkID(id), err
}

func ParseArtifactID(s string) (ArtifactID, error) {
	id, err := parseUUID(s, "artifact ID")
	return ArtifactID(id), err
}

// New constructors for freshly minted identifiers.

func NewSessionID() SessionID   { return SessionID(uuid.New()) }
func NewLinkID() LinkID         { return LinkID(uuid.New()) }
func NewArtifactID() ArtifactID { return ArtifactID(uuid.New()) }

// String methods - for logging and debugging.

func (id SessionID) String() string  { return uuid.UUID(id).String() }
func (id LinkID) String() string     { return uuid.UUID(id).String() }
func (id ArtifactID) String() string { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id SessionID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id LinkID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ArtifactID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// parseUUID is the shared validation logic. Nil UUIDs are rejected here
// because no API in this service hands out nil identifiers.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return id, nil
}
