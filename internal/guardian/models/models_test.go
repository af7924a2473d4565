package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from LinkStatus
		to   LinkStatus
		ok   bool
	}{
		{"awaiting to guardian_verified", LinkStatusAwaitingGuardian, LinkStatusGuardianVerified, true},
		{"awaiting to denied, underage guardian", LinkStatusAwaitingGuardian, LinkStatusDenied, true},
		{"awaiting to approved skips verification", LinkStatusAwaitingGuardian, LinkStatusApproved, false},
		{"awaiting to expired", LinkStatusAwaitingGuardian, LinkStatusExpired, true},
		{"guardian_verified to approved", LinkStatusGuardianVerified, LinkStatusApproved, true},
		{"guardian_verified to denied", LinkStatusGuardianVerified, LinkStatusDenied, true},
		{"guardian_verified to expired", LinkStatusGuardianVerified, LinkStatusExpired, true},
		{"guardian_verified back to awaiting", LinkStatusGuardianVerified, LinkStatusAwaitingGuardian, false},
		{"approved to denied, consent revoked", LinkStatusApproved, LinkStatusDenied, true},
		{"approved to expired", LinkStatusApproved, LinkStatusExpired, false},
		{"approved to guardian_verified", LinkStatusApproved, LinkStatusGuardianVerified, false},
		{"denied stays denied", LinkStatusDenied, LinkStatusApproved, false},
		{"denied to expired", LinkStatusDenied, LinkStatusExpired, false},
		{"expired stays expired", LinkStatusExpired, LinkStatusDenied, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, LinkStatusAwaitingGuardian.IsTerminal())
	assert.False(t, LinkStatusGuardianVerified.IsTerminal())
	assert.True(t, LinkStatusApproved.IsTerminal())
	assert.True(t, LinkStatusDenied.IsTerminal())
	assert.True(t, LinkStatusExpired.IsTerminal())
}
