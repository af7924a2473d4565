package pkce

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	c, err := Generate()
	require.NoError(t, err)

	// RFC 7636 requires verifiers of at least 43 characters.
	assert.GreaterOrEqual(t, len(c.Verifier), 43)
	assert.Equal(t, MethodS256, c.Method)

	// The challenge must be the base64url-encoded SHA-256 of the verifier.
	sum := sha256.Sum256([]byte(c.Verifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), c.Challenge)
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		c, err := Generate()
		require.NoError(t, err)
		assert.False(t, seen[c.Verifier], "verifier repeated")
		seen[c.Verifier] = true
	}
}

func TestNewStateToken(t *testing.T) {
	a, err := NewStateToken()
	require.NoError(t, err)
	b, err := NewStateToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	// 32 random bytes encode to 43 base64url characters.
	assert.Len(t, a, 43)

	_, err = base64.RawURLEncoding.DecodeString(a)
	assert.NoError(t, err)
}
