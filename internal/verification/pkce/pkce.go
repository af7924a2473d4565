// Package pkce implements Proof Key for Code Exchange (RFC 7636) primitives
// and opaque state token generation for the OAuth redirect flow.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	dErrors "agegate/pkg/domain-errors"
)

// MethodS256 is the only challenge method this service supports. Plain
// challenges defeat the purpose of PKCE and are rejected by both providers.
const MethodS256 = "S256"

// verifierBytes yields 43 base64url characters, the RFC 7636 minimum.
const verifierBytes = 32

// Challenge is a transient PKCE pair. The verifier is held server-side in the
// session store; only the challenge crosses the redirect.
type Challenge struct {
	Verifier  string
	Challenge string
	Method    string
}

// Generate produces a fresh high-entropy verifier and its S256 challenge.
func Generate() (Challenge, error) {
	buf := make([]byte, verifierBytes)
	if _, err := rand.Read(buf); err != nil {
		return Challenge{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not generate PKCE verifier")
	}
	verifier := base64.RawURLEncoding.EncodeToString(buf)

	sum := sha256.Sum256([]byte(verifier))
	return Challenge{
		Verifier:  verifier,
		Challenge: base64.RawURLEncoding.EncodeToString(sum[:]),
		Method:    MethodS256,
	}, nil
}

// NewStateToken produces an opaque anti-CSRF token binding the provider
// callback to the session that initiated it.
func NewStateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate state token")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
