// Package verifier checks consent postbacks: a shared-secret transport check
// first, then the RS256 assertion against the pinned key set.
package verifier

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"agegate/internal/postback/jwks"
	"agegate/internal/postback/models"
	dErrors "agegate/pkg/domain-errors"
)

// Claims is the postback assertion claim set.
type Claims struct {
	LinkID     string `json:"link_id"`
	SubjectRef string `json:"subject_ref"`
	Action     string `json:"action"`
	jwt.RegisteredClaims
}

// Verifier validates postbacks. The shared secret gates the endpoint before
// any signature work; the JWT check establishes authenticity.
type Verifier struct {
	secretDigest [sha256.Size]byte
	secretSet    bool
	keys         *jwks.KeySet
	issuer       string
	audience     string
	now          func() time.Time
}

// New builds a Verifier. An empty shared secret closes the gate entirely,
// mirroring an empty key set: nothing passes until the secret is configured.
func New(sharedSecret string, keys *jwks.KeySet, issuer, audience string) *Verifier {
	return &Verifier{
		secretDigest: sha256.Sum256([]byte(sharedSecret)),
		secretSet:    sharedSecret != "",
		keys:         keys,
		issuer:       issuer,
		audience:     audience,
		now:          time.Now,
	}
}

// WithClock overrides the time source, for expiry tests.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// CheckSecret compares the presented secret in constant time. Both sides are
// hashed first so the comparison length never depends on the input. With no
// secret configured every check fails.
func (v *Verifier) CheckSecret(presented string) bool {
	digest := sha256.Sum256([]byte(presented))
	match := subtle.ConstantTimeCompare(digest[:], v.secretDigest[:]) == 1
	return v.secretSet && match
}

// VerifyAssertion validates the postback JWT: RS256 only, signed by a pinned
// key, issuer and audience bound to the consent system, not expired.
//
// Errors carry the rejection category: CodeSignature for key and signature
// problems, CodeAudience for audience mismatch, CodeInvalidInput for a
// structurally broken assertion.
func (v *Verifier) VerifyAssertion(raw string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)

	var claims Claims
	token, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, dErrors.New(dErrors.CodeSignature, "assertion names no key ID")
		}
		key, ok := v.keys.Lookup(kid)
		if !ok {
			return nil, dErrors.New(dErrors.CodeSignature, "assertion signed by unpinned key")
		}
		return key, nil
	})
	if err != nil {
		return &claims, classifyError(err)
	}
	if !token.Valid {
		return &claims, dErrors.New(dErrors.CodeSignature, "assertion did not validate")
	}

	if !models.PostbackAction(claims.Action).Valid() {
		return &claims, dErrors.New(dErrors.CodeInvalidInput, "unknown postback action")
	}
	if claims.LinkID == "" {
		return &claims, dErrors.New(dErrors.CodeInvalidInput, "assertion names no consent link")
	}
	return &claims, nil
}

// classifyError maps jwt parser failures onto rejection categories so audit
// records say why an artifact was refused.
func classifyError(err error) error {
	switch {
	case dErrors.HasCode(err, dErrors.CodeSignature):
		return err
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return dErrors.Wrap(err, dErrors.CodeAudience, "assertion audience mismatch")
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return dErrors.Wrap(err, dErrors.CodeSignature, "assertion issuer mismatch")
	case errors.Is(err, jwt.ErrTokenExpired):
		return dErrors.Wrap(err, dErrors.CodeSignature, "assertion expired")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return dErrors.Wrap(err, dErrors.CodeSignature, "assertion signature invalid")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "assertion malformed")
	default:
		return dErrors.Wrap(err, dErrors.CodeSignature, "assertion did not validate")
	}
}
