package verifier

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agegate/internal/postback/jwks"
	"agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
)

const (
	testIssuer   = "https://consent.example"
	testAudience = "agegate-consent-client"
	testSecret   = "postback-shared-secret"
	testKid      = "consent-2026"
)

type fixture struct {
	verifier *Verifier
	key      *rsa.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	doc, err := json.Marshal(map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKid,
			"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}},
	})
	require.NoError(t, err)
	ks, err := jwks.Parse(doc)
	require.NoError(t, err)

	return &fixture{
		verifier: New(testSecret, ks, testIssuer, testAudience),
		key:      key,
	}
}

// sign builds an assertion, letting tests override individual claims.
func (f *fixture) sign(t *testing.T, kid string, mutate func(*Claims)) string {
	t.Helper()
	now := time.Now()
	claims := Claims{
		LinkID:     domain.NewLinkID().String(),
		SubjectRef: "subject-ref-123",
		Action:     "granted",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
		},
	}
	if mutate != nil {
		mutate(&claims)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func TestVerifyAssertion_Valid(t *testing.T) {
	f := newFixture(t)

	claims, err := f.verifier.VerifyAssertion(f.sign(t, testKid, nil))
	require.NoError(t, err)
	assert.Equal(t, "granted", claims.Action)
	assert.Equal(t, "subject-ref-123", claims.SubjectRef)
	assert.NotEmpty(t, claims.LinkID)
}

func TestVerifyAssertion_WrongAudience(t *testing.T) {
	f := newFixture(t)

	raw := f.sign(t, testKid, func(c *Claims) {
		c.Audience = jwt.ClaimStrings{"some-other-client"}
	})
	_, err := f.verifier.VerifyAssertion(raw)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAudience))
}

func TestVerifyAssertion_WrongIssuer(t *testing.T) {
	f := newFixture(t)

	raw := f.sign(t, testKid, func(c *Claims) {
		c.Issuer = "https://evil.example"
	})
	_, err := f.verifier.VerifyAssertion(raw)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeSignature))
}

func TestVerifyAssertion_Expired(t *testing.T) {
	f := newFixture(t)

	raw := f.sign(t, testKid, func(c *Claims) {
		c.IssuedAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-30 * time.Minute))
	})
	_, err := f.verifier.VerifyAssertion(raw)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeSignature))
}

func TestVerifyAssertion_UnpinnedKey(t *testing.T) {
	f := newFixture(t)

	_, err := f.verifier.VerifyAssertion(f.sign(t, "rotated-away", nil))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeSignature))
}

func TestVerifyAssertion_MissingKid(t *testing.T) {
	f := newFixture(t)

	_, err := f.verifier.VerifyAssertion(f.sign(t, "", nil))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeSignature))
}

func TestVerifyAssertion_WrongKeySameKid(t *testing.T) {
	f := newFixture(t)
	other := newFixture(t)

	// Signed by another key but claiming the pinned kid.
	_, err := f.verifier.VerifyAssertion(other.sign(t, testKid, nil))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeSignature))
}

func TestVerifyAssertion_HMACRejected(t *testing.T) {
	f := newFixture(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": testIssuer,
		"aud": testAudience,
		"exp": time.Now().Add(5 * time.Minute).Unix(),
	})
	token.Header["kid"] = testKid
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = f.verifier.VerifyAssertion(signed)
	assert.Error(t, err)
}

func TestVerifyAssertion_UnknownAction(t *testing.T) {
	f := newFixture(t)

	raw := f.sign(t, testKid, func(c *Claims) { c.Action = "escalate" })
	_, err := f.verifier.VerifyAssertion(raw)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestVerifyAssertion_MissingLink(t *testing.T) {
	f := newFixture(t)

	raw := f.sign(t, testKid, func(c *Claims) { c.LinkID = "" })
	_, err := f.verifier.VerifyAssertion(raw)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestVerifyAssertion_Garbage(t *testing.T) {
	f := newFixture(t)

	_, err := f.verifier.VerifyAssertion("not-a-jwt")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestCheckSecret(t *testing.T) {
	f := newFixture(t)

	assert.True(t, f.verifier.CheckSecret(testSecret))
	assert.False(t, f.verifier.CheckSecret("wrong"))
	assert.False(t, f.verifier.CheckSecret(""))
	// A near-miss of the right length fails too.
	assert.False(t, f.verifier.CheckSecret(testSecret[:len(testSecret)-1]+"x"))
}

// TestCheckSecret_MismatchAnyPosition flips each byte of the secret in turn:
// a same-length candidate must fail no matter where it diverges.
func TestCheckSecret_MismatchAnyPosition(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < len(testSecret); i++ {
		candidate := []byte(testSecret)
		candidate[i] ^= 0x01
		assert.False(t, f.verifier.CheckSecret(string(candidate)), "mismatch at byte %d accepted", i)
	}
}

func TestCheckSecret_NoSecretConfigured(t *testing.T) {
	v := New("", new(jwks.KeySet), testIssuer, testAudience)

	// The gate stays closed: in particular an empty presented secret does
	// not match the empty configuration.
	assert.False(t, v.CheckSecret(""))
	assert.False(t, v.CheckSecret(testSecret))
}
