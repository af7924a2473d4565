// Package token issues and verifies the short-lived signed assertions of a
// verification outcome that relying widgets consume.
package token

import (
	"crypto/sha256"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
)

// hkdfSalt namespaces the derivation so the root secret can seed other key
// families later without collisions.
const hkdfSalt = "age-verification"

// Claims is the verification token claim set. It asserts an outcome, never
// identity data: no age value, only the adult/minor boolean.
type Claims struct {
	IsAdult   bool   `json:"is_adult"`
	SessionID string `json:"session_id"`
	WidgetID  string `json:"widget_id"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies tokens. The signing key is derived per widget
// with HKDF, so there is no key table to store or rotate: possession of the
// root secret and the widget ID reproduces the key deterministically.
type Issuer struct {
	rootSecret []byte
	ttl        time.Duration
	issuer     string
	now        func() time.Time
}

// New builds an Issuer. The root secret is process-wide immutable
// configuration, read once at start.
func New(rootSecret string, ttl time.Duration) *Issuer {
	return &Issuer{
		rootSecret: []byte(rootSecret),
		ttl:        ttl,
		issuer:     "agegate",
		now:        time.Now,
	}
}

// WithClock overrides the time source, for expiry tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// widgetKey derives the per-widget HMAC key:
// HKDF-SHA256(rootSecret, salt="age-verification", info=widgetID).
func (i *Issuer) widgetKey(widgetID domain.WidgetID) ([]byte, error) {
	r := hkdf.New(sha256.New, i.rootSecret, []byte(hkdfSalt), []byte(widgetID))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not derive widget key")
	}
	return key, nil
}

// Issue mints a signed verification token scoped to the widget.
func (i *Issuer) Issue(sessionID domain.SessionID, widgetID domain.WidgetID, isAdult bool) (string, error) {
	key, err := i.widgetKey(widgetID)
	if err != nil {
		return "", err
	}

	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		IsAdult:   isAdult,
		SessionID: sessionID.String(),
		WidgetID:  widgetID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})

	signed, err := token.SignedString(key)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not sign verification token")
	}
	return signed, nil
}

// Verify validates signature, expiry, and widget binding. It never returns
// an error for a bad token: relying parties treat nil claims as "not
// verified" and nothing more.
func (i *Issuer) Verify(tokenString string, widgetID domain.WidgetID) *Claims {
	key, err := i.widgetKey(widgetID)
	if err != nil {
		return nil
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)

	var claims Claims
	parsed, err := parser.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil || !parsed.Valid {
		return nil
	}

	// The widget claim must match the caller-supplied widget. The signature
	// check already enforces this indirectly (keys differ per widget), but a
	// root-secret-free claim comparison is cheap and explicit.
	if claims.WidgetID != widgetID.String() {
		return nil
	}

	return &claims
}
