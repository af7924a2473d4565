// Package claims extracts the date of birth from provider identity claims
// and reduces it to an integer age.
//
// Data minimization invariant: the date of birth exists only as local
// variables inside this package. It is never stored, logged, audited, or
// returned to any caller. Only the computed age leaves this package.
package claims

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
)

// birthdateLayout is the OIDC standard claim format (ISO 8601 date).
const birthdateLayout = "2006-01-02"

// userinfoResolver supplies the optional userinfo endpoint per provider.
type userinfoResolver interface {
	UserinfoURL(provider domain.Provider) string
}

// Extractor obtains an age from an ID token, falling back to the userinfo
// endpoint when the provider does not embed the birthdate claim.
type Extractor struct {
	endpoints  userinfoResolver
	httpClient *http.Client
}

// New builds a claims extractor. The timeout bounds userinfo calls.
func New(endpoints userinfoResolver, timeout time.Duration) *Extractor {
	return &Extractor{
		endpoints: endpoints,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ExtractAge returns the subject's age in whole years as of now.
//
// The ID token arrives server-side over TLS directly from the token endpoint
// in the same request, so its claims are read without a second signature
// check; the userinfo fallback is authenticated by the access token.
//
// Errors: CodeClaims when the birthdate is missing or unparseable from both
// sources. The caller marks the session failed.
func (e *Extractor) ExtractAge(ctx context.Context, provider domain.Provider, idToken, accessToken string, now time.Time) (int, error) {
	if idToken != "" {
		if dob, ok := birthdateFromIDToken(idToken); ok {
			return ageAt(dob, now)
		}
	}

	if accessToken != "" {
		if url := e.endpoints.UserinfoURL(provider); url != "" {
			dob, err := e.birthdateFromUserinfo(ctx, url, accessToken)
			if err != nil {
				return 0, err
			}
			return ageAt(dob, now)
		}
	}

	return 0, dErrors.New(dErrors.CodeClaims, "birthdate claim not available")
}

// birthdateFromIDToken reads the birthdate claim out of the ID token payload.
func birthdateFromIDToken(idToken string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return time.Time{}, false
	}

	raw, ok := claims["birthdate"].(string)
	if !ok || raw == "" {
		return time.Time{}, false
	}
	dob, err := time.Parse(birthdateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return dob, true
}

// birthdateFromUserinfo calls the provider's userinfo endpoint.
func (e *Extractor) birthdateFromUserinfo(ctx context.Context, url, accessToken string) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "build userinfo request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return time.Time{}, dErrors.Wrap(err, dErrors.CodeProvider, "userinfo endpoint unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, dErrors.New(dErrors.CodeProvider, "userinfo endpoint returned non-success")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return time.Time{}, dErrors.Wrap(err, dErrors.CodeProvider, "read userinfo response")
	}

	var payload struct {
		Birthdate string `json:"birthdate"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return time.Time{}, dErrors.Wrap(err, dErrors.CodeClaims, "malformed userinfo response")
	}
	if payload.Birthdate == "" {
		return time.Time{}, dErrors.New(dErrors.CodeClaims, "birthdate claim missing from userinfo")
	}

	dob, err := time.Parse(birthdateLayout, payload.Birthdate)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeClaims, "unparseable birthdate claim")
	}
	return dob, nil
}

// ageAt computes whole years between dob and now with calendar-correct
// year/month/day arithmetic, not day-count approximation.
func ageAt(dob, now time.Time) (int, error) {
	if dob.After(now) {
		return 0, dErrors.New(dErrors.CodeClaims, "birthdate is in the future")
	}

	age := now.Year() - dob.Year()
	// Not yet had the birthday this year.
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age, nil
}
