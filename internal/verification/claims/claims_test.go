package claims

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
)

type staticEndpoints string

func (s staticEndpoints) UserinfoURL(domain.Provider) string { return string(s) }

// unverifiedIDToken builds a token with the given claims. Signature does not
// matter: ID token claims are read unverified (see package doc).
func unverifiedIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("irrelevant"))
	require.NoError(t, err)
	return signed
}

func TestAgeAt_CalendarCorrect(t *testing.T) {
	now := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		dob  time.Time
		want int
	}{
		{"birthday already passed this year", time.Date(2008, time.March, 1, 0, 0, 0, 0, time.UTC), 18},
		{"birthday later this year", time.Date(2008, time.December, 1, 0, 0, 0, 0, time.UTC), 17},
		{"birthday today", time.Date(2008, time.June, 15, 0, 0, 0, 0, time.UTC), 18},
		{"birthday tomorrow", time.Date(2008, time.June, 16, 0, 0, 0, 0, time.UTC), 17},
		{"same month earlier day", time.Date(2008, time.June, 14, 0, 0, 0, 0, time.UTC), 18},
		{"infant", time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ageAt(tt.dob, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAgeAt_FutureBirthdate(t *testing.T) {
	now := time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)
	_, err := ageAt(now.AddDate(1, 0, 0), now)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeClaims))
}

func TestExtractAge_FromIDToken(t *testing.T) {
	e := New(staticEndpoints(""), time.Second)
	now := time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC)

	idToken := unverifiedIDToken(t, jwt.MapClaims{"birthdate": "1986-02-10"})
	age, err := e.ExtractAge(context.Background(), domain.ProviderDirect, idToken, "", now)
	require.NoError(t, err)
	assert.Equal(t, 40, age)
}

func TestExtractAge_UserinfoFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sub":"abc","birthdate":"2011-05-20"}`))
	}))
	defer srv.Close()

	e := New(staticEndpoints(srv.URL), time.Second)
	now := time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC)

	// ID token without a birthdate claim forces the userinfo path.
	idToken := unverifiedIDToken(t, jwt.MapClaims{"sub": "abc"})
	age, err := e.ExtractAge(context.Background(), domain.ProviderBroker, idToken, "access-token", now)
	require.NoError(t, err)
	assert.Equal(t, 15, age)
}

func TestExtractAge_MissingEverywhere(t *testing.T) {
	e := New(staticEndpoints(""), time.Second)

	idToken := unverifiedIDToken(t, jwt.MapClaims{"sub": "abc"})
	_, err := e.ExtractAge(context.Background(), domain.ProviderDirect, idToken, "access", time.Now())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeClaims))
}

func TestExtractAge_MalformedBirthdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"birthdate":"10/02/1986"}`))
	}))
	defer srv.Close()

	e := New(staticEndpoints(srv.URL), time.Second)
	_, err := e.ExtractAge(context.Background(), domain.ProviderDirect, "", "access", time.Now())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeClaims))
}

func TestExtractAge_UserinfoUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := New(staticEndpoints(srv.URL), time.Second)
	_, err := e.ExtractAge(context.Background(), domain.ProviderDirect, "", "access", time.Now())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeProvider))
}
