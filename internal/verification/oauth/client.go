// Package oauth performs the server-side authorization-code-for-token
// exchange against the configured provider surfaces. No client secret is
// trusted client-side: everything sensitive happens here.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agegate/internal/platform/config"
	"agegate/internal/verification/pkce"
	"agegate/pkg/domain"
	dErrors "agegate/pkg/domain-errors"
)

// TokenResponse carries the provider's token endpoint response. The ID token
// is passed straight to the claims extractor and never persisted.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// providerError is the RFC 6749 error envelope providers return on non-2xx.
type providerError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// Client exchanges authorization codes with either provider surface.
type Client struct {
	endpoints  map[domain.Provider]config.ProviderEndpoints
	httpClient *http.Client
}

// New builds an exchange client. The timeout bounds every outbound call; a
// timed-out exchange fails the session, it is never resumed.
func New(endpoints map[domain.Provider]config.ProviderEndpoints, timeout time.Duration) *Client {
	return &Client{
		endpoints: endpoints,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// AuthorizeURL builds the provider redirect carrying the PKCE challenge and
// the anti-CSRF state token.
func (c *Client) AuthorizeURL(provider domain.Provider, stateToken string, challenge pkce.Challenge) (string, error) {
	ep, ok := c.endpoints[provider]
	if !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown provider")
	}

	u, err := url.Parse(ep.AuthorizeURL)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "invalid authorize URL configured")
	}

	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", ep.ClientID)
	q.Set("redirect_uri", ep.RedirectURI)
	q.Set("scope", strings.Join(normalizeScopes(ep.Scopes), " "))
	q.Set("state", stateToken)
	q.Set("code_challenge", challenge.Challenge)
	q.Set("code_challenge_method", challenge.Method)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// normalizeScopes drops duplicates, surrounding whitespace, and empty entries
// from the configured scope list, preserving first-seen order.
func normalizeScopes(scopes []string) []string {
	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		if _, ok := seen[scope]; ok {
			continue
		}
		seen[scope] = struct{}{}
		out = append(out, scope)
	}
	return out
}

// Exchange posts the authorization code and PKCE verifier to the provider's
// token endpoint.
//
// Errors: CodeProvider on transport failure or non-2xx response. The caller
// must fail the session; authorization codes are single-use and are never
// retried.
func (c *Client) Exchange(ctx context.Context, provider domain.Provider, code, verifier string) (*TokenResponse, error) {
	ep, ok := c.endpoints[provider]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown provider")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("code_verifier", verifier)
	form.Set("client_id", ep.ClientID)
	form.Set("redirect_uri", ep.RedirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProvider, "token endpoint unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProvider, "read token response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var pe providerError
		// Best effort: providers are not obliged to return the envelope.
		_ = json.Unmarshal(body, &pe)
		if pe.Error == "" {
			pe.Error = fmt.Sprintf("http_%d", resp.StatusCode)
		}
		return nil, dErrors.New(dErrors.CodeProvider,
			fmt.Sprintf("token exchange failed: %s: %s", pe.Error, pe.Description))
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProvider, "malformed token response")
	}
	if token.AccessToken == "" && token.IDToken == "" {
		return nil, dErrors.New(dErrors.CodeProvider, "token response missing tokens")
	}

	return &token, nil
}

// UserinfoURL returns the configured userinfo endpoint for the provider, or
// empty when the provider embeds claims in the ID token only.
func (c *Client) UserinfoURL(provider domain.Provider) string {
	if ep, ok := c.endpoints[provider]; ok {
		return ep.UserinfoURL
	}
	return ""
}
