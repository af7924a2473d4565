package domain

import dErrors "agegate/pkg/domain-errors"

// Provider discriminates the two OAuth surfaces the gateway integrates with.
// Both run the same PKCE flow; only endpoint sets and scopes differ.
type Provider string

const (
	// ProviderDirect is the single-hop OAuth flow against the identity
	// document issuer itself.
	ProviderDirect Provider = "direct"

	// ProviderBroker is the consent-broker-mediated flow. The broker also
	// delivers out-of-band signed consent artifacts via postback.
	ProviderBroker Provider = "broker"
)

var validProviders = map[Provider]bool{
	ProviderDirect: true,
	ProviderBroker: true,
}

// ParseProvider constructs a Provider from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseProvider(s string) (Provider, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "provider cannot be empty")
	}
	p := Provider(s)
	if !validProviders[p] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid provider")
	}
	return p, nil
}

// IsValid checks if the provider is one of the supported enum values.
func (p Provider) IsValid() bool { return validProviders[p] }

// String returns the string representation of the provider.
func (p Provider) String() string { return string(p) }
