package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

type deviceNameKey struct{}

// Device derives a coarse, human-readable device name from the User-Agent
// header and stores it in the request context for audit enrichment.
// It is intentionally lossy ("Chrome on macOS"): audit context only, never a
// fingerprint.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ParseUserAgent(r.Header.Get("User-Agent"))
		ctx := context.WithValue(r.Context(), deviceNameKey{}, name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetDeviceName retrieves the device display name from the context.
func GetDeviceName(ctx context.Context) string {
	if name, ok := ctx.Value(deviceNameKey{}).(string); ok {
		return name
	}
	return ""
}

// WithDeviceName injects a device name into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithDeviceName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, deviceNameKey{}, name)
}

// ParseUserAgent extracts a human-readable device display name from a
// User-Agent string, in the form "Browser on OS".
func ParseUserAgent(userAgentString string) string {
	if userAgentString == "" {
		return "Unknown Device"
	}

	ua := useragent.New(userAgentString)

	browser, _ := ua.Browser()
	os := ua.OS()

	browser = strings.TrimSpace(browser)
	os = strings.TrimSpace(os)

	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	case os != "":
		return os
	default:
		return "Unknown Device"
	}
}
