package models

import "time"

// EndpointClass groups routes that share a rate budget. Classes are keyed by
// cost: anything that triggers provider traffic or signature work gets a
// tighter budget than cheap reads.
type EndpointClass string

const (
	// ClassBegin covers session initiation (allocates provider state).
	ClassBegin EndpointClass = "begin"
	// ClassCallback covers provider callbacks (code exchange, claims).
	ClassCallback EndpointClass = "callback"
	// ClassValidate covers token validation (HMAC only, cheap).
	ClassValidate EndpointClass = "validate"
	// ClassGuardian covers guardian link reads and decisions.
	ClassGuardian EndpointClass = "guardian"
	// ClassPostback covers consent postbacks (RSA verification).
	ClassPostback EndpointClass = "postback"
)

// Limit is a fixed budget over a window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result reports one rate limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns whole seconds until the window resets, at least 1.
func (r *Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

// DefaultLimits is the per-class budget applied when nothing overrides it.
// Checks happen before any crypto or provider work, so the expensive classes
// are the ones worth keeping tight.
func DefaultLimits() map[EndpointClass]Limit {
	return map[EndpointClass]Limit{
		ClassBegin:    {Requests: 30, Window: time.Minute},
		ClassCallback: {Requests: 30, Window: time.Minute},
		ClassValidate: {Requests: 300, Window: time.Minute},
		ClassGuardian: {Requests: 60, Window: time.Minute},
		ClassPostback: {Requests: 60, Window: time.Minute},
	}
}
