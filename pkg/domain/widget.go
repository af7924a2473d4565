package domain

import dErrors "agegate/pkg/domain-errors"

// WidgetID identifies the embedding installation that requested verification.
// It scopes verification tokens: the signing key is derived per widget, so a
// token minted for one widget never validates for another.
//
// Usage: construct via ParseWidgetID at trust boundaries to enforce shape;
// direct casting bypasses validation.
type WidgetID string

const (
	widgetIDMinLen = 3
	widgetIDMaxLen = 64
)

// ParseWidgetID constructs a WidgetID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, out of bounds, or
// contains characters outside [a-zA-Z0-9_-]; no other errors are expected.
func ParseWidgetID(s string) (WidgetID, error) {
	if len(s) < widgetIDMinLen || len(s) > widgetIDMaxLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "widget ID length out of bounds")
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return "", dErrors.New(dErrors.CodeInvalidInput, "widget ID contains invalid characters")
		}
	}
	return WidgetID(s), nil
}

// String returns the string representation of the widget ID.
func (w WidgetID) String() string { return string(w) }

// IsNil reports whether the widget ID is unset.
func (w WidgetID) IsNil() bool { return w == "" }
