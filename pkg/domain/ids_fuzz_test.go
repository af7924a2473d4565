package domain

import (
	"testing"

	"github.com/google/uuid"
)

// FuzzParseSessionID verifies the parser never panics and that accepted
// inputs round-trip through uuid parsing.
func FuzzParseSessionID(f *testing.F) {
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("")
	f.Add("not-a-uuid")
	f.Add(uuid.Nil.String())

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseSessionID(input)
		if err != nil {
			return
		}
		if id.IsNil() {
			t.Errorf("ParseSessionID(%q) accepted a nil UUID", input)
		}
		if _, err := uuid.Parse(id.String()); err != nil {
			t.Errorf("accepted ID %q does not round-trip: %v", input, err)
		}
	})
}
