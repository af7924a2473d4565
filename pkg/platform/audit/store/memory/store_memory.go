package memory

import (
	"context"
	"sync"

	audit "agegate/pkg/platform/audit"
)

// Store is an in-memory, append-only audit sink. It keeps the initial
// implementation lightweight and testable; production uses the Postgres
// outbox store.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of all recorded events, for assertions in tests.
func (s *Store) Events() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByAction returns recorded events matching the given action.
func (s *Store) ByAction(action audit.AuditEvent) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.Action == string(action) {
			out = append(out, e)
		}
	}
	return out
}
