// Package bucket implements the rate limit counters.
package bucket

import (
	"context"
	"sync"
	"time"
)

// InMemoryBucketStore keeps sliding windows in process memory. Suitable for
// tests and single-instance runs; multi-instance deployments use RedisStore
// so every instance sees the same counters.
type InMemoryBucketStore struct {
	mu      sync.Mutex
	buckets map[string]*slidingWindow
	now     func() time.Time
}

// slidingWindow tracks request timestamps. A sliding window avoids the
// boundary burst a fixed window allows.
type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

func NewInMemoryBucketStore() *InMemoryBucketStore {
	return &InMemoryBucketStore{
		buckets: make(map[string]*slidingWindow),
		now:     time.Now,
	}
}

// WithClock overrides the time source, for window tests.
func (s *InMemoryBucketStore) WithClock(now func() time.Time) *InMemoryBucketStore {
	s.now = now
	return s
}

// Allow checks the budget and counts the request when it fits.
func (s *InMemoryBucketStore) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sw := s.buckets[key]
	if sw == nil {
		sw = &slidingWindow{window: window}
		s.buckets[key] = sw
	}
	sw.cleanup(now)

	if len(sw.timestamps) >= limit {
		return false, 0, sw.timestamps[0].Add(window), nil
	}

	sw.timestamps = append(sw.timestamps, now)
	return true, limit - len(sw.timestamps), sw.timestamps[0].Add(window), nil
}

func (sw *slidingWindow) cleanup(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}
