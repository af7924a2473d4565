// Package sweeper runs the periodic TTL sweep over sessions and consent
// links. Each pass is idempotent: records already expired match nothing.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"agegate/internal/platform/metrics"
)

// Expirer is one sweep target.
type Expirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

type Sweeper struct {
	sessions Expirer
	links    Expirer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	interval time.Duration
}

func New(sessions, links Expirer, m *metrics.Metrics, logger *slog.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{
		sessions: sessions,
		links:    links,
		metrics:  m,
		logger:   logger,
		interval: interval,
	}
}

// Run sweeps until the context is cancelled. Links sweep first so a link
// expiring in this pass fails its minor session in the same pass.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Failures are logged and retried on the next tick; a
// missed sweep delays expiry, it never corrupts state.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now()

	links, err := s.links.ExpireStale(ctx, now)
	if err != nil {
		s.logger.Error("consent link sweep failed", "error", err)
	} else if links > 0 {
		s.metrics.SweeperExpired.WithLabelValues("consent_link").Add(float64(links))
		s.logger.Info("expired consent links", "count", links)
	}

	sessions, err := s.sessions.ExpireStale(ctx, now)
	if err != nil {
		s.logger.Error("session sweep failed", "error", err)
	} else if sessions > 0 {
		s.metrics.SweeperExpired.WithLabelValues("session").Add(float64(sessions))
		s.logger.Info("expired sessions", "count", sessions)
	}
}
