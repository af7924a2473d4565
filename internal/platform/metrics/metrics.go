// Package metrics defines the Prometheus instruments for the gateway.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every instrument the service records. Construct once at
// startup and share; tests pass a fresh registry.
type Metrics struct {
	SessionsStarted   *prometheus.CounterVec
	SessionOutcomes   *prometheus.CounterVec
	TokensIssued      prometheus.Counter
	GuardianDecisions *prometheus.CounterVec
	Postbacks         *prometheus.CounterVec
	RateLimitHits     *prometheus.CounterVec
	SweeperExpired    *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agegate_sessions_started_total",
			Help: "Verification sessions started, by provider and purpose.",
		}, []string{"provider", "purpose"}),
		SessionOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agegate_session_outcomes_total",
			Help: "Terminal session outcomes, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		TokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agegate_verification_tokens_issued_total",
			Help: "Verification tokens minted for widgets.",
		}),
		GuardianDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agegate_guardian_decisions_total",
			Help: "Terminal guardian link outcomes, by decision.",
		}, []string{"decision"}),
		Postbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agegate_postbacks_total",
			Help: "Consent postbacks received, by signature validity.",
		}, []string{"valid"}),
		RateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agegate_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter, by endpoint class.",
		}, []string{"endpoint"}),
		SweeperExpired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agegate_sweeper_expired_total",
			Help: "Records expired by the TTL sweeper, by kind.",
		}, []string{"kind"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agegate_http_request_duration_seconds",
			Help:    "HTTP request latency, by route and status class.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}

	reg.MustRegister(
		m.SessionsStarted,
		m.SessionOutcomes,
		m.TokensIssued,
		m.GuardianDecisions,
		m.Postbacks,
		m.RateLimitHits,
		m.SweeperExpired,
		m.RequestDuration,
	)
	return m
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(route, status string, elapsed time.Duration) {
	m.RequestDuration.WithLabelValues(route, status).Observe(elapsed.Seconds())
}
