// Package middleware gates routes on their endpoint class budget. It runs
// before any handler work, so an over-budget client never triggers provider
// traffic or signature verification.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"agegate/internal/platform/metrics"
	platformmw "agegate/internal/platform/middleware"
	"agegate/internal/ratelimit/models"
	"agegate/internal/transport/http/shared"
	audit "agegate/pkg/platform/audit"
)

// Limiter decides whether a request fits its budget.
type Limiter interface {
	Check(ctx context.Context, class models.EndpointClass, clientKey string) (*models.Result, error)
}

// Auditor records limit violations.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Middleware struct {
	limiter  Limiter
	auditor  Auditor
	metrics  *metrics.Metrics
	logger   *slog.Logger
	disabled bool
}

// Option configures the Middleware.
type Option func(*Middleware)

// WithDisabled turns the limiter off, for tests and demo runs.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(limiter Limiter, auditor Auditor, met *metrics.Metrics, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		auditor: auditor,
		metrics: met,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit wraps a route subtree with the class budget.
func (m *Middleware) Limit(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := platformmw.ClientIP(r)

			result, err := m.limiter.Check(ctx, class, ip)
			if err != nil {
				// The limiter failing is not the client's fault; let the
				// request through and flag the backend problem.
				m.logger.Error("rate limit check failed", "class", string(class), "error", err)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.metrics.RateLimitHits.WithLabelValues(string(class)).Inc()
				if err := m.auditor.Emit(ctx, audit.Event{
					Action:    string(audit.EventRateLimitExceeded),
					Reason:    string(class),
					RequestID: platformmw.GetRequestID(ctx),
					SourceIP:  ip,
				}); err != nil {
					m.logger.Warn("audit emit failed", "action", string(audit.EventRateLimitExceeded), "error", err)
				}

				retryAfter := result.RetryAfter(time.Now())
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				shared.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
					"error":       "rate_limited",
					"message":     "Too many requests. Please try again later.",
					"retry_after": retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	if result == nil || result.Limit == 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
