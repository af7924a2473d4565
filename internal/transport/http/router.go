// Package http assembles the service router.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ghandler "agegate/internal/guardian/handler"
	"agegate/internal/platform/middleware"
	phandler "agegate/internal/postback/handler"
	rmiddleware "agegate/internal/ratelimit/middleware"
	rmodels "agegate/internal/ratelimit/models"
	vhandler "agegate/internal/verification/handler"
)

// Health reports readiness of a backing dependency.
type Health interface {
	Health(ctx context.Context) error
}

// RouterConfig wires the handlers and cross-cutting middleware together.
type RouterConfig struct {
	Verification *vhandler.Handler
	Guardian     *ghandler.Handler
	Postback     *phandler.Handler
	RateLimit    *rmiddleware.Middleware
	Logger       *slog.Logger
	Registry     *prometheus.Registry
	// Checks run on /healthz; a failing check turns the endpoint red.
	Checks map[string]Health
}

// NewRouter builds the chi router. Rate limiting sits inside the common
// middleware chain but before every handler, so budget rejections are cheap.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Device)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)

		r.Group(func(r chi.Router) {
			r.Use(cfg.RateLimit.Limit(rmodels.ClassBegin))
			r.Post("/verify/sessions", cfg.Verification.HandleBegin)
		})
		r.Group(func(r chi.Router) {
			r.Use(cfg.RateLimit.Limit(rmodels.ClassCallback))
			r.Get("/verify/callback", cfg.Verification.HandleCallback)
		})
		r.Group(func(r chi.Router) {
			r.Use(cfg.RateLimit.Limit(rmodels.ClassValidate))
			r.Get("/verify/sessions/{id}", cfg.Verification.HandleGetSession)
			r.Post("/verify/validate", cfg.Verification.HandleValidate)
		})
		r.Group(func(r chi.Router) {
			r.Use(cfg.RateLimit.Limit(rmodels.ClassGuardian))
			cfg.Guardian.Register(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(cfg.RateLimit.Limit(rmodels.ClassPostback))
			cfg.Postback.Register(r)
		})
	})

	r.Get("/healthz", healthHandler(cfg.Checks))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))

	return r
}

func healthHandler(checks map[string]Health) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		result := make(map[string]string, len(checks)+1)
		result["status"] = "ok"

		for name, check := range checks {
			if err := check.Health(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				result[name] = "unhealthy"
				result["status"] = "degraded"
				continue
			}
			result[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(result)
	}
}
