// Package service decides whether a request fits its endpoint class budget.
package service

import (
	"context"
	"time"

	"agegate/internal/ratelimit/models"
	dErrors "agegate/pkg/domain-errors"
)

// BucketStore is the counter backend.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, time.Time, error)
}

type Service struct {
	store  BucketStore
	limits map[models.EndpointClass]models.Limit
}

func New(store BucketStore, limits map[models.EndpointClass]models.Limit) *Service {
	if limits == nil {
		limits = models.DefaultLimits()
	}
	return &Service{store: store, limits: limits}
}

// Check counts one request from the client against the class budget. An
// unknown class is allowed: budgets are opt-in per route.
func (s *Service) Check(ctx context.Context, class models.EndpointClass, clientKey string) (*models.Result, error) {
	limit, ok := s.limits[class]
	if !ok {
		return &models.Result{Allowed: true}, nil
	}

	allowed, remaining, resetAt, err := s.store.Allow(ctx, string(class)+":"+clientKey, limit.Requests, limit.Window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "rate limit check failed")
	}
	return &models.Result{
		Allowed:   allowed,
		Limit:     limit.Requests,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
