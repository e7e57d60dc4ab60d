// Package service decides whether a client may call a rate limited endpoint.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"contactlink/internal/ratelimit/metrics"
	"contactlink/internal/ratelimit/models"
	"contactlink/internal/ratelimit/observability"
	"contactlink/internal/ratelimit/ports"
	"contactlink/pkg/platform/audit"
	"contactlink/pkg/platform/circuit"
)

// DefaultLimit applies when no limit is configured.
var DefaultLimit = models.Limit{Requests: 120, Window: time.Minute}

// Service checks per-IP sliding windows. When the shared bucket store keeps
// failing, a breaker opens and checks are served from an in-memory fallback
// until the store recovers.
type Service struct {
	buckets        ports.BucketStore
	fallback       ports.BucketStore
	breaker        *circuit.Breaker
	limit          models.Limit
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher ports.AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithLimit sets the per-IP budget. Non-positive values are ignored.
func WithLimit(limit models.Limit) Option {
	return func(s *Service) {
		if limit.Requests > 0 && limit.Window > 0 {
			s.limit = limit
		}
	}
}

// WithFallback sets the store used while the breaker is open.
func WithFallback(store ports.BucketStore, breaker *circuit.Breaker) Option {
	return func(s *Service) {
		s.fallback = store
		s.breaker = breaker
	}
}

func New(buckets ports.BucketStore, opts ...Option) (*Service, error) {
	if buckets == nil {
		return nil, errors.New("bucket store is required")
	}
	s := &Service{
		buckets: buckets,
		limit:   DefaultLimit,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fallback != nil && s.breaker == nil {
		s.breaker = circuit.New("ratelimit")
	}
	return s, nil
}

// Limit returns the configured budget.
func (s *Service) Limit() models.Limit {
	return s.limit
}

// CheckIP records one request from ip against endpoint's bucket. An error
// means no decision could be made; callers fail open.
func (s *Service) CheckIP(ctx context.Context, ip, endpoint string) (*models.RateLimitResult, error) {
	key := models.NewIPKey(ip, endpoint)

	result, err := s.check(ctx, key)
	if err != nil {
		return nil, err
	}

	switch {
	case !result.Allowed:
		s.metrics.IncrementDecision("denied")
		observability.LogAudit(ctx, s.logger, s.auditPublisher, audit.EventRateLimitExceeded,
			ip, fmt.Sprintf("%s limit %d per %s", endpoint, result.Limit, s.limit.Window))
	case result.Degraded:
		s.metrics.IncrementDecision("degraded")
	default:
		s.metrics.IncrementDecision("allowed")
	}
	return result, nil
}

func (s *Service) check(ctx context.Context, key string) (*models.RateLimitResult, error) {
	if s.breaker == nil {
		return s.buckets.Allow(ctx, key, s.limit.Requests, s.limit.Window)
	}
	if !s.breaker.Allow() {
		return s.checkFallback(ctx, key)
	}

	result, err := s.buckets.Allow(ctx, key, s.limit.Requests, s.limit.Window)
	if err != nil {
		s.metrics.IncrementStoreErrors()
		useFallback, change := s.breaker.RecordFailure()
		if change.Opened {
			s.metrics.SetBreakerOpen(true)
			s.logger.WarnContext(ctx, "rate limit store failing; using in-memory fallback",
				"breaker", s.breaker.Name(),
				"error", err,
			)
		}
		if useFallback {
			return s.checkFallback(ctx, key)
		}
		return nil, fmt.Errorf("check rate limit: %w", err)
	}

	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.metrics.SetBreakerOpen(false)
		s.logger.InfoContext(ctx, "rate limit store recovered", "breaker", s.breaker.Name())
	}
	return result, nil
}

func (s *Service) checkFallback(ctx context.Context, key string) (*models.RateLimitResult, error) {
	result, err := s.fallback.Allow(ctx, key, s.limit.Requests, s.limit.Window)
	if err != nil {
		return nil, fmt.Errorf("check fallback rate limit: %w", err)
	}
	result.Degraded = true
	return result, nil
}
