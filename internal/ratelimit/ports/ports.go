package ports

import (
	"context"
	"time"

	"contactlink/internal/ratelimit/models"
	"contactlink/pkg/platform/audit"
)

// BucketStore records requests against sliding-window buckets.
type BucketStore interface {
	// Allow admits one request for key when fewer than limit requests were
	// admitted within the window. Denied requests are not counted.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// AuditPublisher receives rate limiting security events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
