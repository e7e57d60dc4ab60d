// Package observability provides audit logging helpers for the ratelimit module.
package observability

import (
	"context"
	"log/slog"

	"contactlink/internal/ratelimit/ports"
	"contactlink/pkg/platform/audit"
	"contactlink/pkg/requestcontext"
)

// LogAudit writes a rate limiting security event to the structured log and,
// when configured, to the audit publisher.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher ports.AuditPublisher, event audit.AuditEvent, subject, reason string) {
	requestID := requestcontext.RequestID(ctx)

	if logger != nil {
		logger.InfoContext(ctx, string(event),
			"event", string(event),
			"log_type", "audit",
			"subject", subject,
			"reason", reason,
			"request_id", requestID,
		)
	}

	if publisher == nil {
		return
	}
	err := publisher.Emit(ctx, audit.Event{
		Action:    string(event),
		Subject:   subject,
		Reason:    reason,
		RequestID: requestID,
		ClientIP:  requestcontext.ClientIP(ctx),
	})
	if err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event",
			"request_id", requestID,
			"action", string(event),
			"error", err,
		)
	}
}
