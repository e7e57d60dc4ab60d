package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and sinks per category.
type EventCategory string

const (
	// CategoryCompliance covers events that change stored contact records.
	// Examples: contact creation, demotion of a primary during a merge.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to abuse monitoring.
	// Examples: rate limit rejections.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers read-mostly events useful for debugging.
	// These can be sampled or aggregated with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID
	Category  EventCategory
	Timestamp time.Time
	// Subject is the contact id the action applies to, or the client IP for
	// security events.
	Subject string
	Action  string
	// PrimaryID is the canonical primary of the identity after the action.
	PrimaryID string
	Reason    string
	RequestID string
	ClientIP  string
}

type AuditEvent string

const (
	// Contact events
	EventContactCreated   AuditEvent = "contact_created"
	EventContactDemoted   AuditEvent = "contact_demoted"
	EventContactRelinked  AuditEvent = "contact_relinked"
	EventIdentityResolved AuditEvent = "identity_resolved"
	EventContactsImported AuditEvent = "contacts_imported"

	// Rate limit events
	EventRateLimitExceeded AuditEvent = "rate_limit_exceeded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventContactCreated:   CategoryCompliance,
	EventContactDemoted:   CategoryCompliance,
	EventContactRelinked:  CategoryCompliance,
	EventContactsImported: CategoryCompliance,

	EventRateLimitExceeded: CategorySecurity,

	EventIdentityResolved: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Sink receives audit events. Implementations must be safe for concurrent use.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Store is a Sink that can also be queried.
type Store interface {
	Sink
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
