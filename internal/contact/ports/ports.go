// Package ports defines the storage and event boundaries of the contact module.
// The resolution algorithm depends only on these interfaces.
package ports

import (
	"context"

	"contactlink/internal/contact/models"
	"contactlink/pkg/platform/audit"
)

// ContactReader is the read side used by the cluster resolver.
// Every method excludes removed records.
type ContactReader interface {
	// FindByEmailOrPhone returns records whose email equals email or whose phone
	// equals phoneNumber. Empty arguments match nothing.
	FindByEmailOrPhone(ctx context.Context, email, phoneNumber string) ([]*models.Contact, error)

	// FindByID returns sentinel.ErrNotFound for unknown or removed ids.
	FindByID(ctx context.Context, id models.ContactID) (*models.Contact, error)

	// FindByLinkedID returns the secondaries pointing at id.
	FindByLinkedID(ctx context.Context, id models.ContactID) ([]*models.Contact, error)
}

// ContactCreator is the write side used by the observation integrator.
type ContactCreator interface {
	// Create assigns the next id and persists the record.
	Create(ctx context.Context, fields models.NewContact) (*models.Contact, error)
}

// ContactStore is the full repository available inside one unit of work.
type ContactStore interface {
	ContactReader
	ContactCreator

	// ApplyReassignments writes every reassignment or none of them. A target that
	// is unknown or removed fails the whole batch with sentinel.ErrNotFound.
	ApplyReassignments(ctx context.Context, reassignments []models.Reassignment) error

	// List returns all non-removed records in ascending id order.
	List(ctx context.Context) ([]*models.Contact, error)

	// Import inserts records with caller-chosen ids and advances the id sequence
	// past them. Used for fixtures.
	Import(ctx context.Context, contacts []*models.Contact) error
}

// ContactStoreTx runs fn as one serializable unit of work. Writes made through
// the store passed to fn commit together when fn returns nil and are discarded
// otherwise. Implementations may run fn more than once on isolation conflicts.
type ContactStoreTx interface {
	RunInTx(ctx context.Context, fn func(store ContactStore) error) error
}

// AuditPublisher emits audit events for contact writes and resolutions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
