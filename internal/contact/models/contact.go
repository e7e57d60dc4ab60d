package models

import (
	"fmt"
	"strconv"
	"time"
)

// ContactID is the store-assigned, monotonically increasing record id.
type ContactID int64

func (id ContactID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// LinkPrecedence is the role of a record inside its identity cluster.
type LinkPrecedence string

const (
	LinkPrecedencePrimary   LinkPrecedence = "primary"
	LinkPrecedenceSecondary LinkPrecedence = "secondary"
)

func (p LinkPrecedence) IsValid() bool {
	return p == LinkPrecedencePrimary || p == LinkPrecedenceSecondary
}

// Contact is one observed (email, phone) record.
//
// Invariants:
//   - LinkedID is set iff LinkPrecedence is secondary
//   - LinkedID never references a secondary (clusters are stars of depth 1)
//   - Email, PhoneNumber and CreatedAt never change after creation
//   - Precedence only moves primary -> secondary, via a merge reassignment
//
// An empty Email or PhoneNumber means the field was not observed.
type Contact struct {
	ID             ContactID      `json:"id" db:"id" yaml:"id"`
	Email          string         `json:"email,omitempty" db:"email" yaml:"email"`
	PhoneNumber    string         `json:"phoneNumber,omitempty" db:"phone_number" yaml:"phoneNumber"`
	LinkedID       *ContactID     `json:"linkedId,omitempty" db:"linked_id" yaml:"linkedId"`
	LinkPrecedence LinkPrecedence `json:"linkPrecedence" db:"link_precedence" yaml:"linkPrecedence"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at" yaml:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt" db:"updated_at" yaml:"updatedAt"`
	DeletedAt      *time.Time     `json:"deletedAt,omitempty" db:"deleted_at" yaml:"deletedAt"`
}

func (c *Contact) IsPrimary() bool {
	return c.LinkPrecedence == LinkPrecedencePrimary
}

// IsRemoved reports whether the record is soft-deleted.
func (c *Contact) IsRemoved() bool {
	return c.DeletedAt != nil
}

// Before orders records by creation time, then id. It is the order used to
// pick the canonical primary.
func (c *Contact) Before(other *Contact) bool {
	if !c.CreatedAt.Equal(other.CreatedAt) {
		return c.CreatedAt.Before(other.CreatedAt)
	}
	return c.ID < other.ID
}

// LinksTo reports whether c is a secondary pointing at id.
func (c *Contact) LinksTo(id ContactID) bool {
	return c.LinkedID != nil && *c.LinkedID == id
}

// Clone returns a deep copy so callers can't alias store state.
func (c *Contact) Clone() *Contact {
	out := *c
	if c.LinkedID != nil {
		linked := *c.LinkedID
		out.LinkedID = &linked
	}
	if c.DeletedAt != nil {
		deleted := *c.DeletedAt
		out.DeletedAt = &deleted
	}
	return &out
}

// CheckShape validates the per-record invariants that don't need the cluster.
func (c *Contact) CheckShape() error {
	switch c.LinkPrecedence {
	case LinkPrecedencePrimary:
		if c.LinkedID != nil {
			return fmt.Errorf("primary %d has linkedId %d", c.ID, *c.LinkedID)
		}
	case LinkPrecedenceSecondary:
		if c.LinkedID == nil {
			return fmt.Errorf("secondary %d has no linkedId", c.ID)
		}
		if *c.LinkedID == c.ID {
			return fmt.Errorf("secondary %d links to itself", c.ID)
		}
	default:
		return fmt.Errorf("contact %d has unknown precedence %q", c.ID, c.LinkPrecedence)
	}
	if c.Email == "" && c.PhoneNumber == "" {
		return fmt.Errorf("contact %d has neither email nor phoneNumber", c.ID)
	}
	return nil
}

// NewContact carries the fields of a record about to be created. The store
// assigns ID and CreatedAt inside the unit of work, so creation order and
// CreatedAt order agree.
type NewContact struct {
	Email          string
	PhoneNumber    string
	LinkedID       *ContactID
	LinkPrecedence LinkPrecedence
}

// NewPrimary builds the fields of a brand-new primary record.
func NewPrimary(obs Observation) NewContact {
	return NewContact{
		Email:          obs.Email,
		PhoneNumber:    obs.PhoneNumber,
		LinkPrecedence: LinkPrecedencePrimary,
	}
}

// NewSecondary builds the fields of a secondary linked to primaryID.
func NewSecondary(obs Observation, primaryID ContactID) NewContact {
	linked := primaryID
	return NewContact{
		Email:          obs.Email,
		PhoneNumber:    obs.PhoneNumber,
		LinkedID:       &linked,
		LinkPrecedence: LinkPrecedenceSecondary,
	}
}

// Build materializes the record with the id and creation time the store
// assigned.
func (n NewContact) Build(id ContactID, createdAt time.Time) *Contact {
	c := &Contact{
		ID:             id,
		Email:          n.Email,
		PhoneNumber:    n.PhoneNumber,
		LinkPrecedence: n.LinkPrecedence,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	if n.LinkedID != nil {
		linked := *n.LinkedID
		c.LinkedID = &linked
	}
	return c
}
