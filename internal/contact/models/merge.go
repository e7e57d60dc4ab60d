package models

import "time"

// Reassignment is one tagged write produced by the merge planner: the record
// takes the given precedence and linked id.
type Reassignment struct {
	ContactID      ContactID
	LinkPrecedence LinkPrecedence
	LinkedID       ContactID
	UpdatedAt      time.Time
}

// ApplyTo writes the reassignment onto c.
func (r Reassignment) ApplyTo(c *Contact) {
	linked := r.LinkedID
	c.LinkPrecedence = r.LinkPrecedence
	c.LinkedID = &linked
	c.UpdatedAt = r.UpdatedAt
}

// MergePlan folds every root of a cluster under one canonical primary.
// An empty Reassignments list means the cluster is already rooted.
type MergePlan struct {
	Canonical     *Contact
	Reassignments []Reassignment
	// Demoted holds the ids of former primaries, in (createdAt, id) order.
	Demoted []ContactID
}

func (p MergePlan) IsNoop() bool {
	return len(p.Reassignments) == 0
}

// Apply returns copies of cluster with the plan's reassignments applied.
// The input is not modified.
func (p MergePlan) Apply(cluster []*Contact) []*Contact {
	byID := make(map[ContactID]Reassignment, len(p.Reassignments))
	for _, r := range p.Reassignments {
		byID[r.ContactID] = r
	}
	out := make([]*Contact, 0, len(cluster))
	for _, c := range cluster {
		cp := c.Clone()
		if r, ok := byID[c.ID]; ok {
			r.ApplyTo(cp)
		}
		out = append(out, cp)
	}
	return out
}

// IdentityView is the externally visible summary of a cluster.
type IdentityView struct {
	PrimaryID    ContactID
	Emails       []string
	PhoneNumbers []string
	SecondaryIDs []ContactID
}
