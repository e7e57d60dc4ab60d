// Package cluster implements identity resolution over contact records: finding
// a cluster, planning merges between its roots, deciding whether an observation
// adds a record, and projecting the cluster into an identity view.
//
// Only the resolver and integrator touch the store; planning and projection
// are pure functions over a resolved cluster.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"contactlink/internal/contact/models"
	"contactlink/internal/contact/ports"
	"contactlink/pkg/platform/sentinel"
)

// Resolver computes the transitive closure of records connected by shared
// email, shared phone number or linkedId edges.
type Resolver struct {
	reader ports.ContactReader
}

func NewResolver(reader ports.ContactReader) *Resolver {
	return &Resolver{reader: reader}
}

// Resolve returns every non-removed record reachable from seeds, ordered by
// (createdAt, id). Empty seeds resolve to an empty cluster.
func (r *Resolver) Resolve(ctx context.Context, seeds []*models.Contact) ([]*models.Contact, error) {
	w := newWalk()
	for _, s := range seeds {
		w.push(s)
	}

	for len(w.frontier) > 0 {
		c := w.frontier[0]
		w.frontier = w.frontier[1:]

		if c.LinkedID != nil {
			parent, err := r.reader.FindByID(ctx, *c.LinkedID)
			switch {
			case errors.Is(err, sentinel.ErrNotFound):
				// removed parent; the planner rejects the orphan
			case err != nil:
				return nil, fmt.Errorf("find contact %d: %w", *c.LinkedID, err)
			default:
				w.push(parent)
			}
		}

		children, err := r.reader.FindByLinkedID(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("find contacts linked to %d: %w", c.ID, err)
		}
		w.push(children...)

		if c.Email != "" && w.markEmail(c.Email) {
			matches, err := r.reader.FindByEmailOrPhone(ctx, c.Email, "")
			if err != nil {
				return nil, fmt.Errorf("find contacts by email: %w", err)
			}
			w.push(matches...)
		}
		if c.PhoneNumber != "" && w.markPhone(c.PhoneNumber) {
			matches, err := r.reader.FindByEmailOrPhone(ctx, "", c.PhoneNumber)
			if err != nil {
				return nil, fmt.Errorf("find contacts by phoneNumber: %w", err)
			}
			w.push(matches...)
		}
	}

	return w.result(), nil
}

// ResolveFrom re-reads the given ids and resolves their cluster. It is used
// after writes, when the caller's copies are stale.
func (r *Resolver) ResolveFrom(ctx context.Context, ids ...models.ContactID) ([]*models.Contact, error) {
	seeds := make([]*models.Contact, 0, len(ids))
	for _, id := range ids {
		c, err := r.reader.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("find contact %d: %w", id, err)
		}
		seeds = append(seeds, c)
	}
	return r.Resolve(ctx, seeds)
}

// walk is the worklist state of one resolution.
type walk struct {
	frontier []*models.Contact
	visited  map[models.ContactID]*models.Contact
	emails   map[string]struct{}
	phones   map[string]struct{}
}

func newWalk() *walk {
	return &walk{
		visited: make(map[models.ContactID]*models.Contact),
		emails:  make(map[string]struct{}),
		phones:  make(map[string]struct{}),
	}
}

func (w *walk) push(contacts ...*models.Contact) {
	for _, c := range contacts {
		if c == nil || c.IsRemoved() {
			continue
		}
		if _, ok := w.visited[c.ID]; ok {
			continue
		}
		w.visited[c.ID] = c
		w.frontier = append(w.frontier, c)
	}
}

// markEmail returns true the first time an email is seen.
func (w *walk) markEmail(email string) bool {
	if _, ok := w.emails[email]; ok {
		return false
	}
	w.emails[email] = struct{}{}
	return true
}

func (w *walk) markPhone(phone string) bool {
	if _, ok := w.phones[phone]; ok {
		return false
	}
	w.phones[phone] = struct{}{}
	return true
}

func (w *walk) result() []*models.Contact {
	out := make([]*models.Contact, 0, len(w.visited))
	for _, c := range w.visited {
		out = append(out, c)
	}
	sortByAge(out)
	return out
}

func sortByAge(contacts []*models.Contact) {
	slices.SortFunc(contacts, func(a, b *models.Contact) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		default:
			return 0
		}
	})
}
