package cluster

import (
	"context"
	"fmt"

	"contactlink/internal/contact/models"
	"contactlink/internal/contact/ports"
)

// Integrator decides whether an observation adds a record to its cluster.
type Integrator struct {
	creator ports.ContactCreator
}

func NewIntegrator(creator ports.ContactCreator) *Integrator {
	return &Integrator{creator: creator}
}

// Integrate creates at most one record for obs and returns it, or nil when the
// cluster already accounts for the observation.
//
// An empty cluster gets a new primary. Otherwise a secondary linked to
// canonical is created unless some record already carries the exact pair,
// or a single-field observation's value is already in the cluster.
func (i *Integrator) Integrate(ctx context.Context, cluster []*models.Contact, canonical *models.Contact, obs models.Observation) (*models.Contact, error) {
	if len(cluster) == 0 {
		created, err := i.creator.Create(ctx, models.NewPrimary(obs))
		if err != nil {
			return nil, fmt.Errorf("create primary: %w", err)
		}
		return created, nil
	}
	if canonical == nil || !canonical.IsPrimary() {
		return nil, violation("integrate requires the canonical primary")
	}
	if !NeedsRecord(cluster, obs) {
		return nil, nil
	}
	created, err := i.creator.Create(ctx, models.NewSecondary(obs, canonical.ID))
	if err != nil {
		return nil, fmt.Errorf("create secondary: %w", err)
	}
	return created, nil
}

// NeedsRecord reports whether obs carries information that no record of a
// non-empty cluster holds.
//
// Observations with both fields only skip creation on an exact pair match, so
// an observation bridging two records still gets its own secondary.
// Single-field observations only create a record for a value the cluster lacks.
func NeedsRecord(cluster []*models.Contact, obs models.Observation) bool {
	emails := make(map[string]struct{}, len(cluster))
	phones := make(map[string]struct{}, len(cluster))
	for _, c := range cluster {
		if obs.Matches(c) {
			return false
		}
		if c.Email != "" {
			emails[c.Email] = struct{}{}
		}
		if c.PhoneNumber != "" {
			phones[c.PhoneNumber] = struct{}{}
		}
	}
	if obs.Complete() {
		return true
	}
	if obs.HasEmail() {
		if _, ok := emails[obs.Email]; !ok {
			return true
		}
	}
	if obs.HasPhoneNumber() {
		if _, ok := phones[obs.PhoneNumber]; !ok {
			return true
		}
	}
	return false
}
