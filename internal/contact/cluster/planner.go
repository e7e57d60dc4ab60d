package cluster

import (
	"fmt"
	"slices"
	"time"

	"contactlink/internal/contact/models"
	dErrors "contactlink/pkg/domain-errors"
)

// Plan computes the reassignments that fold every primary of cluster under the
// oldest one. It does not mutate cluster.
//
// A cluster that is already rooted at a single primary yields an empty plan,
// so re-planning after a committed merge is a no-op.
func Plan(cluster []*models.Contact, now time.Time) (models.MergePlan, error) {
	if len(cluster) == 0 {
		return models.MergePlan{}, violation("cannot plan an empty cluster")
	}
	if err := checkCluster(cluster); err != nil {
		return models.MergePlan{}, err
	}

	ordered := slices.Clone(cluster)
	sortByAge(ordered)

	var primaries []*models.Contact
	for _, c := range ordered {
		if c.IsPrimary() {
			primaries = append(primaries, c)
		}
	}
	if len(primaries) == 0 {
		return models.MergePlan{}, violation("cluster has no primary")
	}

	canonical := primaries[0]
	plan := models.MergePlan{Canonical: canonical}
	if len(primaries) == 1 {
		return plan, nil
	}

	demoted := make(map[models.ContactID]struct{}, len(primaries)-1)
	for _, p := range primaries[1:] {
		demoted[p.ID] = struct{}{}
		plan.Demoted = append(plan.Demoted, p.ID)
		plan.Reassignments = append(plan.Reassignments, models.Reassignment{
			ContactID:      p.ID,
			LinkPrecedence: models.LinkPrecedenceSecondary,
			LinkedID:       canonical.ID,
			UpdatedAt:      now,
		})
	}
	for _, c := range ordered {
		if c.IsPrimary() {
			continue
		}
		if _, ok := demoted[*c.LinkedID]; ok {
			plan.Reassignments = append(plan.Reassignments, models.Reassignment{
				ContactID:      c.ID,
				LinkPrecedence: models.LinkPrecedenceSecondary,
				LinkedID:       canonical.ID,
				UpdatedAt:      now,
			})
		}
	}
	return plan, nil
}

// checkCluster rejects clusters that no sequence of valid operations could have
// produced.
func checkCluster(cluster []*models.Contact) error {
	byID := make(map[models.ContactID]*models.Contact, len(cluster))
	for _, c := range cluster {
		if _, dup := byID[c.ID]; dup {
			return violation(fmt.Sprintf("contact %d appears twice in cluster", c.ID))
		}
		if err := c.CheckShape(); err != nil {
			return violation(err.Error())
		}
		byID[c.ID] = c
	}
	for _, c := range cluster {
		if c.IsPrimary() {
			continue
		}
		parent, ok := byID[*c.LinkedID]
		if !ok {
			return violation(fmt.Sprintf("secondary %d links to %d outside the cluster", c.ID, *c.LinkedID))
		}
		if !parent.IsPrimary() {
			return violation(fmt.Sprintf("secondary %d links to secondary %d", c.ID, parent.ID))
		}
	}
	return nil
}

func violation(msg string) error {
	return dErrors.New(dErrors.CodeInvariantViolation, msg)
}

