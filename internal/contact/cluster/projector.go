package cluster

import (
	"fmt"
	"slices"

	"contactlink/internal/contact/models"
	"contactlink/pkg/platform/strings"
)

// Project builds the identity view of a resolved cluster. The primary's own
// email and phone come first; other values follow in (createdAt, id) order of
// the records carrying them. Secondary ids are ascending.
func Project(cluster []*models.Contact) (*models.IdentityView, error) {
	ordered := slices.Clone(cluster)
	sortByAge(ordered)

	var primary *models.Contact
	for _, c := range ordered {
		if !c.IsPrimary() {
			continue
		}
		if primary != nil {
			return nil, violation(fmt.Sprintf("cluster has primaries %d and %d", primary.ID, c.ID))
		}
		primary = c
	}
	if primary == nil {
		return nil, violation("cluster has no primary")
	}

	emails := make([]string, 0, len(ordered)+1)
	phones := make([]string, 0, len(ordered)+1)
	emails = append(emails, primary.Email)
	phones = append(phones, primary.PhoneNumber)
	secondaryIDs := make([]models.ContactID, 0, len(ordered)-1)
	for _, c := range ordered {
		emails = append(emails, c.Email)
		phones = append(phones, c.PhoneNumber)
		if !c.IsPrimary() {
			secondaryIDs = append(secondaryIDs, c.ID)
		}
	}
	slices.Sort(secondaryIDs)

	return &models.IdentityView{
		PrimaryID:    primary.ID,
		Emails:       strings.Dedupe(emails),
		PhoneNumbers: strings.Dedupe(phones),
		SecondaryIDs: secondaryIDs,
	}, nil
}
