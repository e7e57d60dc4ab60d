package cluster

import (
	"context"
	"errors"
	"slices"
	"time"

	"contactlink/internal/contact/models"
	"contactlink/pkg/platform/sentinel"
)

var t0 = time.Date(2023, 4, 1, 0, 0, 0, 374_000_000, time.UTC)

func primary(id models.ContactID, email, phone string, age time.Duration) *models.Contact {
	return &models.Contact{
		ID:             id,
		Email:          email,
		PhoneNumber:    phone,
		LinkPrecedence: models.LinkPrecedencePrimary,
		CreatedAt:      t0.Add(age),
		UpdatedAt:      t0.Add(age),
	}
}

func secondary(id, linked models.ContactID, email, phone string, age time.Duration) *models.Contact {
	c := primary(id, email, phone, age)
	c.LinkPrecedence = models.LinkPrecedenceSecondary
	c.LinkedID = &linked
	return c
}

func ids(contacts []*models.Contact) []models.ContactID {
	out := make([]models.ContactID, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, c.ID)
	}
	return out
}

// fakeStore is a map-backed reader/creator that counts queries.
type fakeStore struct {
	contacts map[models.ContactID]*models.Contact
	nextID   models.ContactID
	queries  int
	failWith error
}

func newFakeStore(contacts ...*models.Contact) *fakeStore {
	s := &fakeStore{contacts: make(map[models.ContactID]*models.Contact), nextID: 1}
	for _, c := range contacts {
		s.contacts[c.ID] = c.Clone()
		if c.ID >= s.nextID {
			s.nextID = c.ID + 1
		}
	}
	return s
}

func (s *fakeStore) sorted(match func(*models.Contact) bool) []*models.Contact {
	var out []*models.Contact
	for _, c := range s.contacts {
		if !c.IsRemoved() && match(c) {
			out = append(out, c.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.Contact) int { return int(a.ID - b.ID) })
	return out
}

func (s *fakeStore) FindByEmailOrPhone(_ context.Context, email, phone string) ([]*models.Contact, error) {
	s.queries++
	if s.failWith != nil {
		return nil, s.failWith
	}
	return s.sorted(func(c *models.Contact) bool {
		return (email != "" && c.Email == email) || (phone != "" && c.PhoneNumber == phone)
	}), nil
}

func (s *fakeStore) FindByID(_ context.Context, id models.ContactID) (*models.Contact, error) {
	s.queries++
	c, ok := s.contacts[id]
	if !ok || c.IsRemoved() {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *fakeStore) FindByLinkedID(_ context.Context, id models.ContactID) ([]*models.Contact, error) {
	s.queries++
	return s.sorted(func(c *models.Contact) bool { return c.LinksTo(id) }), nil
}

func (s *fakeStore) Create(_ context.Context, fields models.NewContact) (*models.Contact, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	c := fields.Build(s.nextID, createTime)
	s.nextID++
	s.contacts[c.ID] = c
	return c.Clone(), nil
}

var errStoreDown = errors.New("store down")

// createTime is what the fake store stamps on every record it creates.
var createTime = t0.Add(45 * 24 * time.Hour)
