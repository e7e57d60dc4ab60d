//go:build integration

package contact_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"contactlink/internal/contact/models"
	"contactlink/internal/contact/ports"
	"contactlink/internal/contact/store/contact"
	"contactlink/pkg/platform/sentinel"
	"contactlink/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *contact.PostgresStore
	tx       *contact.PostgresTx
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = contact.NewPostgres(s.postgres.DB)
	s.tx = contact.NewPostgresTxRunner(s.postgres.DB, contact.WithMaxAttempts(10))
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "contacts")
	s.Require().NoError(err)
	s.now = time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	p, err := s.store.Create(ctx, models.NewPrimary(models.Observation{Email: "lorraine@hillvalley.edu", PhoneNumber: "123456"}))
	s.Require().NoError(err)
	sec, err := s.store.Create(ctx, models.NewSecondary(models.Observation{PhoneNumber: "123456"}, p.ID))
	s.Require().NoError(err)

	found, err := s.store.FindByID(ctx, sec.ID)
	s.Require().NoError(err)
	s.Equal("", found.Email, "absent email reads back as empty")
	s.True(found.LinksTo(p.ID))
	s.True(sec.CreatedAt.Equal(found.CreatedAt))
	s.True(p.Before(found), "secondary created later stamps later")
	s.WithinDuration(time.Now(), found.CreatedAt, time.Minute, "created_at is stamped by the database")

	byPhone, err := s.store.FindByEmailOrPhone(ctx, "", "123456")
	s.Require().NoError(err)
	s.Len(byPhone, 2)

	linked, err := s.store.FindByLinkedID(ctx, p.ID)
	s.Require().NoError(err)
	s.Len(linked, 1)

	_, err = s.store.FindByID(ctx, 999)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestApplyReassignmentsRollsBackOnMissingTarget() {
	ctx := context.Background()
	a, err := s.store.Create(ctx, models.NewPrimary(models.Observation{Email: "a@x"}))
	s.Require().NoError(err)
	b, err := s.store.Create(ctx, models.NewPrimary(models.Observation{PhoneNumber: "1"}))
	s.Require().NoError(err)

	err = s.store.ApplyReassignments(ctx, []models.Reassignment{
		{ContactID: b.ID, LinkPrecedence: models.LinkPrecedenceSecondary, LinkedID: a.ID, UpdatedAt: s.now},
		{ContactID: 404, LinkPrecedence: models.LinkPrecedenceSecondary, LinkedID: a.ID, UpdatedAt: s.now},
	})
	s.ErrorIs(err, sentinel.ErrNotFound)

	still, err := s.store.FindByID(ctx, b.ID)
	s.Require().NoError(err)
	s.True(still.IsPrimary())
}

func (s *PostgresStoreSuite) TestImportAdvancesSequence() {
	ctx := context.Background()
	linked := models.ContactID(1)
	err := s.store.Import(ctx, []*models.Contact{
		{ID: 23, Email: "mcfly@hillvalley.edu", PhoneNumber: "123456", LinkedID: &linked, LinkPrecedence: models.LinkPrecedenceSecondary, CreatedAt: s.now, UpdatedAt: s.now},
		{ID: 1, Email: "lorraine@hillvalley.edu", PhoneNumber: "123456", LinkPrecedence: models.LinkPrecedencePrimary, CreatedAt: s.now, UpdatedAt: s.now},
	})
	s.Require().NoError(err)

	next, err := s.store.Create(ctx, models.NewPrimary(models.Observation{Email: "doc@hillvalley.edu"}))
	s.Require().NoError(err)
	s.Equal(models.ContactID(24), next.ID)
}

// TestSerializableUnitsRetry runs competing read-then-write units on one
// phone number. Each unit creates a primary only when none exists; SERIALIZABLE
// plus retry must leave exactly one.
func (s *PostgresStoreSuite) TestSerializableUnitsRetry() {
	ctx := context.Background()
	const goroutines = 8
	var wg sync.WaitGroup

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.tx.RunInTx(ctx, func(store ports.ContactStore) error {
				existing, err := store.FindByEmailOrPhone(ctx, "", "555")
				if err != nil {
					return err
				}
				if len(existing) > 0 {
					return nil
				}
				_, err = store.Create(ctx, models.NewPrimary(models.Observation{PhoneNumber: "555"}))
				return err
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	all, err := s.store.FindByEmailOrPhone(ctx, "", "555")
	s.Require().NoError(err)
	s.Len(all, 1)
}
