package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"contactlink/internal/contact/models"
)

// =============================================================================
// Resolver Test Suite
// =============================================================================

type ResolverSuite struct {
	suite.Suite
	ctx context.Context
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *ResolverSuite) TestEmptySeeds() {
	store := newFakeStore(primary(1, "a@x", "1", 0))
	got, err := NewResolver(store).Resolve(s.ctx, nil)
	s.Require().NoError(err)
	s.Empty(got)
	s.Zero(store.queries)
}

func (s *ResolverSuite) TestFollowsSharedFieldsTransitively() {
	// 1 -email- 2 -phone- 3 -email- 4; 5 unrelated
	store := newFakeStore(
		primary(1, "a@x", "100", 0),
		primary(2, "a@x", "200", time.Hour),
		primary(3, "c@x", "200", 2*time.Hour),
		primary(4, "c@x", "", 3*time.Hour),
		primary(5, "z@x", "999", 4*time.Hour),
	)
	seed, err := store.FindByID(s.ctx, 1)
	s.Require().NoError(err)

	got, err := NewResolver(store).Resolve(s.ctx, []*models.Contact{seed})
	s.Require().NoError(err)
	s.Equal([]models.ContactID{1, 2, 3, 4}, ids(got))
}

func (s *ResolverSuite) TestFollowsLinksBothWays() {
	store := newFakeStore(
		primary(1, "lorraine@hillvalley.edu", "123456", 0),
		secondary(23, 1, "mcfly@hillvalley.edu", "654321", time.Hour),
		secondary(24, 1, "doc@hillvalley.edu", "", 2*time.Hour),
	)

	s.Run("from a secondary", func() {
		got, err := NewResolver(store).ResolveFrom(s.ctx, 24)
		s.Require().NoError(err)
		s.Equal([]models.ContactID{1, 23, 24}, ids(got))
	})

	s.Run("from the primary", func() {
		got, err := NewResolver(store).ResolveFrom(s.ctx, 1)
		s.Require().NoError(err)
		s.Equal([]models.ContactID{1, 23, 24}, ids(got))
	})
}

func (s *ResolverSuite) TestExcludesRemovedRecords() {
	removedAt := t0.Add(time.Hour)
	ghost := primary(2, "a@x", "200", time.Hour)
	ghost.DeletedAt = &removedAt
	store := newFakeStore(
		primary(1, "a@x", "100", 0),
		ghost,
		primary(3, "c@x", "200", 2*time.Hour),
	)

	got, err := NewResolver(store).ResolveFrom(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal([]models.ContactID{1}, ids(got), "removed record must not bridge clusters")

	_, err = NewResolver(store).ResolveFrom(s.ctx, 2)
	s.Error(err)
}

func (s *ResolverSuite) TestOrdersByCreatedAtThenID() {
	store := newFakeStore(
		primary(9, "a@x", "", 0),
		secondary(3, 9, "a@x", "1", time.Hour),
		secondary(2, 9, "", "1", time.Hour),
	)
	got, err := NewResolver(store).ResolveFrom(s.ctx, 3)
	s.Require().NoError(err)
	s.Equal([]models.ContactID{9, 2, 3}, ids(got))
}

func (s *ResolverSuite) TestQueriesEachValueOnce() {
	store := newFakeStore(
		primary(1, "a@x", "1", 0),
		secondary(2, 1, "a@x", "1", time.Hour),
		secondary(3, 1, "a@x", "1", 2*time.Hour),
	)
	_, err := NewResolver(store).ResolveFrom(s.ctx, 1)
	s.Require().NoError(err)
	// 1 seed read, 1 parent read per secondary, 3 linked-id reads, 1 email and 1 phone query
	s.Equal(1+2+3+2, store.queries)
}

func (s *ResolverSuite) TestPropagatesStoreErrors() {
	store := newFakeStore(primary(1, "a@x", "1", 0))
	seed, _ := store.FindByID(s.ctx, 1)
	store.failWith = errStoreDown

	_, err := NewResolver(store).Resolve(s.ctx, []*models.Contact{seed})
	s.ErrorIs(err, errStoreDown)
}
