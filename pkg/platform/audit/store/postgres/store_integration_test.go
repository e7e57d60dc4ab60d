//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	audit "contactlink/pkg/platform/audit"
	"contactlink/pkg/platform/audit/store/postgres"
	"contactlink/pkg/testutil/containers"
)

type PostgresAuditSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
	now      time.Time
}

func TestPostgresAuditSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAuditSuite))
}

func (s *PostgresAuditSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB.DB)
}

func (s *PostgresAuditSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "contact_events"))
	s.now = time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
}

func (s *PostgresAuditSuite) event(action audit.AuditEvent, subject string, offset time.Duration) audit.Event {
	return audit.Event{
		ID:        uuid.New(),
		Timestamp: s.now.Add(offset),
		Subject:   subject,
		Action:    string(action),
		PrimaryID: "1",
		RequestID: "req-1",
	}
}

func (s *PostgresAuditSuite) TestAppendDerivesCategoryAndIsIdempotent() {
	ctx := context.Background()
	ev := s.event(audit.EventContactDemoted, "23", 0)
	ev.Category = audit.CategoryOperations

	s.Require().NoError(s.store.Append(ctx, ev))
	s.Require().NoError(s.store.Append(ctx, ev), "redelivery is ignored")

	got, err := s.store.ListBySubject(ctx, "23")
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(ev.ID, got[0].ID)
	s.Equal(audit.CategoryCompliance, got[0].Category)
	s.Equal("1", got[0].PrimaryID)
	s.True(got[0].Timestamp.Equal(ev.Timestamp))
}

func (s *PostgresAuditSuite) TestListRecentKeepsEmissionOrder() {
	ctx := context.Background()
	for i, subject := range []string{"1", "2", "3"} {
		s.Require().NoError(s.store.Append(ctx, s.event(audit.EventContactCreated, subject, time.Duration(i)*time.Minute)))
	}

	got, err := s.store.ListRecent(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("2", got[0].Subject)
	s.Equal("3", got[1].Subject)
}
