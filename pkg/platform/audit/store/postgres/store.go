package postgres

import (
	"context"
	"database/sql"
	"fmt"

	audit "contactlink/pkg/platform/audit"

	"github.com/google/uuid"
)

// Store implements audit.Store on the contact_events table created by the
// contact migrations.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectEvents = `
	SELECT id, category, timestamp, subject, action,
		   primary_id, reason, request_id, client_ip
	FROM contact_events
`

// Append inserts an event. Re-delivery of the same event id is ignored.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	// The action decides the category so replays stay consistent.
	category := audit.AuditEvent(event.Action).Category()

	query := `
		INSERT INTO contact_events (
			id, category, timestamp, subject, action,
			primary_id, reason, request_id, client_ip
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(category),
		event.Timestamp,
		event.Subject,
		event.Action,
		event.PrimaryID,
		event.Reason,
		event.RequestID,
		event.ClientIP,
	)
	if err != nil {
		return fmt.Errorf("insert contact event: %w", err)
	}
	return nil
}

// ListBySubject returns events for one subject, oldest first.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectEvents+`
		WHERE subject = $1
		ORDER BY timestamp ASC, id ASC
	`, subject)
	if err != nil {
		return nil, fmt.Errorf("query contact events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the N most recent events in emission order.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT * FROM (`+selectEvents+`
		ORDER BY timestamp DESC
		LIMIT $1
	) recent ORDER BY timestamp ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("query contact events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			category string
			event    audit.Event
		)
		err := rows.Scan(
			&event.ID,
			&category,
			&event.Timestamp,
			&event.Subject,
			&event.Action,
			&event.PrimaryID,
			&event.Reason,
			&event.RequestID,
			&event.ClientIP,
		)
		if err != nil {
			return nil, fmt.Errorf("scan contact event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contact events: %w", err)
	}
	return events, nil
}
