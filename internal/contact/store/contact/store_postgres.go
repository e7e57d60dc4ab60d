package contact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"contactlink/internal/contact/models"
	"contactlink/pkg/platform/sentinel"
)

const contactsTable = "contacts"

var contactColumns = []string{
	"id", "email", "phone_number", "linked_id", "link_precedence",
	"created_at", "updated_at", "deleted_at",
}

// PostgresStore persists contacts in PostgreSQL. A store bound to a *sqlx.Tx is
// what RunInTx hands to a unit of work; a store bound to the pool runs each
// call on its own.
type PostgresStore struct {
	q sqlx.ExtContext
}

// NewPostgres constructs a store that runs statements directly on db.
func NewPostgres(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{q: db}
}

// NewPostgresTx binds a store to an open transaction.
func NewPostgresTx(tx *sqlx.Tx) *PostgresStore {
	return &PostgresStore{q: tx}
}

type contactRow struct {
	ID             int64          `db:"id"`
	Email          sql.NullString `db:"email"`
	PhoneNumber    sql.NullString `db:"phone_number"`
	LinkedID       sql.NullInt64  `db:"linked_id"`
	LinkPrecedence string         `db:"link_precedence"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
	DeletedAt      sql.NullTime   `db:"deleted_at"`
}

func (r contactRow) toModel() *models.Contact {
	c := &models.Contact{
		ID:             models.ContactID(r.ID),
		Email:          r.Email.String,
		PhoneNumber:    r.PhoneNumber.String,
		LinkPrecedence: models.LinkPrecedence(r.LinkPrecedence),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.LinkedID.Valid {
		linked := models.ContactID(r.LinkedID.Int64)
		c.LinkedID = &linked
	}
	if r.DeletedAt.Valid {
		deleted := r.DeletedAt.Time
		c.DeletedAt = &deleted
	}
	return c
}

func toModels(rows []contactRow) []*models.Contact {
	out := make([]*models.Contact, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullID(id *models.ContactID) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}

func (s *PostgresStore) FindByEmailOrPhone(ctx context.Context, email, phoneNumber string) ([]*models.Contact, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(contactColumns...)
	sb.From(contactsTable)

	var matches []string
	if email != "" {
		matches = append(matches, sb.Equal("email", email))
	}
	if phoneNumber != "" {
		matches = append(matches, sb.Equal("phone_number", phoneNumber))
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sb.Where(sb.Or(matches...), sb.IsNull("deleted_at"))
	sb.OrderBy("id").Asc()

	query, args := sb.Build()
	var rows []contactRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("find contacts by email or phone: %w", err)
	}
	return toModels(rows), nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id models.ContactID) (*models.Contact, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(contactColumns...)
	sb.From(contactsTable)
	sb.Where(sb.Equal("id", int64(id)), sb.IsNull("deleted_at"))

	query, args := sb.Build()
	var row contactRow
	if err := sqlx.GetContext(ctx, s.q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contact %d: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find contact %d: %w", id, err)
	}
	return row.toModel(), nil
}

func (s *PostgresStore) FindByLinkedID(ctx context.Context, id models.ContactID) ([]*models.Contact, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(contactColumns...)
	sb.From(contactsTable)
	sb.Where(sb.Equal("linked_id", int64(id)), sb.IsNull("deleted_at"))
	sb.OrderBy("id").Asc()

	query, args := sb.Build()
	var rows []contactRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("find contacts linked to %d: %w", id, err)
	}
	return toModels(rows), nil
}

// Create stamps created_at with clock_timestamp() rather than now(), which is
// fixed at transaction start; a retried unit gets a fresh stamp.
func (s *PostgresStore) Create(ctx context.Context, fields models.NewContact) (*models.Contact, error) {
	query := `
		INSERT INTO contacts (email, phone_number, linked_id, link_precedence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, clock_timestamp(), clock_timestamp())
		RETURNING id, created_at
	`
	var row struct {
		ID        int64     `db:"id"`
		CreatedAt time.Time `db:"created_at"`
	}
	err := sqlx.GetContext(ctx, s.q, &row, query,
		nullString(fields.Email),
		nullString(fields.PhoneNumber),
		nullID(fields.LinkedID),
		string(fields.LinkPrecedence),
	)
	if err != nil {
		return nil, translateWriteError("create contact", err)
	}
	return fields.Build(models.ContactID(row.ID), row.CreatedAt.UTC()), nil
}

// ApplyReassignments updates every target or none. On a pool-bound store the
// batch gets its own transaction.
func (s *PostgresStore) ApplyReassignments(ctx context.Context, reassignments []models.Reassignment) error {
	if len(reassignments) == 0 {
		return nil
	}
	if db, ok := s.q.(*sqlx.DB); ok {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin reassignment batch: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()
		if err := NewPostgresTx(tx).ApplyReassignments(ctx, reassignments); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit reassignment batch: %w", err)
		}
		return nil
	}

	query := `
		UPDATE contacts
		SET link_precedence = $1, linked_id = $2, updated_at = $3
		WHERE id = $4 AND deleted_at IS NULL
	`
	for _, r := range reassignments {
		res, err := s.q.ExecContext(ctx, query,
			string(r.LinkPrecedence),
			int64(r.LinkedID),
			r.UpdatedAt,
			int64(r.ContactID),
		)
		if err != nil {
			return translateWriteError(fmt.Sprintf("reassign contact %d", r.ContactID), err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("reassign contact %d: %w", r.ContactID, err)
		}
		if affected == 0 {
			return fmt.Errorf("reassign contact %d: %w", r.ContactID, sentinel.ErrNotFound)
		}
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Contact, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(contactColumns...)
	sb.From(contactsTable)
	sb.Where(sb.IsNull("deleted_at"))
	sb.OrderBy("id").Asc()

	query, args := sb.Build()
	var rows []contactRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return toModels(rows), nil
}

// Import inserts fixtures with their own ids, primaries first so linked_id
// references resolve, then moves the id sequence past the largest id.
func (s *PostgresStore) Import(ctx context.Context, contacts []*models.Contact) error {
	if len(contacts) == 0 {
		return nil
	}
	ordered := make([]*models.Contact, 0, len(contacts))
	for _, c := range contacts {
		if c.IsPrimary() {
			ordered = append(ordered, c)
		}
	}
	for _, c := range contacts {
		if !c.IsPrimary() {
			ordered = append(ordered, c)
		}
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(contactsTable)
	ib.Cols(contactColumns...)
	for _, c := range ordered {
		if err := c.CheckShape(); err != nil {
			return fmt.Errorf("import contact %d: %w: %s", c.ID, sentinel.ErrInvalidState, err.Error())
		}
		var deletedAt sql.NullTime
		if c.DeletedAt != nil {
			deletedAt = sql.NullTime{Time: *c.DeletedAt, Valid: true}
		}
		ib.Values(
			int64(c.ID),
			nullString(c.Email),
			nullString(c.PhoneNumber),
			nullID(c.LinkedID),
			string(c.LinkPrecedence),
			c.CreatedAt,
			c.UpdatedAt,
			deletedAt,
		)
	}
	query, args := ib.Build()
	if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
		return translateWriteError("import contacts", err)
	}

	if _, err := s.q.ExecContext(ctx,
		`SELECT setval(pg_get_serial_sequence('contacts', 'id'), (SELECT MAX(id) FROM contacts))`,
	); err != nil {
		return fmt.Errorf("advance contact id sequence: %w", err)
	}
	return nil
}

// translateWriteError maps constraint violations onto sentinel errors.
func translateWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", op, sentinel.ErrConflict)
		case "23503", "23514":
			return fmt.Errorf("%s: %w: %s", op, sentinel.ErrInvalidState, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
