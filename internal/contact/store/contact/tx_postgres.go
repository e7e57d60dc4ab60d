package contact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"contactlink/internal/contact/ports"
	dErrors "contactlink/pkg/domain-errors"
	"contactlink/pkg/requestcontext"
)

const (
	defaultMaxAttempts = 5
	retryBaseDelay     = 10 * time.Millisecond
)

// PostgresTx runs each unit of work in a SERIALIZABLE transaction and retries
// the whole unit when PostgreSQL aborts it with a serialization failure or a
// deadlock.
type PostgresTx struct {
	db          *sqlx.DB
	timeout     time.Duration
	maxAttempts int
	logger      *slog.Logger
}

type TxOption func(*PostgresTx)

func WithTxTimeout(d time.Duration) TxOption {
	return func(t *PostgresTx) {
		if d > 0 {
			t.timeout = d
		}
	}
}

func WithMaxAttempts(n int) TxOption {
	return func(t *PostgresTx) {
		if n > 0 {
			t.maxAttempts = n
		}
	}
}

func WithTxLogger(logger *slog.Logger) TxOption {
	return func(t *PostgresTx) {
		t.logger = logger
	}
}

func NewPostgresTxRunner(db *sqlx.DB, opts ...TxOption) *PostgresTx {
	t := &PostgresTx{
		db:          db,
		timeout:     defaultTxTimeout,
		maxAttempts: defaultMaxAttempts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RunInTx implements ports.ContactStoreTx.
func (t *PostgresTx) RunInTx(ctx context.Context, fn func(store ports.ContactStore) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	var err error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		err = t.runOnce(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		t.logger.DebugContext(ctx, "retrying contact transaction",
			"request_id", requestcontext.RequestID(ctx),
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "transaction aborted: context cancelled")
		case <-time.After(retryBaseDelay * time.Duration(1<<(attempt-1))):
		}
	}
	return fmt.Errorf("contact transaction failed after %d attempts: %w", t.maxAttempts, err)
}

func (t *PostgresTx) runOnce(ctx context.Context, fn func(store ports.ContactStore) error) error {
	tx, err := t.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin contact transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(NewPostgresTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit contact transaction: %w", err)
	}
	return nil
}

// IsRetryable reports whether err is a serialization failure (40001) or a
// deadlock (40P01), after which the whole unit of work may be replayed.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
