package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/josh-kwaku/backoffice-ledger/internal/logging"
)

const conflictBackoff = 20 * time.Millisecond

type scanner interface {
	Scan(dest ...any) error
}

// TxConfig bounds how long a ledger transaction may wait on locks or a single statement.
type TxConfig struct {
	LockTimeout      time.Duration
	StatementTimeout time.Duration
	// ConflictRetries is how many extra attempts a transaction gets after a serialization
	// failure or deadlock. Zero runs fn exactly once.
	ConflictRetries int
}

type DB struct {
	pool *sql.DB
	tx   TxConfig
}

func NewDB(pool *sql.DB, cfg TxConfig) *DB {
	return &DB{pool: pool, tx: cfg}
}

func (d *DB) Conn() *sql.DB {
	return d.pool
}

func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := d.pool.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("BeginTx: %w", classify(err))
	}
	return tx, nil
}

// WithTx runs fn inside a REPEATABLE READ transaction with the configured lock and statement
// timeouts. fn's error aborts the transaction; store-level aborts come back as
// domain.ErrTransactionFailed. Write conflicts rerun fn from scratch up to ConflictRetries
// times, so fn must not keep state between attempts.
func (d *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	for attempt := 0; ; attempt++ {
		err := d.runTx(ctx, fn)
		if err == nil || attempt >= d.tx.ConflictRetries || !isWriteConflict(err) {
			return err
		}
		logging.FromContext(ctx).Debug("retrying transaction after write conflict", "attempt", attempt+1, "error", err)

		timer := time.NewTimer(conflictBackoff * time.Duration(attempt+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

func (d *DB) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return fmt.Errorf("WithTx: %w", err)
	}
	defer tx.Rollback()

	if d.tx.LockTimeout > 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", d.tx.LockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("WithTx: lock_timeout: %w", classify(err))
		}
	}
	if d.tx.StatementTimeout > 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", d.tx.StatementTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("WithTx: statement_timeout: %w", classify(err))
		}
	}

	if err := fn(tx); err != nil {
		return classify(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("WithTx: commit: %w", classify(err))
	}
	return nil
}
