package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestWithTx_SetsTimeoutsAndCommits(t *testing.T) {
	pool, mock := newMockDB(t)
	db := NewDB(pool, TxConfig{LockTimeout: 2 * time.Second, StatementTimeout: 5 * time.Second})

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout = 2000")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL statement_timeout = 5000")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	called := false
	err := db.WithTx(context.Background(), func(tx *sql.Tx) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	pool, mock := newMockDB(t)
	db := NewDB(pool, TxConfig{})

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := db.WithTx(context.Background(), func(tx *sql.Tx) error {
		return domain.ErrInsufficientFunds
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_CommitConflictIsRetryable(t *testing.T) {
	pool, mock := newMockDB(t)
	db := NewDB(pool, TxConfig{})

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&pq.Error{Code: "40001"})

	err := db.WithTx(context.Background(), func(tx *sql.Tx) error { return nil })
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
}

func TestWithTx_RetriesWriteConflict(t *testing.T) {
	pool, mock := newMockDB(t)
	db := NewDB(pool, TxConfig{ConflictRetries: 1})

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectBegin()
	mock.ExpectCommit()

	attempts := 0
	err := db.WithTx(context.Background(), func(tx *sql.Tx) error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_DoesNotRetryLockTimeout(t *testing.T) {
	pool, mock := newMockDB(t)
	db := NewDB(pool, TxConfig{ConflictRetries: 3})

	mock.ExpectBegin()
	mock.ExpectRollback()

	attempts := 0
	err := db.WithTx(context.Background(), func(tx *sql.Tx) error {
		attempts++
		return &pq.Error{Code: "55P03"}
	})
	assert.ErrorIs(t, err, domain.ErrTransactionFailed)
	assert.Equal(t, 1, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMovementPage_CountsInsideSnapshot(t *testing.T) {
	pool, mock := newMockDB(t)
	repo := NewMovementRepository(pool)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM movements")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY seq DESC LIMIT $1 OFFSET $2")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	page, total, err := repo.Page(context.Background(), domain.MovementFilter{}, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, page)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationCreateTx_KeyConflict(t *testing.T) {
	pool, mock := newMockDB(t)
	repo := NewOperationRepository(pool)
	key := "pay-1"
	op := &domain.Operation{ID: uuid.New(), Kind: domain.OpProjectPayment, IdempotencyKey: &key, Actor: "test", CreatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_operations").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO ledger_operations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := pool.Begin()
	require.NoError(t, err)

	created, err := repo.CreateTx(context.Background(), tx, op)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateTx(context.Background(), tx, op)
	require.NoError(t, err)
	assert.False(t, created, "conflicting key writes nothing")

	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationGetByIdempotencyKey_NotFound(t *testing.T) {
	pool, mock := newMockDB(t)
	repo := NewOperationRepository(pool)

	mock.ExpectQuery("FROM ledger_operations WHERE idempotency_key").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "idempotency_key", "actor", "reversed_by", "created_at"}))

	_, err := repo.GetByIdempotencyKey(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrOperationNotFound))
}
