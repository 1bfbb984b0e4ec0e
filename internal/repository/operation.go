package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

const operationColumns = `id, kind, idempotency_key, actor, reversed_by, created_at`

type OperationRepository struct {
	db *sql.DB
}

func NewOperationRepository(db *sql.DB) *OperationRepository {
	return &OperationRepository{db: db}
}

// CreateTx records op inside tx. When op carries an idempotency key that is already taken,
// it returns false and writes nothing; the caller replays the stored operation instead.
func (r *OperationRepository) CreateTx(ctx context.Context, tx *sql.Tx, op *domain.Operation) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_operations (id, kind, idempotency_key, actor, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		op.ID, op.Kind, op.IdempotencyKey, op.Actor, op.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("CreateTx: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("CreateTx: rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *OperationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	op, err := scanOperation(r.db.QueryRowContext(ctx,
		`SELECT `+operationColumns+` FROM ledger_operations WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrOperationNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return op, nil
}

func (r *OperationRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Operation, error) {
	op, err := scanOperation(r.db.QueryRowContext(ctx,
		`SELECT `+operationColumns+` FROM ledger_operations WHERE idempotency_key = $1`, key,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByIdempotencyKey: %w", domain.ErrOperationNotFound)
		}
		return nil, fmt.Errorf("GetByIdempotencyKey: %w", err)
	}
	return op, nil
}

func (r *OperationRepository) GetByIdempotencyKeyTx(ctx context.Context, tx *sql.Tx, key string) (*domain.Operation, error) {
	op, err := scanOperation(tx.QueryRowContext(ctx,
		`SELECT `+operationColumns+` FROM ledger_operations WHERE idempotency_key = $1`, key,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByIdempotencyKeyTx: %w", domain.ErrOperationNotFound)
		}
		return nil, fmt.Errorf("GetByIdempotencyKeyTx: %w", classify(err))
	}
	return op, nil
}

// GetForUpdate locks the operation row so two reversals of the same operation serialize.
func (r *OperationRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Operation, error) {
	op, err := scanOperation(tx.QueryRowContext(ctx,
		`SELECT `+operationColumns+` FROM ledger_operations WHERE id = $1 FOR UPDATE`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrOperationNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", classify(err))
	}
	return op, nil
}

func (r *OperationRepository) MarkReversed(ctx context.Context, tx *sql.Tx, id, reversalID uuid.UUID) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE ledger_operations SET reversed_by = $2 WHERE id = $1 AND reversed_by IS NULL`,
		id, reversalID,
	)
	if err != nil {
		return fmt.Errorf("MarkReversed: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkReversed: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("MarkReversed: %w", domain.ErrAlreadyReversed)
	}
	return nil
}

func scanOperation(s scanner) (*domain.Operation, error) {
	var op domain.Operation
	var reversedBy uuid.NullUUID
	err := s.Scan(&op.ID, &op.Kind, &op.IdempotencyKey, &op.Actor, &reversedBy, &op.CreatedAt)
	if err != nil {
		return nil, err
	}
	op.ReversedBy = fromNullUUID(reversedBy)
	return &op, nil
}
