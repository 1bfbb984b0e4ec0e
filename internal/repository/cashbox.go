package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

const cashBoxColumns = `id, owner_kind, owner_ref, balance_ars, balance_usd,
	lifetime_received_ars, lifetime_received_usd, lifetime_paid_ars, lifetime_paid_usd,
	status, version, last_movement_at, created_at, retired_at`

type CashBoxRepository struct {
	db *sql.DB
}

func NewCashBoxRepository(db *sql.DB) *CashBoxRepository {
	return &CashBoxRepository{db: db}
}

func (r *CashBoxRepository) GetByOwner(ctx context.Context, owner domain.BoxRef) (*domain.CashBox, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+cashBoxColumns+` FROM cash_boxes WHERE owner_kind = $1 AND owner_ref = $2`,
		owner.Kind, owner.Ref,
	)
	b, err := scanCashBox(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByOwner: %s: %w", owner, domain.ErrBoxNotFound)
		}
		return nil, fmt.Errorf("GetByOwner: %w", err)
	}
	return b, nil
}

func (r *CashBoxRepository) GetBalance(ctx context.Context, owner domain.BoxRef) (domain.Balance, error) {
	var bal domain.Balance
	err := r.db.QueryRowContext(ctx,
		`SELECT balance_ars, balance_usd FROM cash_boxes WHERE owner_kind = $1 AND owner_ref = $2`,
		owner.Kind, owner.Ref,
	).Scan(&bal.ARS, &bal.USD)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Balance{}, fmt.Errorf("GetBalance: %s: %w", owner, domain.ErrBoxNotFound)
		}
		return domain.Balance{}, fmt.Errorf("GetBalance: %w", err)
	}
	return bal, nil
}

func (r *CashBoxRepository) List(ctx context.Context, kind *domain.OwnerKind) ([]domain.CashBox, error) {
	query := `SELECT ` + cashBoxColumns + ` FROM cash_boxes`
	var args []any
	if kind != nil {
		query += ` WHERE owner_kind = $1`
		args = append(args, *kind)
	}
	query += ` ORDER BY owner_kind, created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	var boxes []domain.CashBox
	for rows.Next() {
		b, err := scanCashBox(rows)
		if err != nil {
			return nil, fmt.Errorf("List: scan: %w", err)
		}
		boxes = append(boxes, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows: %w", err)
	}
	return boxes, nil
}

// Ensure creates a zero-balance box for owner if none exists. It is safe to call repeatedly.
func (r *CashBoxRepository) Ensure(ctx context.Context, owner domain.BoxRef) (*domain.CashBox, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO cash_boxes (id, owner_kind, owner_ref) VALUES ($1, $2, $3)
		ON CONFLICT (owner_kind, owner_ref) DO NOTHING`,
		uuid.New(), owner.Kind, owner.Ref,
	); err != nil {
		return nil, fmt.Errorf("Ensure: %w", err)
	}
	b, err := r.GetByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("Ensure: %w", err)
	}
	return b, nil
}

// CreateTx inserts a fresh box inside tx. Used when the owner is created in the same tx.
func (r *CashBoxRepository) CreateTx(ctx context.Context, tx *sql.Tx, owner domain.BoxRef, now time.Time) (*domain.CashBox, error) {
	b := &domain.CashBox{
		ID:        uuid.New(),
		Owner:     owner,
		Status:    domain.BoxStatusActive,
		Version:   1,
		CreatedAt: now,
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO cash_boxes (id, owner_kind, owner_ref, status, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID, owner.Kind, owner.Ref, b.Status, b.Version, b.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("CreateTx: %w", err)
	}
	return b, nil
}

func (r *CashBoxRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, owner domain.BoxRef) (*domain.CashBox, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+cashBoxColumns+` FROM cash_boxes
		WHERE owner_kind = $1 AND owner_ref = $2 FOR UPDATE`,
		owner.Kind, owner.Ref,
	)
	b, err := scanCashBox(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %s: %w", owner, domain.ErrBoxNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", classify(err))
	}
	return b, nil
}

// ApplyDelta writes box.Balance+delta under the version read by GetForUpdate.
func (r *CashBoxRepository) ApplyDelta(ctx context.Context, tx *sql.Tx, box *domain.CashBox, delta domain.BoxDelta) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE cash_boxes SET
			balance_ars = $1, balance_usd = $2,
			lifetime_received_ars = lifetime_received_ars + $3,
			lifetime_received_usd = lifetime_received_usd + $4,
			lifetime_paid_ars = lifetime_paid_ars + $5,
			lifetime_paid_usd = lifetime_paid_usd + $6,
			last_movement_at = $7, version = $8
		WHERE id = $9 AND version = $10`,
		box.Balance.ARS.Add(delta.Balance.ARS), box.Balance.USD.Add(delta.Balance.USD),
		delta.Received.ARS, delta.Received.USD, delta.Paid.ARS, delta.Paid.USD,
		delta.At, box.Version+1, box.ID, box.Version,
	)
	if err != nil {
		return fmt.Errorf("ApplyDelta: %w", classify(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ApplyDelta: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("ApplyDelta: %w", domain.ErrVersionConflict)
	}
	return nil
}

func (r *CashBoxRepository) Retire(ctx context.Context, tx *sql.Tx, box *domain.CashBox, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE cash_boxes SET status = $1, retired_at = $2, version = version + 1
		WHERE id = $3 AND status = $4`,
		domain.BoxStatusRetired, at, box.ID, domain.BoxStatusActive,
	)
	if err != nil {
		return fmt.Errorf("Retire: %w", classify(err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Retire: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Retire: %w", domain.ErrBoxRetired)
	}
	return nil
}

func scanCashBox(s scanner) (*domain.CashBox, error) {
	var b domain.CashBox
	var received, paid domain.Balance
	err := s.Scan(
		&b.ID, &b.Owner.Kind, &b.Owner.Ref, &b.Balance.ARS, &b.Balance.USD,
		&received.ARS, &received.USD, &paid.ARS, &paid.USD,
		&b.Status, &b.Version, &b.LastMovementAt, &b.CreatedAt, &b.RetiredAt,
	)
	if err != nil {
		return nil, err
	}
	b.LifetimeReceived = received
	b.LifetimePaid = paid
	return &b, nil
}
