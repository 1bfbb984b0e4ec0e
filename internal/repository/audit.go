package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Snapshot reads a box's stored balance and its movement sums from one consistent snapshot.
func (r *AuditRepository) Snapshot(ctx context.Context, owner domain.BoxRef) (domain.Balance, domain.BoxSums, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return domain.Balance{}, domain.BoxSums{}, fmt.Errorf("Snapshot: begin tx: %w", err)
	}
	defer tx.Rollback()

	var stored domain.Balance
	err = tx.QueryRowContext(ctx,
		`SELECT balance_ars, balance_usd FROM cash_boxes WHERE owner_kind = $1 AND owner_ref = $2`,
		owner.Kind, owner.Ref,
	).Scan(&stored.ARS, &stored.USD)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Balance{}, domain.BoxSums{}, fmt.Errorf("Snapshot: %s: %w", owner, domain.ErrBoxNotFound)
		}
		return domain.Balance{}, domain.BoxSums{}, fmt.Errorf("Snapshot: balance: %w", err)
	}

	sums, err := sumsByBox(ctx, tx, owner)
	if err != nil {
		return domain.Balance{}, domain.BoxSums{}, fmt.Errorf("Snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Balance{}, domain.BoxSums{}, fmt.Errorf("Snapshot: commit: %w", err)
	}
	return stored, sums, nil
}
