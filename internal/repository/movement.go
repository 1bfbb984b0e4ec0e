package repository

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

const movementColumns = `id, seq, operation_id, type, source_kind, source_ref,
	destination_kind, destination_ref, amount, currency, dest_amount, dest_currency,
	description, project_id, loan_id, installment_id, detail, actor, created_at`

const defaultQueryBatch = 200

type MovementRepository struct {
	db    *sql.DB
	batch int
}

func NewMovementRepository(db *sql.DB) *MovementRepository {
	return &MovementRepository{db: db, batch: defaultQueryBatch}
}

// Append writes m inside tx and fills in its sequence number. It is the only write path.
func (r *MovementRepository) Append(ctx context.Context, tx *sql.Tx, m *domain.Movement) error {
	detail, err := domain.EncodeDetail(m.Detail)
	if err != nil {
		return fmt.Errorf("Append: %w", err)
	}
	err = tx.QueryRowContext(ctx,
		`INSERT INTO movements (
			id, operation_id, type, source_kind, source_ref, destination_kind, destination_ref,
			amount, currency, dest_amount, dest_currency, description,
			project_id, loan_id, installment_id, detail, actor, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING seq`,
		m.ID, m.OperationID, m.Type, m.Source.Kind, m.Source.Ref, m.Destination.Kind, m.Destination.Ref,
		m.Amount, m.Currency, m.DestAmount, m.DestCurrency, m.Description,
		nullUUID(m.ProjectID), nullUUID(m.LoanID), nullUUID(m.InstallmentID), string(detail), m.Actor, m.CreatedAt,
	).Scan(&m.Seq)
	if err != nil {
		return fmt.Errorf("Append: %w", classify(err))
	}
	return nil
}

// Query yields movements matching f, newest first. Rows are fetched lazily in keyset
// batches; each range over the sequence starts from the newest movement again.
func (r *MovementRepository) Query(ctx context.Context, f domain.MovementFilter) iter.Seq2[domain.Movement, error] {
	return func(yield func(domain.Movement, error) bool) {
		var before int64
		for {
			page, err := r.queryBatch(ctx, f, before, r.batch)
			if err != nil {
				yield(domain.Movement{}, fmt.Errorf("Query: %w", err))
				return
			}
			for _, m := range page {
				if !yield(m, nil) {
					return
				}
			}
			if len(page) < r.batch {
				return
			}
			before = page[len(page)-1].Seq
		}
	}
}

func (r *MovementRepository) queryBatch(ctx context.Context, f domain.MovementFilter, before int64, limit int) ([]domain.Movement, error) {
	where, args := movementWhere(f)
	if before > 0 {
		args = append(args, before)
		where = append(where, fmt.Sprintf("seq < $%d", len(args)))
	}
	args = append(args, limit)

	query := `SELECT ` + movementColumns + ` FROM movements` + joinWhere(where) +
		fmt.Sprintf(` ORDER BY seq DESC LIMIT $%d`, len(args))

	return collect(ctx, r.db, query, args...)
}

// Page returns one offset page of movements matching f plus the total match count. Both come
// from the same snapshot, so total agrees with the page under concurrent appends.
func (r *MovementRepository) Page(ctx context.Context, f domain.MovementFilter, limit, offset int) ([]domain.Movement, int, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("Page: %w", classify(err))
	}
	defer tx.Rollback()

	where, args := movementWhere(f)

	var total int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM movements`+joinWhere(where), args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("Page: count: %w", err)
	}

	args = append(args, limit, offset)
	query := `SELECT ` + movementColumns + ` FROM movements` + joinWhere(where) +
		fmt.Sprintf(` ORDER BY seq DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	movements, err := collect(ctx, tx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("Page: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("Page: commit: %w", classify(err))
	}
	return movements, total, nil
}

func (r *MovementRepository) GetByOperation(ctx context.Context, operationID uuid.UUID) ([]domain.Movement, error) {
	movements, err := collect(ctx, r.db,
		`SELECT `+movementColumns+` FROM movements WHERE operation_id = $1 ORDER BY seq`, operationID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByOperation: %w", err)
	}
	return movements, nil
}

// GetByOperationTx reads inside tx so a reversal sees exactly what it is about to undo.
func (r *MovementRepository) GetByOperationTx(ctx context.Context, tx *sql.Tx, operationID uuid.UUID) ([]domain.Movement, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+movementColumns+` FROM movements WHERE operation_id = $1 ORDER BY seq`, operationID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByOperationTx: %w", classify(err))
	}
	movements, err := scanMovements(rows)
	if err != nil {
		return nil, fmt.Errorf("GetByOperationTx: %w", err)
	}
	return movements, nil
}

func (r *MovementRepository) SumsByBox(ctx context.Context, owner domain.BoxRef) (domain.BoxSums, error) {
	sums, err := sumsByBox(ctx, r.db, owner)
	if err != nil {
		return domain.BoxSums{}, fmt.Errorf("SumsByBox: %w", err)
	}
	return sums, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func sumsByBox(ctx context.Context, q queryRower, owner domain.BoxRef) (domain.BoxSums, error) {
	var s domain.BoxSums
	err := q.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(dest_amount) FILTER (WHERE destination_kind = $1 AND destination_ref = $2 AND dest_currency = 'ARS'), 0),
			COALESCE(SUM(dest_amount) FILTER (WHERE destination_kind = $1 AND destination_ref = $2 AND dest_currency = 'USD'), 0),
			COALESCE(SUM(amount) FILTER (WHERE source_kind = $1 AND source_ref = $2 AND currency = 'ARS'), 0),
			COALESCE(SUM(amount) FILTER (WHERE source_kind = $1 AND source_ref = $2 AND currency = 'USD'), 0)
		FROM movements
		WHERE (destination_kind = $1 AND destination_ref = $2) OR (source_kind = $1 AND source_ref = $2)`,
		owner.Kind, owner.Ref,
	).Scan(&s.Inbound.ARS, &s.Inbound.USD, &s.Outbound.ARS, &s.Outbound.USD)
	if err != nil {
		return domain.BoxSums{}, err
	}
	return s, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func collect(ctx context.Context, q querier, query string, args ...any) ([]domain.Movement, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanMovements(rows)
}

func scanMovements(rows *sql.Rows) ([]domain.Movement, error) {
	defer rows.Close()

	var movements []domain.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		movements = append(movements, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return movements, nil
}

func movementWhere(f domain.MovementFilter) ([]string, []any) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Owner != nil {
		k, ref := arg(f.Owner.Kind), arg(f.Owner.Ref)
		where = append(where, fmt.Sprintf(
			"((source_kind = %[1]s AND source_ref = %[2]s) OR (destination_kind = %[1]s AND destination_ref = %[2]s))", k, ref))
	}
	if f.ProjectID != nil {
		where = append(where, "project_id = "+arg(*f.ProjectID))
	}
	if f.OperationID != nil {
		where = append(where, "operation_id = "+arg(*f.OperationID))
	}
	if f.From != nil {
		where = append(where, "created_at >= "+arg(*f.From))
	}
	if f.To != nil {
		where = append(where, "created_at < "+arg(*f.To))
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		where = append(where, "type = ANY("+arg(pq.Array(types))+")")
	}
	return where, args
}

func joinWhere(where []string) string {
	if len(where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(where, " AND ")
}

func scanMovement(s scanner) (*domain.Movement, error) {
	var m domain.Movement
	var projectID, loanID, installmentID uuid.NullUUID
	var detail []byte

	err := s.Scan(
		&m.ID, &m.Seq, &m.OperationID, &m.Type, &m.Source.Kind, &m.Source.Ref,
		&m.Destination.Kind, &m.Destination.Ref, &m.Amount, &m.Currency, &m.DestAmount, &m.DestCurrency,
		&m.Description, &projectID, &loanID, &installmentID, &detail, &m.Actor, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.ProjectID = fromNullUUID(projectID)
	m.LoanID = fromNullUUID(loanID)
	m.InstallmentID = fromNullUUID(installmentID)

	m.Detail, err = domain.DecodeDetail(m.Type, detail)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func fromNullUUID(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}
