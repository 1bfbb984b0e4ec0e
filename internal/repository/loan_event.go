package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

const loanEventColumns = `id, loan_id, event_type, from_status, to_status, operation_id, actor, note, created_at`

type LoanEventRepository struct {
	db *sql.DB
}

func NewLoanEventRepository(db *sql.DB) *LoanEventRepository {
	return &LoanEventRepository{db: db}
}

func (r *LoanEventRepository) Create(ctx context.Context, tx *sql.Tx, e *domain.LoanEvent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO loan_events (id, loan_id, event_type, from_status, to_status, operation_id, actor, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.LoanID, e.EventType, e.FromStatus, e.ToStatus,
		nullUUID(e.OperationID), e.Actor, e.Note, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", classify(err))
	}
	return nil
}

func (r *LoanEventRepository) GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]domain.LoanEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+loanEventColumns+` FROM loan_events
		WHERE loan_id = $1 ORDER BY created_at, id`, loanID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByLoanID: %w", err)
	}
	defer rows.Close()

	var events []domain.LoanEvent
	for rows.Next() {
		e, err := scanLoanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByLoanID: scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByLoanID: rows: %w", err)
	}
	return events, nil
}

func scanLoanEvent(s scanner) (*domain.LoanEvent, error) {
	var e domain.LoanEvent
	var operationID uuid.NullUUID
	err := s.Scan(
		&e.ID, &e.LoanID, &e.EventType, &e.FromStatus, &e.ToStatus,
		&operationID, &e.Actor, &e.Note, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.OperationID = fromNullUUID(operationID)
	return &e, nil
}
