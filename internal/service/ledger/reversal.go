package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

type ReverseRequest struct {
	Meta
	OperationID uuid.UUID
	Reason      string
}

// ReverseOperation undoes a committed operation by appending one reversal movement per
// original movement with source and destination swapped. Mirrors share the operation and
// are reversed with it. Loan disbursements and repayments are refused: the loan's schedule
// would no longer match its movements.
func (s *Service) ReverseOperation(ctx context.Context, req ReverseRequest) (*Receipt, error) {
	start := time.Now()

	var receipt *Receipt
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		receipt, err = s.reverseTx(ctx, tx, req, false)
		return err
	})

	s.observe(ctx, posting{Kind: domain.OpReversal}, receipt, err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("ReverseOperation: %w", err)
	}
	return receipt, nil
}

// ReverseTx is ReverseOperation inside the caller's transaction. Unlike ReverseOperation it
// also reverses loan transfers, so the loan engine can keep its own rows in step.
func (s *Service) ReverseTx(ctx context.Context, tx *sql.Tx, req ReverseRequest) (*Receipt, error) {
	return s.reverseTx(ctx, tx, req, true)
}

func (s *Service) reverseTx(ctx context.Context, tx *sql.Tx, req ReverseRequest, loanTransfers bool) (*Receipt, error) {
	if req.OperationID == uuid.Nil {
		return nil, fmt.Errorf("ReverseTx: operation id: %w", domain.ErrInvalidRequest)
	}

	if req.IdempotencyKey != "" {
		r, err := s.Replay(ctx, req.Meta, domain.OpReversal)
		if err != nil {
			return nil, fmt.Errorf("ReverseTx: %w", err)
		}
		if r != nil {
			return r, nil
		}
	}

	orig, err := s.operations.GetForUpdate(ctx, tx, req.OperationID)
	if err != nil {
		return nil, fmt.Errorf("ReverseTx: %w", err)
	}
	if !loanTransfers && (orig.Kind == domain.OpLoanDisbursement || orig.Kind == domain.OpLoanRepayment) {
		return nil, fmt.Errorf("ReverseTx: %s is a %s, cancel it through the loan: %w", orig.ID, orig.Kind, domain.ErrInvalidRequest)
	}
	if orig.Kind == domain.OpReversal {
		return nil, fmt.Errorf("ReverseTx: %s is itself a reversal: %w", orig.ID, domain.ErrInvalidRequest)
	}
	if orig.ReversedBy != nil {
		return nil, fmt.Errorf("ReverseTx: %s reversed by %s: %w", orig.ID, *orig.ReversedBy, domain.ErrAlreadyReversed)
	}

	originals, err := s.movements.GetByOperationTx(ctx, tx, orig.ID)
	if err != nil {
		return nil, fmt.Errorf("ReverseTx: %w", err)
	}

	movements := make([]domain.Movement, 0, len(originals))
	for _, m := range originals {
		movements = append(movements, reversalOf(m, req.Reason))
	}

	receipt, err := s.postTx(ctx, tx, posting{
		Kind:        domain.OpReversal,
		Meta:        req.Meta,
		Movements:   movements,
		Description: fmt.Sprintf("Reversal of %s operation %s", orig.Kind, orig.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("ReverseTx: %w", err)
	}

	if err := s.operations.MarkReversed(ctx, tx, orig.ID, receipt.OperationID); err != nil {
		return nil, fmt.Errorf("ReverseTx: %w", err)
	}
	return receipt, nil
}

func reversalOf(m domain.Movement, reason string) domain.Movement {
	return domain.Movement{
		Type:          domain.MovementReversal,
		Source:        m.Destination,
		Destination:   m.Source,
		Amount:        m.DestAmount,
		Currency:      m.DestCurrency,
		DestAmount:    m.Amount,
		DestCurrency:  m.Currency,
		ProjectID:     m.ProjectID,
		LoanID:        m.LoanID,
		InstallmentID: m.InstallmentID,
		Detail: domain.ReversalDetail{
			ReversedMovementID: m.ID,
			ReversedType:       m.Type,
			Reason:             reason,
		},
	}
}
