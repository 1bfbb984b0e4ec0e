package loan

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
	"github.com/josh-kwaku/backoffice-ledger/internal/service/ledger"
)

// ActivateLoan moves a pending loan to active; payments are accepted from then on.
func (s *Service) ActivateLoan(ctx context.Context, loanID uuid.UUID, actor string) (*LoanDetail, error) {
	start := time.Now()
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		l, err := s.loans.GetForUpdate(ctx, tx, loanID)
		if err != nil {
			return err
		}
		return s.transition(ctx, tx, l, domain.LoanStatusActive, domain.LoanEventActivated, nil, actor, "")
	})
	observe(ctx, "loan_activate", start, err, "loan_id", loanID)
	if err != nil {
		return nil, fmt.Errorf("ActivateLoan: %w", err)
	}
	return s.GetLoan(ctx, loanID)
}

type CancelRequest struct {
	ledger.Meta
	LoanID uuid.UUID
	Reason string
}

// CancelLoan cancels a draft or pending loan and every installment not yet paid. Under the
// reverse policy a disbursed principal is returned to the lender in the same transaction.
func (s *Service) CancelLoan(ctx context.Context, req CancelRequest) (*LoanDetail, error) {
	start := time.Now()
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return s.cancelTx(ctx, tx, req)
	})
	observe(ctx, "loan_cancel", start, err, "loan_id", req.LoanID, "policy", s.config.CancellationPolicy)
	if err != nil {
		return nil, fmt.Errorf("CancelLoan: %w", err)
	}
	return s.GetLoan(ctx, req.LoanID)
}

func (s *Service) cancelTx(ctx context.Context, tx *sql.Tx, req CancelRequest) error {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return fmt.Errorf("cancellation reason: %w", domain.ErrInvalidRequest)
	}

	l, err := s.loans.GetForUpdate(ctx, tx, req.LoanID)
	if err != nil {
		return err
	}
	if !l.Status.CanTransitionTo(domain.LoanStatusCancelled) {
		return fmt.Errorf("loan %s is %s: %w", l.Code, l.Status, domain.ErrIllegalTransition)
	}

	installments, err := s.loans.GetInstallmentsForUpdate(ctx, tx, l.ID)
	if err != nil {
		return err
	}
	for i := range installments {
		if installments[i].Status == domain.InstallmentStatusPaid {
			continue
		}
		installments[i].Status = domain.InstallmentStatusCancelled
		if err := s.loans.UpdateInstallment(ctx, tx, &installments[i]); err != nil {
			return err
		}
	}

	var opID *uuid.UUID
	if s.config.CancellationPolicy == CancelReverse && l.DisbursementOperationID != nil {
		receipt, err := s.ledger.ReverseTx(ctx, tx, ledger.ReverseRequest{
			Meta:        req.Meta,
			OperationID: *l.DisbursementOperationID,
			Reason:      fmt.Sprintf("loan %s cancelled: %s", l.Code, reason),
		})
		if err != nil {
			return err
		}
		opID = &receipt.OperationID
	}

	l.CancellationReason = &reason
	return s.transition(ctx, tx, l, domain.LoanStatusCancelled, domain.LoanEventCancelled, opID, req.Actor, reason)
}
