package loan

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
	"github.com/josh-kwaku/backoffice-ledger/internal/service/ledger"
)

var hundred = decimal.NewFromInt(100)

type PaymentRequest struct {
	ledger.Meta
	InstallmentID uuid.UUID
	Amount        decimal.Decimal
	// Date is when the borrower paid; zero means now.
	Date time.Time
}

type PaymentResult struct {
	Loan        domain.Loan
	Installment domain.LoanInstallment
	Receipt     *ledger.Receipt
}

// RegisterInstallmentPayment applies a borrower payment to one installment and repays the
// lender (or Master) through the ledger. The loan is marked paid in the same operation once
// no principal is outstanding.
func (s *Service) RegisterInstallmentPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	start := time.Now()
	res, err := s.registerPayment(ctx, req)
	observe(ctx, "loan_payment", start, err, "installment_id", req.InstallmentID, "amount", req.Amount)
	if err != nil {
		return nil, fmt.Errorf("RegisterInstallmentPayment: %w", err)
	}
	return res, nil
}

func (s *Service) registerPayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("amount %s: %w", req.Amount, domain.ErrInvalidAmount)
	}

	target, err := s.loans.GetInstallment(ctx, req.InstallmentID)
	if err != nil {
		return nil, err
	}

	if r, err := s.ledger.Replay(ctx, req.Meta, domain.OpLoanRepayment); err != nil || r != nil {
		if err != nil {
			return nil, err
		}
		return s.replayedPayment(ctx, target, r)
	}

	date := req.Date
	if date.IsZero() {
		date = s.now()
	}

	var res *PaymentResult
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		l, err := s.loans.GetForUpdate(ctx, tx, target.LoanID)
		if err != nil {
			return err
		}
		if l.Status != domain.LoanStatusActive {
			return fmt.Errorf("loan %s is %s: %w", l.Code, l.Status, domain.ErrInstallmentClosed)
		}
		if !req.Amount.Equal(l.Currency.Round(req.Amount)) {
			return fmt.Errorf("amount %s: %w", req.Amount, domain.ErrInvalidAmount)
		}

		installments, err := s.loans.GetInstallmentsForUpdate(ctx, tx, l.ID)
		if err != nil {
			return err
		}
		inst := findInstallment(installments, req.InstallmentID)
		if inst == nil {
			return domain.ErrInstallmentNotFound
		}
		if !inst.IsOpen() {
			return fmt.Errorf("installment #%d is %s: %w", inst.Number, inst.Status, domain.ErrInstallmentClosed)
		}

		s.assessLateFee(l, inst, date)

		remaining := inst.Remaining()
		if req.Amount.GreaterThan(remaining) {
			return fmt.Errorf("installment #%d owes %s, got %s: %w",
				inst.Number, l.Currency.Format(remaining), l.Currency.Format(req.Amount), domain.ErrOverpayment)
		}

		split := allocate(inst, req.Amount)
		inst.PaidAmount = inst.PaidAmount.Add(req.Amount)
		inst.PrincipalPaid = inst.PrincipalPaid.Add(split.Principal)
		if inst.PaidAmount.GreaterThanOrEqual(inst.TotalDue()) {
			inst.Status = domain.InstallmentStatusPaid
			inst.PaidDate = &date
		} else {
			inst.Status = domain.InstallmentStatusPartial
		}

		receipt, err := s.repay(ctx, tx, l, inst, req, split)
		if err != nil {
			return err
		}
		if receipt.Replayed {
			return fmt.Errorf("repayment %s already recorded: %w", receipt.OperationID, domain.ErrTransactionFailed)
		}

		if err := s.loans.UpdateInstallment(ctx, tx, inst); err != nil {
			return err
		}

		l.TotalPaid = l.TotalPaid.Add(req.Amount)
		l.OutstandingBalance = outstanding(l.Principal, installments)
		l.UpdatedAt = s.now()

		note := fmt.Sprintf("installment #%d: %s", inst.Number, l.Currency.Format(req.Amount))
		if err := s.appendEvent(ctx, tx, l.ID, domain.LoanEventPayment, &l.Status, l.Status, &receipt.OperationID, req.Actor, note); err != nil {
			return err
		}

		if l.OutstandingBalance.IsZero() {
			if err := s.transition(ctx, tx, l, domain.LoanStatusPaid, domain.LoanEventPaid, &receipt.OperationID, req.Actor, ""); err != nil {
				return err
			}
		} else if err := s.loans.Update(ctx, tx, l); err != nil {
			return err
		}

		res = &PaymentResult{Loan: *l, Installment: *inst, Receipt: receipt}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// assessLateFee charges the configured percentage once, when a payment arrives after the
// installment fell due.
func (s *Service) assessLateFee(l *domain.Loan, inst *domain.LoanInstallment, date time.Time) {
	if !date.After(inst.DueDate) || !inst.LateFee.IsZero() || !s.config.LateFeePct.IsPositive() {
		return
	}
	base := inst.Amount.Add(inst.Interest)
	inst.LateFee = l.Currency.Round(base.Mul(s.config.LateFeePct).Div(hundred))
}

func (s *Service) repay(ctx context.Context, tx *sql.Tx, l *domain.Loan, inst *domain.LoanInstallment, req PaymentRequest, split allocation) (*ledger.Receipt, error) {
	to := domain.ProjectBox(l.LenderProjectID)
	if s.config.RepaymentTarget == RepayMaster {
		to = domain.MasterBox
	}
	loanID, instID, borrower := l.ID, inst.ID, l.BorrowerProjectID

	return s.ledger.TransferTx(ctx, tx, ledger.TransferRequest{
		Meta:     req.Meta,
		From:     domain.ProjectBox(l.BorrowerProjectID),
		To:       to,
		Amount:   req.Amount,
		Currency: l.Currency,
		Kind:     domain.MovementLoanRepayment,
		Detail: domain.RepaymentDetail{
			LoanCode:      l.Code,
			InstallmentNo: inst.Number,
			LateFee:       split.LateFee,
			Interest:      split.Interest,
			Principal:     split.Principal,
		},
		Description:   fmt.Sprintf("Repayment of loan %s installment #%d", l.Code, inst.Number),
		ProjectID:     &borrower,
		LoanID:        &loanID,
		InstallmentID: &instID,
	})
}

func (s *Service) replayedPayment(ctx context.Context, target *domain.LoanInstallment, r *ledger.Receipt) (*PaymentResult, error) {
	for _, m := range r.Movements {
		if m.InstallmentID == nil || *m.InstallmentID != target.ID {
			return nil, fmt.Errorf("key belongs to a repayment of another installment: %w", domain.ErrIdempotencyConflict)
		}
	}
	l, err := s.loans.GetByID(ctx, target.LoanID)
	if err != nil {
		return nil, err
	}
	inst, err := s.loans.GetInstallment(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	return &PaymentResult{Loan: *l, Installment: *inst, Receipt: r}, nil
}

func findInstallment(installments []domain.LoanInstallment, id uuid.UUID) *domain.LoanInstallment {
	for i := range installments {
		if installments[i].ID == id {
			return &installments[i]
		}
	}
	return nil
}
