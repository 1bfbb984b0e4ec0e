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

// MaxInstallments caps a schedule at thirty years of monthly installments.
const MaxInstallments = 360

type IssueRequest struct {
	ledger.Meta
	LenderProjectID   uuid.UUID
	BorrowerProjectID uuid.UUID
	Principal         decimal.Decimal
	Currency          domain.Currency
	DueDate           time.Time
	InstallmentCount  int
	// Rate is an annual percentage; zero makes the loan interest free.
	Rate decimal.Decimal
}

func (r IssueRequest) validate() error {
	if r.LenderProjectID == uuid.Nil || r.BorrowerProjectID == uuid.Nil {
		return fmt.Errorf("lender and borrower are required: %w", domain.ErrInvalidRequest)
	}
	if r.LenderProjectID == r.BorrowerProjectID {
		return fmt.Errorf("a project cannot lend to itself: %w", domain.ErrSameBox)
	}
	if !r.Currency.IsValid() {
		return fmt.Errorf("currency %q: %w", r.Currency, domain.ErrInvalidCurrency)
	}
	if !r.Principal.IsPositive() || !r.Principal.Equal(r.Currency.Round(r.Principal)) {
		return fmt.Errorf("principal %s: %w", r.Principal, domain.ErrInvalidAmount)
	}
	if r.InstallmentCount < 1 || r.InstallmentCount > MaxInstallments {
		return fmt.Errorf("installment count %d not in 1..%d: %w", r.InstallmentCount, MaxInstallments, domain.ErrInvalidRequest)
	}
	// Every installment must carry at least one minor unit of principal.
	minimum := decimal.New(1, -r.Currency.Fraction()).Mul(decimal.NewFromInt(int64(r.InstallmentCount)))
	if r.Principal.LessThan(minimum) {
		return fmt.Errorf("principal %s cannot cover %d installments: %w", r.Principal, r.InstallmentCount, domain.ErrInvalidAmount)
	}
	if r.DueDate.IsZero() {
		return fmt.Errorf("due date: %w", domain.ErrInvalidRequest)
	}
	if r.Rate.IsNegative() {
		return fmt.Errorf("rate %s: %w", r.Rate, domain.ErrInvalidRequest)
	}
	return nil
}

// LoanDetail is a loan with its schedule and the status readers should see.
type LoanDetail struct {
	Loan            domain.Loan
	Installments    []domain.LoanInstallment
	EffectiveStatus domain.LoanStatus
	Replayed        bool
}

// IssueLoan creates a pending loan with its schedule and disburses the principal from
// the lender's box to the borrower's in the same transaction.
func (s *Service) IssueLoan(ctx context.Context, req IssueRequest) (*LoanDetail, error) {
	start := time.Now()
	detail, err := s.issueLoan(ctx, req)
	observe(ctx, "loan_issue", start, err, "lender", req.LenderProjectID, "borrower", req.BorrowerProjectID)
	if err != nil {
		return nil, fmt.Errorf("IssueLoan: %w", err)
	}
	return detail, nil
}

func (s *Service) issueLoan(ctx context.Context, req IssueRequest) (*LoanDetail, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	if r, err := s.ledger.Replay(ctx, req.Meta, domain.OpLoanDisbursement); err != nil || r != nil {
		if err != nil {
			return nil, err
		}
		return s.replayedIssue(ctx, r.OperationID)
	}

	if _, err := s.requireProject(ctx, req.LenderProjectID, "lender"); err != nil {
		return nil, err
	}
	if _, err := s.requireProject(ctx, req.BorrowerProjectID, "borrower"); err != nil {
		return nil, err
	}

	var detail *LoanDetail
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		l, installments, err := s.newLoan(ctx, tx, req, domain.LoanStatusPending)
		if err != nil {
			return err
		}

		receipt, err := s.disburse(ctx, tx, l, req.Meta)
		if err != nil {
			return err
		}
		if receipt.Replayed {
			return fmt.Errorf("disbursement %s already recorded: %w", receipt.OperationID, domain.ErrTransactionFailed)
		}
		l.DisbursementOperationID = &receipt.OperationID

		if err := s.persistLoan(ctx, tx, l, installments, req.Actor, &receipt.OperationID); err != nil {
			return err
		}
		detail = &LoanDetail{Loan: *l, Installments: installments, EffectiveStatus: l.EffectiveStatus(s.now())}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// DraftLoan records a loan and its schedule without moving money. SubmitLoan disburses it.
func (s *Service) DraftLoan(ctx context.Context, req IssueRequest) (*LoanDetail, error) {
	start := time.Now()
	detail, err := s.draftLoan(ctx, req)
	observe(ctx, "loan_draft", start, err, "lender", req.LenderProjectID, "borrower", req.BorrowerProjectID)
	if err != nil {
		return nil, fmt.Errorf("DraftLoan: %w", err)
	}
	return detail, nil
}

func (s *Service) draftLoan(ctx context.Context, req IssueRequest) (*LoanDetail, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if _, err := s.requireProject(ctx, req.LenderProjectID, "lender"); err != nil {
		return nil, err
	}
	if _, err := s.requireProject(ctx, req.BorrowerProjectID, "borrower"); err != nil {
		return nil, err
	}

	var detail *LoanDetail
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		l, installments, err := s.newLoan(ctx, tx, req, domain.LoanStatusDraft)
		if err != nil {
			return err
		}
		if err := s.persistLoan(ctx, tx, l, installments, req.Actor, nil); err != nil {
			return err
		}
		detail = &LoanDetail{Loan: *l, Installments: installments, EffectiveStatus: l.Status}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// SubmitLoan disburses a draft loan and moves it to pending.
func (s *Service) SubmitLoan(ctx context.Context, loanID uuid.UUID, meta ledger.Meta) (*LoanDetail, error) {
	start := time.Now()
	detail, err := s.submitLoan(ctx, loanID, meta)
	observe(ctx, "loan_submit", start, err, "loan_id", loanID)
	if err != nil {
		return nil, fmt.Errorf("SubmitLoan: %w", err)
	}
	return detail, nil
}

func (s *Service) submitLoan(ctx context.Context, loanID uuid.UUID, meta ledger.Meta) (*LoanDetail, error) {
	if r, err := s.ledger.Replay(ctx, meta, domain.OpLoanDisbursement); err != nil || r != nil {
		if err != nil {
			return nil, err
		}
		return s.replayedIssue(ctx, r.OperationID)
	}

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		l, err := s.loans.GetForUpdate(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if l.Status != domain.LoanStatusDraft {
			return fmt.Errorf("loan %s is %s: %w", l.Code, l.Status, domain.ErrIllegalTransition)
		}
		if _, err := s.requireProject(ctx, l.LenderProjectID, "lender"); err != nil {
			return err
		}
		if _, err := s.requireProject(ctx, l.BorrowerProjectID, "borrower"); err != nil {
			return err
		}

		receipt, err := s.disburse(ctx, tx, l, meta)
		if err != nil {
			return err
		}
		if receipt.Replayed {
			return fmt.Errorf("disbursement %s already recorded: %w", receipt.OperationID, domain.ErrTransactionFailed)
		}
		l.DisbursementOperationID = &receipt.OperationID
		return s.transition(ctx, tx, l, domain.LoanStatusPending, domain.LoanEventSubmitted, &receipt.OperationID, meta.Actor, "")
	})
	if err != nil {
		return nil, err
	}
	return s.GetLoan(ctx, loanID)
}

func (s *Service) newLoan(ctx context.Context, tx *sql.Tx, req IssueRequest, status domain.LoanStatus) (*domain.Loan, []domain.LoanInstallment, error) {
	seq, err := s.loans.NextCodeSeq(ctx, tx)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	l := &domain.Loan{
		ID:                 uuid.New(),
		Code:               fmt.Sprintf("LN-%06d", seq),
		LenderProjectID:    req.LenderProjectID,
		BorrowerProjectID:  req.BorrowerProjectID,
		Principal:          req.Principal,
		Currency:           req.Currency,
		Rate:               req.Rate,
		Status:             status,
		OutstandingBalance: req.Principal,
		TotalPaid:          decimal.Zero,
		DueDate:            req.DueDate.UTC(),
		InstallmentCount:   req.InstallmentCount,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	installments := BuildSchedule(l.ID, l.Principal, l.Currency, l.Rate, l.DueDate, l.InstallmentCount)
	return l, installments, nil
}

func (s *Service) persistLoan(ctx context.Context, tx *sql.Tx, l *domain.Loan, installments []domain.LoanInstallment, actor string, opID *uuid.UUID) error {
	if err := s.loans.Create(ctx, tx, l); err != nil {
		return err
	}
	if err := s.loans.CreateInstallments(ctx, tx, installments); err != nil {
		return err
	}
	return s.appendEvent(ctx, tx, l.ID, domain.LoanEventCreated, nil, l.Status, opID, actor, "")
}

func (s *Service) disburse(ctx context.Context, tx *sql.Tx, l *domain.Loan, meta ledger.Meta) (*ledger.Receipt, error) {
	loanID := l.ID
	lender := l.LenderProjectID
	return s.ledger.TransferTx(ctx, tx, ledger.TransferRequest{
		Meta:        meta,
		From:        domain.ProjectBox(l.LenderProjectID),
		To:          domain.ProjectBox(l.BorrowerProjectID),
		Amount:      l.Principal,
		Currency:    l.Currency,
		Kind:        domain.MovementLoanDisbursement,
		Detail:      domain.DisbursementDetail{LoanCode: l.Code},
		Description: fmt.Sprintf("Disbursement of loan %s", l.Code),
		ProjectID:   &lender,
		LoanID:      &loanID,
	})
}

func (s *Service) replayedIssue(ctx context.Context, operationID uuid.UUID) (*LoanDetail, error) {
	l, err := s.loans.GetByDisbursementOperation(ctx, operationID)
	if err != nil {
		return nil, err
	}
	detail, err := s.GetLoan(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	detail.Replayed = true
	return detail, nil
}
