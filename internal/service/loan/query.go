package loan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

func (s *Service) GetLoan(ctx context.Context, loanID uuid.UUID) (*LoanDetail, error) {
	l, err := s.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("GetLoan: %w", err)
	}
	installments, err := s.loans.GetInstallments(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("GetLoan: %w", err)
	}
	return &LoanDetail{Loan: *l, Installments: installments, EffectiveStatus: l.EffectiveStatus(s.now())}, nil
}

// LoanSummary is a loan as listed, with the status readers should see.
type LoanSummary struct {
	domain.Loan
	EffectiveStatus domain.LoanStatus
}

// ListLoans returns loans matching f. Filtering on overdue selects active loans past due.
func (s *Service) ListLoans(ctx context.Context, f domain.LoanFilter) ([]LoanSummary, error) {
	wantOverdue := f.Status != nil && *f.Status == domain.LoanStatusOverdue
	if wantOverdue {
		active := domain.LoanStatusActive
		f.Status = &active
	}

	loans, err := s.loans.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("ListLoans: %w", err)
	}

	now := s.now()
	out := make([]LoanSummary, 0, len(loans))
	for _, l := range loans {
		eff := l.EffectiveStatus(now)
		if wantOverdue && eff != domain.LoanStatusOverdue {
			continue
		}
		out = append(out, LoanSummary{Loan: l, EffectiveStatus: eff})
	}
	return out, nil
}

// OverdueInstallment is an open installment past its due date.
type OverdueInstallment struct {
	Loan        domain.Loan
	Installment domain.LoanInstallment
	DaysLate    int
}

// ListOverdue returns every open installment of an active loan whose due date is before now.
// A zero now means the current time.
func (s *Service) ListOverdue(ctx context.Context, now time.Time) ([]OverdueInstallment, error) {
	if now.IsZero() {
		now = s.now()
	}

	active := domain.LoanStatusActive
	loans, err := s.loans.List(ctx, domain.LoanFilter{Status: &active})
	if err != nil {
		return nil, fmt.Errorf("ListOverdue: %w", err)
	}

	var out []OverdueInstallment
	for _, l := range loans {
		installments, err := s.loans.GetInstallments(ctx, l.ID)
		if err != nil {
			return nil, fmt.Errorf("ListOverdue: %w", err)
		}
		for _, inst := range installments {
			if !inst.IsOverdue(now) {
				continue
			}
			out = append(out, OverdueInstallment{
				Loan:        l,
				Installment: inst,
				DaysLate:    int(now.Sub(inst.DueDate) / (24 * time.Hour)),
			})
		}
	}
	return out, nil
}

// History returns the loan's lifecycle events, oldest first.
func (s *Service) History(ctx context.Context, loanID uuid.UUID) ([]domain.LoanEvent, error) {
	if _, err := s.loans.GetByID(ctx, loanID); err != nil {
		return nil, fmt.Errorf("History: %w", err)
	}
	events, err := s.events.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("History: %w", err)
	}
	return events, nil
}

// VerifyLoan checks the stored loan against its schedule: principal shares sum to the
// principal, outstanding is principal less principal repaid, and the loan is paid exactly
// when nothing is outstanding.
func (s *Service) VerifyLoan(ctx context.Context, loanID uuid.UUID) error {
	d, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return fmt.Errorf("VerifyLoan: %w", err)
	}
	l := d.Loan

	shares := decimal.Zero
	paid := decimal.Zero
	for _, inst := range d.Installments {
		shares = shares.Add(inst.Amount)
		paid = paid.Add(inst.PaidAmount)
	}
	if len(d.Installments) != l.InstallmentCount {
		return fmt.Errorf("VerifyLoan: %s has %d installments, want %d: %w",
			l.Code, len(d.Installments), l.InstallmentCount, domain.ErrInvariantViolation)
	}
	if !shares.Equal(l.Principal) {
		return fmt.Errorf("VerifyLoan: %s shares sum to %s, principal %s: %w",
			l.Code, shares, l.Principal, domain.ErrInvariantViolation)
	}
	if want := outstanding(l.Principal, d.Installments); !want.Equal(l.OutstandingBalance) {
		return fmt.Errorf("VerifyLoan: %s outstanding %s, schedule says %s: %w",
			l.Code, l.OutstandingBalance, want, domain.ErrInvariantViolation)
	}
	if !paid.Equal(l.TotalPaid) {
		return fmt.Errorf("VerifyLoan: %s total paid %s, installments say %s: %w",
			l.Code, l.TotalPaid, paid, domain.ErrInvariantViolation)
	}
	if (l.Status == domain.LoanStatusPaid) != l.OutstandingBalance.IsZero() && l.Status != domain.LoanStatusCancelled {
		return fmt.Errorf("VerifyLoan: %s is %s with %s outstanding: %w",
			l.Code, l.Status, l.OutstandingBalance, domain.ErrInvariantViolation)
	}
	return nil
}
