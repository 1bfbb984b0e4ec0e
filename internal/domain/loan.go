package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusDraft     LoanStatus = "draft"
	LoanStatusPending   LoanStatus = "pending"
	LoanStatusActive    LoanStatus = "active"
	LoanStatusPaid      LoanStatus = "paid"
	LoanStatusOverdue   LoanStatus = "overdue"
	LoanStatusCancelled LoanStatus = "cancelled"
)

// loanTransitions lists the stored transitions. Overdue is derived at read time and never stored.
var loanTransitions = map[LoanStatus][]LoanStatus{
	LoanStatusDraft:   {LoanStatusPending, LoanStatusCancelled},
	LoanStatusPending: {LoanStatusActive, LoanStatusCancelled},
	LoanStatusActive:  {LoanStatusPaid},
}

func (s LoanStatus) CanTransitionTo(next LoanStatus) bool {
	for _, allowed := range loanTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s LoanStatus) IsTerminal() bool {
	return s == LoanStatusPaid || s == LoanStatusCancelled
}

type InstallmentStatus string

const (
	InstallmentStatusPending   InstallmentStatus = "pending"
	InstallmentStatusPartial   InstallmentStatus = "partial"
	InstallmentStatusPaid      InstallmentStatus = "paid"
	InstallmentStatusCancelled InstallmentStatus = "cancelled"
)

type Loan struct {
	ID                      uuid.UUID
	Code                    string
	LenderProjectID         uuid.UUID
	BorrowerProjectID       uuid.UUID
	Principal               decimal.Decimal
	Currency                Currency
	Rate                    decimal.Decimal
	Status                  LoanStatus
	OutstandingBalance      decimal.Decimal
	TotalPaid               decimal.Decimal
	DueDate                 time.Time
	InstallmentCount        int
	DisbursementOperationID *uuid.UUID
	CancellationReason      *string
	Version                 int64
	CreatedAt               time.Time
	UpdatedAt               time.Time
	ActivatedAt             *time.Time
	PaidAt                  *time.Time
	CancelledAt             *time.Time
}

// EffectiveStatus is the status shown to readers: an active loan past its due date that is
// not fully paid reads as overdue.
func (l *Loan) EffectiveStatus(now time.Time) LoanStatus {
	if l.Status == LoanStatusActive && l.DueDate.Before(now) && l.OutstandingBalance.IsPositive() {
		return LoanStatusOverdue
	}
	return l.Status
}

type LoanInstallment struct {
	ID            uuid.UUID
	LoanID        uuid.UUID
	Number        int
	Amount        decimal.Decimal
	Interest      decimal.Decimal
	LateFee       decimal.Decimal
	DueDate       time.Time
	Status        InstallmentStatus
	PaidAmount    decimal.Decimal
	PrincipalPaid decimal.Decimal
	PaidDate      *time.Time
}

// TotalDue is what must be received before the installment counts as paid.
func (i *LoanInstallment) TotalDue() decimal.Decimal {
	return i.Amount.Add(i.Interest).Add(i.LateFee)
}

func (i *LoanInstallment) Remaining() decimal.Decimal {
	r := i.TotalDue().Sub(i.PaidAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

func (i *LoanInstallment) IsOpen() bool {
	return i.Status == InstallmentStatusPending || i.Status == InstallmentStatusPartial
}

func (i *LoanInstallment) IsOverdue(now time.Time) bool {
	return i.IsOpen() && i.DueDate.Before(now)
}

type LoanEventType string

const (
	LoanEventCreated   LoanEventType = "created"
	LoanEventSubmitted LoanEventType = "submitted"
	LoanEventActivated LoanEventType = "activated"
	LoanEventPayment   LoanEventType = "payment"
	LoanEventPaid      LoanEventType = "paid"
	LoanEventCancelled LoanEventType = "cancelled"
)

type LoanEvent struct {
	ID          uuid.UUID
	LoanID      uuid.UUID
	EventType   LoanEventType
	FromStatus  *LoanStatus
	ToStatus    LoanStatus
	OperationID *uuid.UUID
	Actor       string
	Note        string
	CreatedAt   time.Time
}

// LoanFilter selects loans for listing. Zero fields match everything.
type LoanFilter struct {
	ProjectID *uuid.UUID
	Status    *LoanStatus
}
