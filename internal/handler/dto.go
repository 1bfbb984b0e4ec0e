package handler

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
	"github.com/josh-kwaku/backoffice-ledger/internal/service/ledger"
	"github.com/josh-kwaku/backoffice-ledger/internal/service/loan"
)

type balanceDTO struct {
	ARS          decimal.Decimal `json:"ars"`
	USD          decimal.Decimal `json:"usd"`
	ARSFormatted string          `json:"ars_formatted"`
	USDFormatted string          `json:"usd_formatted"`
}

func toBalanceDTO(b domain.Balance) balanceDTO {
	return balanceDTO{
		ARS:          b.ARS,
		USD:          b.USD,
		ARSFormatted: domain.CurrencyARS.Format(b.ARS),
		USDFormatted: domain.CurrencyUSD.Format(b.USD),
	}
}

type boxDTO struct {
	ID               uuid.UUID  `json:"id"`
	Owner            string     `json:"owner"`
	Balance          balanceDTO `json:"balance"`
	LifetimeReceived balanceDTO `json:"lifetime_received"`
	LifetimePaid     balanceDTO `json:"lifetime_paid"`
	Status           string     `json:"status"`
	LastMovementAt   *time.Time `json:"last_movement_at"`
	CreatedAt        time.Time  `json:"created_at"`
	RetiredAt        *time.Time `json:"retired_at,omitempty"`
}

func toBoxDTO(b *domain.CashBox) boxDTO {
	return boxDTO{
		ID:               b.ID,
		Owner:            b.Owner.String(),
		Balance:          toBalanceDTO(b.Balance),
		LifetimeReceived: toBalanceDTO(b.LifetimeReceived),
		LifetimePaid:     toBalanceDTO(b.LifetimePaid),
		Status:           string(b.Status),
		LastMovementAt:   b.LastMovementAt,
		CreatedAt:        b.CreatedAt,
		RetiredAt:        b.RetiredAt,
	}
}

type movementDTO struct {
	ID            uuid.UUID             `json:"id"`
	Seq           int64                 `json:"seq"`
	OperationID   uuid.UUID             `json:"operation_id"`
	Type          string                `json:"type"`
	Source        string                `json:"source"`
	Destination   string                `json:"destination"`
	Amount        decimal.Decimal       `json:"amount"`
	Currency      string                `json:"currency"`
	DestAmount    decimal.Decimal       `json:"dest_amount"`
	DestCurrency  string                `json:"dest_currency"`
	Description   string                `json:"description"`
	ProjectID     *uuid.UUID            `json:"project_id,omitempty"`
	LoanID        *uuid.UUID            `json:"loan_id,omitempty"`
	InstallmentID *uuid.UUID            `json:"installment_id,omitempty"`
	Detail        domain.MovementDetail `json:"detail"`
	Actor         string                `json:"actor"`
	CreatedAt     time.Time             `json:"created_at"`
}

func toMovementDTO(m domain.Movement) movementDTO {
	return movementDTO{
		ID:            m.ID,
		Seq:           m.Seq,
		OperationID:   m.OperationID,
		Type:          string(m.Type),
		Source:        m.Source.String(),
		Destination:   m.Destination.String(),
		Amount:        m.Amount,
		Currency:      string(m.Currency),
		DestAmount:    m.DestAmount,
		DestCurrency:  string(m.DestCurrency),
		Description:   m.Description,
		ProjectID:     m.ProjectID,
		LoanID:        m.LoanID,
		InstallmentID: m.InstallmentID,
		Detail:        m.Detail,
		Actor:         m.Actor,
		CreatedAt:     m.CreatedAt,
	}
}

func toMovementDTOs(ms []domain.Movement) []movementDTO {
	out := make([]movementDTO, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMovementDTO(m))
	}
	return out
}

type receiptDTO struct {
	OperationID uuid.UUID     `json:"operation_id"`
	Kind        string        `json:"kind"`
	Replayed    bool          `json:"replayed"`
	Movements   []movementDTO `json:"movements"`
}

func toReceiptDTO(r *ledger.Receipt) receiptDTO {
	return receiptDTO{
		OperationID: r.OperationID,
		Kind:        string(r.Kind),
		Replayed:    r.Replayed,
		Movements:   toMovementDTOs(r.Movements),
	}
}

type operationDTO struct {
	ID             uuid.UUID     `json:"id"`
	Kind           string        `json:"kind"`
	IdempotencyKey *string       `json:"idempotency_key,omitempty"`
	Actor          string        `json:"actor"`
	ReversedBy     *uuid.UUID    `json:"reversed_by,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	Movements      []movementDTO `json:"movements"`
}

func toOperationDTO(op *domain.Operation, ms []domain.Movement) operationDTO {
	return operationDTO{
		ID:             op.ID,
		Kind:           string(op.Kind),
		IdempotencyKey: op.IdempotencyKey,
		Actor:          op.Actor,
		ReversedBy:     op.ReversedBy,
		CreatedAt:      op.CreatedAt,
		Movements:      toMovementDTOs(ms),
	}
}

type projectDTO struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Currency   string     `json:"currency"`
	ClientID   *uuid.UUID `json:"client_id,omitempty"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toProjectDTO(p *domain.Project) projectDTO {
	return projectDTO{
		ID:         p.ID,
		Name:       p.Name,
		Currency:   string(p.Currency),
		ClientID:   p.ClientID,
		ArchivedAt: p.ArchivedAt,
		CreatedAt:  p.CreatedAt,
	}
}

type installmentDTO struct {
	ID            uuid.UUID       `json:"id"`
	Number        int             `json:"number"`
	Amount        decimal.Decimal `json:"amount"`
	Interest      decimal.Decimal `json:"interest"`
	LateFee       decimal.Decimal `json:"late_fee"`
	TotalDue      decimal.Decimal `json:"total_due"`
	Remaining     decimal.Decimal `json:"remaining"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PrincipalPaid decimal.Decimal `json:"principal_paid"`
	DueDate       time.Time       `json:"due_date"`
	Status        string          `json:"status"`
	PaidDate      *time.Time      `json:"paid_date,omitempty"`
}

func toInstallmentDTO(i *domain.LoanInstallment) installmentDTO {
	return installmentDTO{
		ID:            i.ID,
		Number:        i.Number,
		Amount:        i.Amount,
		Interest:      i.Interest,
		LateFee:       i.LateFee,
		TotalDue:      i.TotalDue(),
		Remaining:     i.Remaining(),
		PaidAmount:    i.PaidAmount,
		PrincipalPaid: i.PrincipalPaid,
		DueDate:       i.DueDate,
		Status:        string(i.Status),
		PaidDate:      i.PaidDate,
	}
}

type loanDTO struct {
	ID                      uuid.UUID        `json:"id"`
	Code                    string           `json:"code"`
	LenderProjectID         uuid.UUID        `json:"lender_project_id"`
	BorrowerProjectID       uuid.UUID        `json:"borrower_project_id"`
	Principal               decimal.Decimal  `json:"principal"`
	Currency                string           `json:"currency"`
	Rate                    decimal.Decimal  `json:"rate"`
	Status                  string           `json:"status"`
	EffectiveStatus         string           `json:"effective_status"`
	OutstandingBalance      decimal.Decimal  `json:"outstanding_balance"`
	TotalPaid               decimal.Decimal  `json:"total_paid"`
	DueDate                 time.Time        `json:"due_date"`
	InstallmentCount        int              `json:"installment_count"`
	DisbursementOperationID *uuid.UUID       `json:"disbursement_operation_id,omitempty"`
	CancellationReason      *string          `json:"cancellation_reason,omitempty"`
	CreatedAt               time.Time        `json:"created_at"`
	ActivatedAt             *time.Time       `json:"activated_at,omitempty"`
	PaidAt                  *time.Time       `json:"paid_at,omitempty"`
	CancelledAt             *time.Time       `json:"cancelled_at,omitempty"`
	Installments            []installmentDTO `json:"installments,omitempty"`
	Replayed                bool             `json:"replayed,omitempty"`
}

func toLoanDTO(l *domain.Loan, effective domain.LoanStatus) loanDTO {
	return loanDTO{
		ID:                      l.ID,
		Code:                    l.Code,
		LenderProjectID:         l.LenderProjectID,
		BorrowerProjectID:       l.BorrowerProjectID,
		Principal:               l.Principal,
		Currency:                string(l.Currency),
		Rate:                    l.Rate,
		Status:                  string(l.Status),
		EffectiveStatus:         string(effective),
		OutstandingBalance:      l.OutstandingBalance,
		TotalPaid:               l.TotalPaid,
		DueDate:                 l.DueDate,
		InstallmentCount:        l.InstallmentCount,
		DisbursementOperationID: l.DisbursementOperationID,
		CancellationReason:      l.CancellationReason,
		CreatedAt:               l.CreatedAt,
		ActivatedAt:             l.ActivatedAt,
		PaidAt:                  l.PaidAt,
		CancelledAt:             l.CancelledAt,
	}
}

func toLoanDetailDTO(d *loan.LoanDetail) loanDTO {
	dto := toLoanDTO(&d.Loan, d.EffectiveStatus)
	dto.Installments = make([]installmentDTO, 0, len(d.Installments))
	for i := range d.Installments {
		dto.Installments = append(dto.Installments, toInstallmentDTO(&d.Installments[i]))
	}
	dto.Replayed = d.Replayed
	return dto
}

type loanEventDTO struct {
	ID          uuid.UUID  `json:"id"`
	EventType   string     `json:"event_type"`
	FromStatus  *string    `json:"from_status,omitempty"`
	ToStatus    string     `json:"to_status"`
	OperationID *uuid.UUID `json:"operation_id,omitempty"`
	Actor       string     `json:"actor"`
	Note        string     `json:"note,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toLoanEventDTO(e domain.LoanEvent) loanEventDTO {
	dto := loanEventDTO{
		ID:          e.ID,
		EventType:   string(e.EventType),
		ToStatus:    string(e.ToStatus),
		OperationID: e.OperationID,
		Actor:       e.Actor,
		Note:        e.Note,
		CreatedAt:   e.CreatedAt,
	}
	if e.FromStatus != nil {
		s := string(*e.FromStatus)
		dto.FromStatus = &s
	}
	return dto
}
