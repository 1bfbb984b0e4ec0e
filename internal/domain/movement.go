package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MovementType string

const (
	MovementProjectIncome     MovementType = "project_income"
	MovementMasterDuplication MovementType = "master_duplication"
	MovementFeeCollection     MovementType = "fee_collection"
	MovementAdminExpense      MovementType = "admin_expense"
	MovementMasterWithdrawal  MovementType = "master_withdrawal"
	MovementCurrencyExchange  MovementType = "currency_exchange"
	MovementManualTransfer    MovementType = "manual_transfer"
	MovementLoanDisbursement  MovementType = "loan_disbursement"
	MovementLoanRepayment     MovementType = "loan_repayment"
	MovementReversal          MovementType = "reversal"
)

func (t MovementType) IsValid() bool {
	switch t {
	case MovementProjectIncome, MovementMasterDuplication, MovementFeeCollection,
		MovementAdminExpense, MovementMasterWithdrawal, MovementCurrencyExchange,
		MovementManualTransfer, MovementLoanDisbursement, MovementLoanRepayment,
		MovementReversal:
		return true
	}
	return false
}

// TransferKind is the subset of movement types a plain box-to-box transfer may carry.
type TransferKind = MovementType

func IsTransferKind(t MovementType) bool {
	return t == MovementManualTransfer || t == MovementLoanDisbursement || t == MovementLoanRepayment
}

// Movement is one immutable balance-affecting event. Amount/Currency leave Source;
// DestAmount/DestCurrency arrive at Destination. They differ only for currency exchange.
type Movement struct {
	ID            uuid.UUID
	Seq           int64
	OperationID   uuid.UUID
	Type          MovementType
	Source        BoxRef
	Destination   BoxRef
	Amount        decimal.Decimal
	Currency      Currency
	DestAmount    decimal.Decimal
	DestCurrency  Currency
	Description   string
	ProjectID     *uuid.UUID
	LoanID        *uuid.UUID
	InstallmentID *uuid.UUID
	Detail        MovementDetail
	Actor         string
	CreatedAt     time.Time
}

// MovementFilter selects movements for audit and export views. Zero fields match everything.
type MovementFilter struct {
	Owner       *BoxRef
	ProjectID   *uuid.UUID
	OperationID *uuid.UUID
	From        *time.Time
	To          *time.Time
	Types       []MovementType
}

type OperationKind string

const (
	OpProjectPayment   OperationKind = "project_payment"
	OpFeeCollection    OperationKind = "fee_collection"
	OpAdminExpense     OperationKind = "admin_expense"
	OpMasterWithdrawal OperationKind = "master_withdrawal"
	OpCurrencyExchange OperationKind = "currency_exchange"
	OpTransfer         OperationKind = "transfer"
	OpLoanDisbursement OperationKind = "loan_disbursement"
	OpLoanRepayment    OperationKind = "loan_repayment"
	OpReversal         OperationKind = "reversal"
)

// Operation groups the movements committed by one ledger call.
type Operation struct {
	ID             uuid.UUID
	Kind           OperationKind
	IdempotencyKey *string
	Actor          string
	ReversedBy     *uuid.UUID
	CreatedAt      time.Time
}

// BoxSums is the per-currency inbound and outbound total the movement log records for one box.
type BoxSums struct {
	Inbound  Balance
	Outbound Balance
}

// Net is the balance the box must hold.
func (s BoxSums) Net() Balance {
	return Balance{
		ARS: s.Inbound.ARS.Sub(s.Outbound.ARS),
		USD: s.Inbound.USD.Sub(s.Outbound.USD),
	}
}
