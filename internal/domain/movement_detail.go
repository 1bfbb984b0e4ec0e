package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementDetail carries the type-specific fields of a movement. Each variant belongs to
// exactly one MovementType, which is also the discriminant used when it is persisted.
type MovementDetail interface {
	MovementType() MovementType
}

type IncomeDetail struct {
	InstallmentRef string `json:"installment_ref,omitempty"`
}

type MirrorDetail struct {
	ProjectID uuid.UUID `json:"project_id"`
}

type FeeDetail struct {
	BaseAmount decimal.Decimal  `json:"base_amount"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
	Fixed      *decimal.Decimal `json:"fixed,omitempty"`
}

type ExpenseDetail struct {
	Category string `json:"category,omitempty"`
}

type WithdrawalDetail struct {
	Beneficiary string `json:"beneficiary,omitempty"`
}

type QuoteSide string

const (
	QuoteSideBuy  QuoteSide = "buy"
	QuoteSideSell QuoteSide = "sell"
)

type ExchangeDetail struct {
	Rate       decimal.Decimal `json:"rate"`
	Side       QuoteSide       `json:"side"`
	RateSource string          `json:"rate_source"`
	QuotedAt   time.Time       `json:"quoted_at"`
}

type TransferDetail struct {
	Note string `json:"note,omitempty"`
}

type DisbursementDetail struct {
	LoanCode string `json:"loan_code"`
}

type RepaymentDetail struct {
	LoanCode      string          `json:"loan_code"`
	InstallmentNo int             `json:"installment_no"`
	LateFee       decimal.Decimal `json:"late_fee"`
	Interest      decimal.Decimal `json:"interest"`
	Principal     decimal.Decimal `json:"principal"`
}

type ReversalDetail struct {
	ReversedMovementID uuid.UUID    `json:"reversed_movement_id"`
	ReversedType       MovementType `json:"reversed_type"`
	Reason             string       `json:"reason,omitempty"`
}

func (IncomeDetail) MovementType() MovementType       { return MovementProjectIncome }
func (MirrorDetail) MovementType() MovementType       { return MovementMasterDuplication }
func (FeeDetail) MovementType() MovementType          { return MovementFeeCollection }
func (ExpenseDetail) MovementType() MovementType      { return MovementAdminExpense }
func (WithdrawalDetail) MovementType() MovementType   { return MovementMasterWithdrawal }
func (ExchangeDetail) MovementType() MovementType     { return MovementCurrencyExchange }
func (DisbursementDetail) MovementType() MovementType { return MovementLoanDisbursement }
func (RepaymentDetail) MovementType() MovementType    { return MovementLoanRepayment }
func (ReversalDetail) MovementType() MovementType     { return MovementReversal }

// TransferDetail is shared by manual transfers; loan transfers use their own variants.
func (TransferDetail) MovementType() MovementType { return MovementManualTransfer }

// EncodeDetail serialises d for storage. A nil detail encodes as an empty object.
func EncodeDetail(d MovementDetail) ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("EncodeDetail: %w", err)
	}
	return b, nil
}

// DecodeDetail rebuilds the variant for movement type t.
func DecodeDetail(t MovementType, raw []byte) (MovementDetail, error) {
	var d MovementDetail
	switch t {
	case MovementProjectIncome:
		d = &IncomeDetail{}
	case MovementMasterDuplication:
		d = &MirrorDetail{}
	case MovementFeeCollection:
		d = &FeeDetail{}
	case MovementAdminExpense:
		d = &ExpenseDetail{}
	case MovementMasterWithdrawal:
		d = &WithdrawalDetail{}
	case MovementCurrencyExchange:
		d = &ExchangeDetail{}
	case MovementManualTransfer:
		d = &TransferDetail{}
	case MovementLoanDisbursement:
		d = &DisbursementDetail{}
	case MovementLoanRepayment:
		d = &RepaymentDetail{}
	case MovementReversal:
		d = &ReversalDetail{}
	default:
		return nil, fmt.Errorf("DecodeDetail: unknown movement type %q", t)
	}
	if len(raw) == 0 {
		return deref(d), nil
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("DecodeDetail: %s: %w", t, err)
	}
	return deref(d), nil
}

func deref(d MovementDetail) MovementDetail {
	switch v := d.(type) {
	case *IncomeDetail:
		return *v
	case *MirrorDetail:
		return *v
	case *FeeDetail:
		return *v
	case *ExpenseDetail:
		return *v
	case *WithdrawalDetail:
		return *v
	case *ExchangeDetail:
		return *v
	case *TransferDetail:
		return *v
	case *DisbursementDetail:
		return *v
	case *RepaymentDetail:
		return *v
	case *ReversalDetail:
		return *v
	}
	return d
}
