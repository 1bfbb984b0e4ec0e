package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

type AdminExpenseRequest struct {
	Meta
	Amount      decimal.Decimal
	Currency    domain.Currency
	Category    string
	Description string
}

// RecordAdminExpense pays an expense out of the Admin box.
func (s *Service) RecordAdminExpense(ctx context.Context, req AdminExpenseRequest) (*Receipt, error) {
	receipt, err := s.outflow(ctx, domain.OpAdminExpense, req.Meta, req.Amount, req.Currency, req.Description,
		domain.ExpenseDetail{Category: req.Category})
	if err != nil {
		return nil, fmt.Errorf("RecordAdminExpense: %w", err)
	}
	return receipt, nil
}

type MasterWithdrawalRequest struct {
	Meta
	Amount      decimal.Decimal
	Currency    domain.Currency
	Beneficiary string
	Description string
}

// RecordMasterWithdrawal takes money out of the firm through the Master box.
func (s *Service) RecordMasterWithdrawal(ctx context.Context, req MasterWithdrawalRequest) (*Receipt, error) {
	receipt, err := s.outflow(ctx, domain.OpMasterWithdrawal, req.Meta, req.Amount, req.Currency, req.Description,
		domain.WithdrawalDetail{Beneficiary: req.Beneficiary})
	if err != nil {
		return nil, fmt.Errorf("RecordMasterWithdrawal: %w", err)
	}
	return receipt, nil
}

func (s *Service) outflow(ctx context.Context, kind domain.OperationKind, meta Meta, amount decimal.Decimal, c domain.Currency, desc string, detail domain.MovementDetail) (*Receipt, error) {
	if err := validateAmount(amount, c); err != nil {
		return nil, err
	}
	movements, err := expand(kind, parties{}, flow{Amount: amount, Currency: c}, detail)
	if err != nil {
		return nil, err
	}
	return s.post(ctx, posting{
		Kind:        kind,
		Meta:        meta,
		Movements:   movements,
		Description: desc,
	})
}
