package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// FeeSpec sets exactly one of Percentage (of the base amount) or Fixed.
type FeeSpec struct {
	Percentage *decimal.Decimal
	Fixed      *decimal.Decimal
}

// Compute returns the fee owed on base, rounded to the currency's minor unit.
func (f FeeSpec) Compute(base decimal.Decimal, c domain.Currency) (decimal.Decimal, error) {
	switch {
	case f.Percentage != nil && f.Fixed == nil:
		pct := *f.Percentage
		if !pct.IsPositive() || pct.GreaterThan(hundred) {
			return decimal.Zero, fmt.Errorf("percentage %s: %w", pct, domain.ErrInvalidFeeSpec)
		}
		if !base.IsPositive() {
			return decimal.Zero, fmt.Errorf("base %s: %w", base, domain.ErrInvalidAmount)
		}
		fee := c.Round(base.Mul(pct).Div(hundred))
		if !fee.IsPositive() {
			return decimal.Zero, fmt.Errorf("%s%% of %s rounds to zero: %w", pct, base, domain.ErrInvalidAmount)
		}
		return fee, nil
	case f.Fixed != nil && f.Percentage == nil:
		return *f.Fixed, nil
	}
	return decimal.Zero, domain.ErrInvalidFeeSpec
}

type CollectFeeRequest struct {
	Meta
	ProjectID   uuid.UUID
	Amount      decimal.Decimal
	Currency    domain.Currency
	Fee         FeeSpec
	Description string
}

// CollectFee moves the computed fee from the project box to the Admin box.
func (s *Service) CollectFee(ctx context.Context, req CollectFeeRequest) (*Receipt, error) {
	if !req.Currency.IsValid() {
		return nil, fmt.Errorf("CollectFee: currency %q: %w", req.Currency, domain.ErrInvalidCurrency)
	}
	fee, err := req.Fee.Compute(req.Amount, req.Currency)
	if err != nil {
		return nil, fmt.Errorf("CollectFee: %w", err)
	}
	if err := validateAmount(fee, req.Currency); err != nil {
		return nil, fmt.Errorf("CollectFee: %w", err)
	}
	project, err := s.requireProject(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("CollectFee: %w", err)
	}

	movements, err := expand(domain.OpFeeCollection,
		parties{Project: domain.ProjectBox(project.ID)},
		flow{Amount: fee, Currency: req.Currency},
		domain.FeeDetail{BaseAmount: req.Amount, Percentage: req.Fee.Percentage, Fixed: req.Fee.Fixed},
	)
	if err != nil {
		return nil, fmt.Errorf("CollectFee: %w", err)
	}

	desc := req.Description
	if desc == "" {
		desc = fmt.Sprintf("Administrative fee for %s", project.Name)
	}

	receipt, err := s.post(ctx, posting{
		Kind:        domain.OpFeeCollection,
		Meta:        req.Meta,
		Movements:   movements,
		Description: desc,
		ProjectID:   &project.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("CollectFee: %w", err)
	}
	return receipt, nil
}
