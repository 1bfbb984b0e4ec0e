package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

type ConvertCurrencyRequest struct {
	Meta
	Box        domain.BoxRef
	From       domain.Currency
	Amount     decimal.Decimal
	To         domain.Currency
	RateSource string
}

// ConvertCurrency exchanges money between the two currency positions of one box at the
// oracle's current quote.
func (s *Service) ConvertCurrency(ctx context.Context, req ConvertCurrencyRequest) (*Receipt, error) {
	if err := req.Box.Validate(); err != nil {
		return nil, fmt.Errorf("ConvertCurrency: %w", err)
	}
	if req.Box.IsExternal() {
		return nil, fmt.Errorf("ConvertCurrency: external is not a box: %w", domain.ErrInvalidRequest)
	}
	if !req.To.IsValid() {
		return nil, fmt.Errorf("ConvertCurrency: currency %q: %w", req.To, domain.ErrInvalidCurrency)
	}
	if req.From == req.To {
		return nil, fmt.Errorf("ConvertCurrency: %w", domain.ErrSameCurrency)
	}
	if err := validateAmount(req.Amount, req.From); err != nil {
		return nil, fmt.Errorf("ConvertCurrency: %w", err)
	}
	if req.RateSource == "" {
		return nil, fmt.Errorf("ConvertCurrency: rate source: %w", domain.ErrInvalidRequest)
	}

	if r, err := s.Replay(ctx, req.Meta, domain.OpCurrencyExchange); err != nil || r != nil {
		if err != nil {
			return nil, fmt.Errorf("ConvertCurrency: %w", err)
		}
		return r, nil
	}

	conv, err := s.rates.Convert(ctx, req.Amount, req.From, req.To, req.RateSource)
	if err != nil {
		return nil, fmt.Errorf("ConvertCurrency: %w", err)
	}

	movements, err := expand(domain.OpCurrencyExchange,
		parties{From: req.Box},
		flow{Amount: conv.SourceAmount, Currency: conv.From, DestAmount: conv.DestAmount, DestCurrency: conv.To},
		conv.Detail(),
	)
	if err != nil {
		return nil, fmt.Errorf("ConvertCurrency: %w", err)
	}

	projectID := req.Box.Ref
	p := posting{
		Kind:      domain.OpCurrencyExchange,
		Meta:      req.Meta,
		Movements: movements,
		Description: fmt.Sprintf("Exchange %s to %s at %s (%s %s)",
			conv.From.Format(conv.SourceAmount), conv.To.Format(conv.DestAmount), conv.Rate, conv.Source, conv.Side),
	}
	if req.Box.Kind == domain.OwnerProject {
		p.ProjectID = &projectID
	}

	receipt, err := s.post(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("ConvertCurrency: %w", err)
	}
	return receipt, nil
}
