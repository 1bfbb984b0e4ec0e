package fx

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
	"github.com/josh-kwaku/backoffice-ledger/internal/logging"
	"github.com/josh-kwaku/backoffice-ledger/internal/metrics"
)

// Quote is one rate source's USD/ARS board: ARS paid (Buy) and charged (Sell) per USD.
type Quote struct {
	Source string
	Buy    decimal.Decimal
	Sell   decimal.Decimal
	AsOf   time.Time
}

func (q *Quote) validate() error {
	if !q.Buy.IsPositive() || !q.Sell.IsPositive() {
		return fmt.Errorf("source %q quoted buy=%s sell=%s: %w", q.Source, q.Buy, q.Sell, domain.ErrRateUnavailable)
	}
	return nil
}

// Oracle answers USD/ARS quotes for a named source (e.g. "official", "blue").
type Oracle interface {
	GetRate(ctx context.Context, source string) (*Quote, error)
}

type Conversion struct {
	From         domain.Currency
	To           domain.Currency
	SourceAmount decimal.Decimal
	DestAmount   decimal.Decimal
	Rate         decimal.Decimal
	Side         domain.QuoteSide
	Source       string
	QuotedAt     time.Time
}

// Detail is the movement detail recorded for the exchange.
func (c *Conversion) Detail() domain.ExchangeDetail {
	return domain.ExchangeDetail{
		Rate:       c.Rate,
		Side:       c.Side,
		RateSource: c.Source,
		QuotedAt:   c.QuotedAt,
	}
}

// Convert prices amount of from in to using q. Local to foreign divides by the buy side,
// foreign to local multiplies by the sell side; the result is rounded to the destination
// currency's minor unit.
func Convert(q *Quote, amount decimal.Decimal, from, to domain.Currency) (*Conversion, error) {
	if !from.IsValid() || !to.IsValid() {
		return nil, fmt.Errorf("Convert: %s/%s: %w", from, to, domain.ErrInvalidCurrency)
	}
	if from == to {
		return nil, fmt.Errorf("Convert: %w", domain.ErrSameCurrency)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("Convert: %w", domain.ErrInvalidAmount)
	}
	if err := q.validate(); err != nil {
		return nil, fmt.Errorf("Convert: %w", err)
	}

	c := &Conversion{
		From:         from,
		To:           to,
		SourceAmount: amount,
		Source:       q.Source,
		QuotedAt:     q.AsOf,
	}
	if from.IsLocal() {
		c.Rate = q.Buy
		c.Side = domain.QuoteSideBuy
		c.DestAmount = to.Round(amount.Div(q.Buy))
	} else {
		c.Rate = q.Sell
		c.Side = domain.QuoteSideSell
		c.DestAmount = to.Round(amount.Mul(q.Sell))
	}

	if !c.DestAmount.IsPositive() {
		return nil, fmt.Errorf("Convert: %s %s rounds to zero %s: %w", amount, from, to, domain.ErrInvalidAmount)
	}
	return c, nil
}

// RateService fronts an Oracle with logging and latency metrics.
type RateService struct {
	oracle Oracle
}

func NewRateService(oracle Oracle) *RateService {
	return &RateService{oracle: oracle}
}

func (s *RateService) GetRate(ctx context.Context, source string) (*Quote, error) {
	start := time.Now()
	q, err := s.oracle.GetRate(ctx, source)
	metrics.RecordOracleRequest(source, time.Since(start), err == nil)
	if err != nil {
		logging.FromContext(ctx).Warn("rate lookup failed", "source", source, "error", err)
		return nil, fmt.Errorf("GetRate: %w", err)
	}
	if err := q.validate(); err != nil {
		return nil, fmt.Errorf("GetRate: %w", err)
	}
	return q, nil
}

func (s *RateService) Convert(ctx context.Context, amount decimal.Decimal, from, to domain.Currency, source string) (*Conversion, error) {
	if from == to {
		return nil, fmt.Errorf("Convert: %w", domain.ErrSameCurrency)
	}
	q, err := s.GetRate(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("Convert: %w", err)
	}
	return Convert(q, amount, from, to)
}
