package domain

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyARS Currency = "ARS"
	CurrencyUSD Currency = "USD"
)

// LocalCurrency is the currency the firm keeps its books in.
const LocalCurrency = CurrencyARS

func (c Currency) IsValid() bool {
	switch c {
	case CurrencyARS, CurrencyUSD:
		return true
	}
	return false
}

func (c Currency) IsLocal() bool { return c == LocalCurrency }

// Fraction is the number of minor-unit digits for the currency.
func (c Currency) Fraction() int32 {
	return int32(money.New(0, string(c)).Currency().Fraction)
}

// Round rounds amount to the currency's minor unit.
func (c Currency) Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(c.Fraction())
}

// Format renders amount with the currency's symbol and separators, for logs and messages.
func (c Currency) Format(amount decimal.Decimal) string {
	minor := amount.Shift(c.Fraction()).Round(0).IntPart()
	return money.New(minor, string(c)).Display()
}

// Balance is a dual-currency position.
type Balance struct {
	ARS decimal.Decimal `json:"ars"`
	USD decimal.Decimal `json:"usd"`
}

func (b Balance) Of(c Currency) decimal.Decimal {
	if c == CurrencyUSD {
		return b.USD
	}
	return b.ARS
}

func (b Balance) With(c Currency, amount decimal.Decimal) Balance {
	if c == CurrencyUSD {
		b.USD = amount
	} else {
		b.ARS = amount
	}
	return b
}

func (b Balance) Equal(o Balance) bool {
	return b.ARS.Equal(o.ARS) && b.USD.Equal(o.USD)
}

// Add returns b with amount added to its c position.
func (b Balance) Add(c Currency, amount decimal.Decimal) Balance {
	return b.With(c, b.Of(c).Add(amount))
}

func (b Balance) IsNegative() bool {
	return b.ARS.IsNegative() || b.USD.IsNegative()
}

func (b Balance) IsZero() bool {
	return b.ARS.IsZero() && b.USD.IsZero()
}
