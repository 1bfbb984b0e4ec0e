package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestFeeSpecCompute(t *testing.T) {
	tests := []struct {
		name     string
		spec     FeeSpec
		base     string
		currency domain.Currency
		want     string
		wantErr  error
	}{
		{"percentage", FeeSpec{Percentage: decPtr("10")}, "1000", domain.CurrencyARS, "100", nil},
		{"percentage rounds to cents", FeeSpec{Percentage: decPtr("2.5")}, "10.1", domain.CurrencyUSD, "0.25", nil},
		{"fixed ignores base", FeeSpec{Fixed: decPtr("150")}, "1", domain.CurrencyARS, "150", nil},
		{"both set", FeeSpec{Percentage: decPtr("1"), Fixed: decPtr("1")}, "100", domain.CurrencyARS, "", domain.ErrInvalidFeeSpec},
		{"neither set", FeeSpec{}, "100", domain.CurrencyARS, "", domain.ErrInvalidFeeSpec},
		{"percentage over 100", FeeSpec{Percentage: decPtr("101")}, "100", domain.CurrencyARS, "", domain.ErrInvalidFeeSpec},
		{"zero percentage", FeeSpec{Percentage: decPtr("0")}, "100", domain.CurrencyARS, "", domain.ErrInvalidFeeSpec},
		{"rounds to zero", FeeSpec{Percentage: decPtr("0.1")}, "1", domain.CurrencyARS, "", domain.ErrInvalidAmount},
		{"no base", FeeSpec{Percentage: decPtr("5")}, "0", domain.CurrencyARS, "", domain.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.spec.Compute(decimal.RequireFromString(tt.base), tt.currency)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
