package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

func TestValidateRules(t *testing.T) {
	require.NoError(t, validateRules(postingRules))

	tests := []struct {
		name  string
		rules map[domain.OperationKind][]leg
	}{
		{
			name: "income without mirror",
			rules: map[domain.OperationKind][]leg{
				domain.OpProjectPayment: {{Type: domain.MovementProjectIncome, From: roleExternal, To: roleProject}},
			},
		},
		{
			name:  "no legs",
			rules: map[domain.OperationKind][]leg{domain.OpTransfer: {}},
		},
		{
			name: "reversal leg",
			rules: map[domain.OperationKind][]leg{
				domain.OpTransfer: {{Type: domain.MovementReversal, From: roleFrom, To: roleTo}},
			},
		},
		{
			name: "external to external",
			rules: map[domain.OperationKind][]leg{
				domain.OpAdminExpense: {{Type: domain.MovementAdminExpense, From: roleExternal, To: roleExternal}},
			},
		},
		{
			name: "exchange across boxes",
			rules: map[domain.OperationKind][]leg{
				domain.OpCurrencyExchange: {{Type: domain.MovementCurrencyExchange, From: roleFrom, To: roleTo, Amount: sideExchange}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, validateRules(tt.rules))
		})
	}
}

func TestExpand_ProjectPaymentMirrorsIntoMaster(t *testing.T) {
	projectID := uuid.New()
	amount := decimal.RequireFromString("1500.50")

	got, err := expand(domain.OpProjectPayment,
		parties{Project: domain.ProjectBox(projectID)},
		flow{Amount: amount, Currency: domain.CurrencyARS},
		domain.IncomeDetail{}, domain.MirrorDetail{ProjectID: projectID},
	)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.MovementProjectIncome, got[0].Type)
	assert.Equal(t, domain.ExternalBox, got[0].Source)
	assert.Equal(t, domain.ProjectBox(projectID), got[0].Destination)
	assert.Equal(t, domain.MovementMasterDuplication, got[1].Type)
	assert.Equal(t, domain.MasterBox, got[1].Destination)
	for _, m := range got {
		assert.True(t, amount.Equal(m.Amount))
		assert.True(t, amount.Equal(m.DestAmount))
	}
}

func TestExpand_Rejects(t *testing.T) {
	f := flow{Amount: decimal.NewFromInt(1), Currency: domain.CurrencyARS}

	_, err := expand(domain.OpReversal, parties{}, f, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest, "reversals have no rule")

	_, err = expand(domain.OpFeeCollection, parties{}, f, domain.FeeDetail{})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest, "project role unbound")

	_, err = expand(domain.OpAdminExpense, parties{}, f, domain.WithdrawalDetail{})
	assert.Error(t, err, "detail of the wrong variant")

	_, err = expand(domain.OpProjectPayment, parties{Project: domain.ProjectBox(uuid.New())}, f, domain.IncomeDetail{})
	assert.Error(t, err, "one detail per leg")
}

func TestDeltasFor(t *testing.T) {
	projectID := uuid.New()
	project := domain.ProjectBox(projectID)
	at := time.Now().UTC()

	movements := []domain.Movement{
		{Source: domain.ExternalBox, Destination: project, Amount: decimal.NewFromInt(1000), Currency: domain.CurrencyARS, DestAmount: decimal.NewFromInt(1000), DestCurrency: domain.CurrencyARS},
		{Source: project, Destination: domain.AdminBox, Amount: decimal.NewFromInt(100), Currency: domain.CurrencyARS, DestAmount: decimal.NewFromInt(100), DestCurrency: domain.CurrencyARS},
		{Source: project, Destination: project, Amount: decimal.NewFromInt(500), Currency: domain.CurrencyARS, DestAmount: decimal.RequireFromString("0.5"), DestCurrency: domain.CurrencyUSD},
	}

	deltas := deltasFor(movements, at)
	require.Len(t, deltas, 2, "external is never a box")

	p := deltas[project]
	assert.Equal(t, "400", p.Balance.ARS.String())
	assert.Equal(t, "0.5", p.Balance.USD.String())
	assert.Equal(t, "1000", p.Received.ARS.String())
	assert.True(t, p.Received.USD.IsZero(), "exchange does not count as received")
	assert.Equal(t, "100", p.Paid.ARS.String())
	assert.Equal(t, at, p.At)

	admin := deltas[domain.AdminBox]
	assert.Equal(t, "100", admin.Balance.ARS.String())
	assert.Equal(t, "100", admin.Received.ARS.String())
}

func TestSortedOwners(t *testing.T) {
	a, b := domain.ProjectBox(uuid.New()), domain.ProjectBox(uuid.New())
	deltas := map[domain.BoxRef]*domain.BoxDelta{a: {}, b: {}, domain.MasterBox: {}, domain.AdminBox: {}}

	got := sortedOwners(deltas)
	require.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].String(), got[i].String())
	}
}
