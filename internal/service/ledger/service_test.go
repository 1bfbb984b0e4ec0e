package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
	"github.com/josh-kwaku/backoffice-ledger/internal/service/ledger"
	"github.com/josh-kwaku/backoffice-ledger/internal/testutil"
)

func fixed(s string) ledger.FeeSpec {
	d := decimal.RequireFromString(s)
	return ledger.FeeSpec{Fixed: &d}
}

func TestRecordProjectPayment_MirrorsIntoMaster(t *testing.T) {
	ctx := context.Background()
	stack := testutil.NewStack(t, testutil.DefaultLoanConfig())
	p := stack.SeedProject(t, "Tower A")

	receipt, err := stack.Ledger.RecordProjectPayment(ctx, ledger.ProjectPaymentRequest{
		Meta:           ledger.Meta{Actor: "cashier"},
		ProjectID:      p.ID,
		Amount:         testutil.Dec("1500"),
		Currency:       domain.CurrencyARS,
		InstallmentRef: "cuota 3",
	})
	require.NoError(t, err)
	require.Len(t, receipt.Movements, 2)
	assert.Equal(t, domain.MovementProjectIncome, receipt.Movements[0].Type)
	assert.Equal(t, domain.MovementMasterDuplication, receipt.Movements[1].Type)
	assert.Equal(t, 2, stack.CountMovements(t, receipt.OperationID))

	assert.Equal(t, "1500", stack.Balance(t, domain.ProjectBox(p.ID)).ARS.String())
	assert.Equal(t, "1500", stack.Balance(t, domain.MasterBox).ARS.String())

	box, err := stack.Ledger.GetBox(ctx, domain.ProjectBox(p.ID))
	require.NoError(t, err)
	assert.Equal(t, "1500", box.LifetimeReceived.ARS.String())

	stack.RequireBalanced(t)
}

func TestRecordProjectPayment_Rejects(t *testing.T) {
	ctx := context.Background()
	stack := testutil.NewStack(t, testutil.DefaultLoanConfig())
	p := stack.SeedProject(t, "Tower A")

	tests := []struct {
		name      string
		projectID uuid.UUID
		amount    string
		currency  domain.Currency
		want      domain.ErrorKind
	}{
		{"zero amount", p.ID, "0", domain.CurrencyARS, domain.KindInvalidAmount},
		{"negative amount", p.ID, "-10", domain.CurrencyARS, domain.KindInvalidAmount},
		{"too many decimals", p.ID, "10.001", domain.CurrencyARS, domain.KindInvalidAmount},
		{"unknown project", uuid.New(), "10", domain.CurrencyARS, domain.KindUnknownEntity},
		{"unknown currency", p.ID, "10", "EUR", domain.KindInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := stack.Ledger.RecordProjectPayment(ctx, ledger.ProjectPaymentRequest{
				ProjectID: tt.projectID,
				Amount:    testutil.Dec(tt.amount),
				Currency:  tt.currency,
			})
			require.Error(t, err)
			assert.Equal(t, tt.want, domain.KindOf(err))
		})
	}
	assert.True(t, stack.Balance(t, domain.MasterBox).IsZero())
}

func TestCollectFee_BalanceBoundary(t *testing.T) {
	ctx := context.Background()
	stack := testutil.NewStack(t, testutil.DefaultLoanConfig())
	p := stack.SeedProject(t, "Tower A")
	stack.Fund(t, p.ID, "250", domain.CurrencyARS)

	_, err := stack.Ledger.CollectFee(ctx, ledger.CollectFeeRequest{
		ProjectID: p.ID, Amount: testutil.Dec("250"), Currency: domain.CurrencyARS, Fee: fixed("250.01"),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, "250", stack.Balance(t, domain.ProjectBox(p.ID)).ARS.String())

	_, err = stack.Ledger.CollectFee(ctx, ledger.CollectFeeRequest{
		ProjectID: p.ID, Amount: testutil.Dec("250"), Currency: domain.CurrencyARS, Fee: fixed("250"),
	})
	require.NoError(t, err)
	assert.True(t, stack.Balance(t, domain.ProjectBox(p.ID)).ARS.IsZero())
	assert.Equal(t, "250", stack.Balance(t, domain.AdminBox).ARS.String())
	assert.Equal(t, "250", stack.Balance(t, domain.MasterBox).ARS.String(), "fees leave Master untouched")

	stack.RequireBalanced(t)
}

func TestCollectFee_ConcurrentCallsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	stack := testutil.NewStack(t, testutil.DefaultLoanConfig())
	p := stack.SeedProject(t, "Tower A")
	stack.Fund(t, p.ID, "500", domain.CurrencyARS)

	const workers = 2
	var (
		wg   sync.WaitGroup
		errs = make([]error, workers)
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = stack.Ledger.CollectFee(ctx, ledger.CollectFeeRequest{
				ProjectID: p.ID, Amount: testutil.Dec("400"), Currency: domain.CurrencyARS, Fee: fixed("400"),
			})
		}()
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, "100", stack.Balance(t, domain.ProjectBox(p.ID)).ARS.String())
	stack.RequireBalanced(t)
}

func TestConvertCurrency(t *testing.T) {
	ctx := context.Background()
	stack := testutil.NewStack(t, testutil.DefaultLoanConfig())
	p := stack.SeedProject(t, "Tower A")
	stack.Fund(t, p.ID, "5000", domain.CurrencyARS)
	project := domain.ProjectBox(p.ID)

	receipt, err := stack.Ledger.ConvertCurrency(ctx, ledger.ConvertCurrencyRequest{
		Box: project, From: domain.CurrencyARS, Amount: testutil.Dec("1000"), To: domain.CurrencyUSD, RateSource: "official",
	})
	require.NoError(t, err)
	require.Len(t, receipt.Movements, 1)

	m := receipt.Movements[0]
	assert.Equal(t, domain.MovementCurrencyExchange, m.Type)
	assert.Equal(t, project, m.Source)
	assert.Equal(t, project, m.Destination)
	assert.Equal(t, "1", m.DestAmount.String())
	detail, ok := m.Detail.(domain.ExchangeDetail)
	require.True(t, ok)
	assert.Equal(t, domain.QuoteSideBuy, detail.Side)

	bal := stack.Balance(t, project)
	assert.Equal(t, "4000", bal.ARS.String())
	assert.Equal(t, "1", bal.USD.String())

	box, err := stack.Ledger.GetBox(ctx, project)
	require.NoError(t, err)
	assert.True(t, box.LifetimeReceived.USD.IsZero(), "exchange is not income")

	back, err := stack.Ledger.ConvertCurrency(ctx, ledger.ConvertCurrencyRequest{
		Box: project, From: domain.CurrencyUSD, Amount: testutil.Dec("1"), To: domain.CurrencyARS, RateSource: "official",
	})
	require.NoError(t, err)
	assert.Equal(t, "1050", back.Movements[0].DestAmount.String())

	stack.RequireBalanced(t)
}

func TestConvertCurrency_Rejects(t *testing.T) {
	ctx := context.Background()
	stack := testutil.NewStack(t, testutil.DefaultLoanConfig())
	p := stack.SeedProject(t, "Tower A")
	stack.Fund(t, p.ID, "100", domain.CurrencyARS)
	project := domain.ProjectBox(p.ID)

	tests := []struct {
		name string
		req  ledger.ConvertCurrencyRequest
		want domain.ErrorKind
	}{
		{"same currency", ledger.ConvertCurrencyRequest{Box: project, From: domain.CurrencyARS, Amount: testutil.Dec("10"), To: domain.CurrencyARS, RateSource: "official"}, domain.KindInvalidRequest},
		{"unknown source", ledger.ConvertCurrencyRequest{Box: project, From: domain.CurrencyARS, Amount: testutil.Dec("10"), To: domain.CurrencyUSD, RateSource: "crypto"}, domain.KindRateUnavailable},
		{"rounds to zero", ledger.ConvertCurrencyRequest{Box: project, From: domain.CurrencyARS, Amount: testutil.Dec("1"), To: domain.CurrencyUSD, RateSource: "official"}, domain.KindInvalidAmount},
		{"more than held", ledger.ConvertCurrencyRequest{Box: project, From: domain.CurrencyARS, Amount: testutil.Dec("1000"), To: domain.CurrencyUSD, RateSource: "official"}, domain.KindInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := stack.Ledger.ConvertCurrency(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.want, domain.KindOf(err))
		})
	}
}

func TestIdempotentReplay(t *testing.T) {
	ctx := context.Background()
	stack := testutil.NewStack(t, testutil.DefaultLoanConfig())
	p := stack.SeedProject(t, "Tower A")

	req := ledger.ProjectPaymentRequest{
		Meta:      ledger.Meta{IdempotencyKey: "pay-42"},
		ProjectID: p.ID,
		Amount:    testutil.Dec("700"),
		Currency:  domain.CurrencyUSD,
	}
	first, err := stack.Ledger.RecordProjectPayment(ctx, req)
	require.NoError(t, err)
	second, err := stack.Ledger.RecordProjectPayment(ctx, req)
	require.NoError(t, err)

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.OperationID, second.OperationID)
	assert.Len(t, second.Movements, 2)
	assert.Equal(t, "700", stack.Balance(t, domain.ProjectBox(p.ID)).USD.String())

	_, err = stack.Ledger.RecordAdminExpense(ctx, ledger.AdminExpenseRequest{
		Meta: ledger.Meta{IdempotencyKey: "pay-42"}, Amount: testutil.Dec("1"), Currency: domain.CurrencyUSD,
	})
	assert.ErrorIs(t, err, domain.ErrIdempotencyConflict)
}

func TestReverseOperation(t *testing.T) {
	ctx := context.Background()
	stack := testutil.NewStack(t, testutil.DefaultLoanConfig())
	a := stack.SeedProject(t, "Tower A")
	b := stack.SeedProject(t, "Tower B")
	stack.Fund(t, a.ID, "1000", domain.CurrencyARS)

	transfer, err := stack.Ledger.TransferBetweenBoxes(ctx, ledger.TransferRequest{
		From:     domain.ProjectBox(a.ID),
		To:       domain.ProjectBox(b.ID),
		Amount:   testutil.Dec("300"),
		Currency: domain.CurrencyARS,
		Kind:     domain.MovementManualTransfer,
	})
	require.NoError(t, err)
	assert.Equal(t, "300", stack.Balance(t, domain.ProjectBox(b.ID)).ARS.String())

	reversal, err := stack.Ledger.ReverseOperation(ctx, ledger.ReverseRequest{
		Meta: ledger.Meta{IdempotencyKey: "rev-1"}, OperationID: transfer.OperationID, Reason: "wrong project",
	})
	require.NoError(t, err)
	require.Len(t, reversal.Movements, 1)
	assert.Equal(t, domain.MovementReversal, reversal.Movements[0].Type)
	assert.Equal(t, domain.ProjectBox(b.ID), reversal.Movements[0].Source)

	assert.Equal(t, "1000", stack.Balance(t, domain.ProjectBox(a.ID)).ARS.String())
	assert.True(t, stack.Balance(t, domain.ProjectBox(b.ID)).ARS.IsZero())

	replayed, err := stack.Ledger.ReverseOperation(ctx, ledger.ReverseRequest{
		Meta: ledger.Meta{IdempotencyKey: "rev-1"}, OperationID: transfer.OperationID,
	})
	require.NoError(t, err)
	assert.True(t, replayed.Replayed)

	_, err = stack.Ledger.ReverseOperation(ctx, ledger.ReverseRequest{OperationID: transfer.OperationID})
	assert.ErrorIs(t, err, domain.ErrAlreadyReversed)

	_, err = stack.Ledger.ReverseOperation(ctx, ledger.ReverseRequest{OperationID: reversal.OperationID})
	assert.Equal(t, domain.KindInvalidRequest, domain.KindOf(err))

	op, _, err := stack.Ledger.GetOperation(ctx, transfer.OperationID)
	require.NoError(t, err)
	require.NotNil(t, op.ReversedBy)
	assert.Equal(t, reversal.OperationID, *op.ReversedBy)

	stack.RequireBalanced(t)
}

func TestRecordAdminExpenseAndWithdrawal(t *testing.T) {
	ctx := context.Background()
	stack := testutil.NewStack(t, testutil.DefaultLoanConfig())
	p := stack.SeedProject(t, "Tower A")
	stack.Fund(t, p.ID, "1000", domain.CurrencyARS)
	_, err := stack.Ledger.CollectFee(ctx, ledger.CollectFeeRequest{
		ProjectID: p.ID, Amount: testutil.Dec("1000"), Currency: domain.CurrencyARS, Fee: fixed("200"),
	})
	require.NoError(t, err)

	_, err = stack.Ledger.RecordAdminExpense(ctx, ledger.AdminExpenseRequest{
		Amount: testutil.Dec("150"), Currency: domain.CurrencyARS, Category: "rent",
	})
	require.NoError(t, err)
	assert.Equal(t, "50", stack.Balance(t, domain.AdminBox).ARS.String())

	_, err = stack.Ledger.RecordAdminExpense(ctx, ledger.AdminExpenseRequest{Amount: testutil.Dec("51"), Currency: domain.CurrencyARS})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = stack.Ledger.RecordMasterWithdrawal(ctx, ledger.MasterWithdrawalRequest{
		Amount: testutil.Dec("1000"), Currency: domain.CurrencyARS, Beneficiary: "partners",
	})
	require.NoError(t, err)
	assert.True(t, stack.Balance(t, domain.MasterBox).ARS.IsZero())

	stack.RequireBalanced(t)
}

func TestGetBalance_StableWithoutWrites(t *testing.T) {
	ctx := context.Background()
	stack := testutil.NewStack(t, testutil.DefaultLoanConfig())
	p := stack.SeedProject(t, "Tower A")
	stack.Fund(t, p.ID, "750.25", domain.CurrencyARS)
	stack.Fund(t, p.ID, "12.5", domain.CurrencyUSD)

	for _, owner := range []domain.BoxRef{domain.ProjectBox(p.ID), domain.MasterBox, domain.AdminBox} {
		first, err := stack.Ledger.GetBalance(ctx, owner)
		require.NoError(t, err)
		second, err := stack.Ledger.GetBalance(ctx, owner)
		require.NoError(t, err)
		assert.True(t, first.Equal(second), "%s: %v then %v", owner, first, second)
	}

	got, err := stack.Ledger.GetBalance(ctx, domain.ProjectBox(p.ID))
	require.NoError(t, err)
	assert.Equal(t, "750.25", got.ARS.String())
	assert.Equal(t, "12.5", got.USD.String())
}

func TestPageMovements(t *testing.T) {
	ctx := context.Background()
	stack := testutil.NewStack(t, testutil.DefaultLoanConfig())
	p := stack.SeedProject(t, "Tower A")
	for range 3 {
		stack.Fund(t, p.ID, "10", domain.CurrencyARS)
	}

	owner := domain.ProjectBox(p.ID)
	page, err := stack.Ledger.PageMovements(ctx, domain.MovementFilter{Owner: &owner}, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Movements, 2)
	assert.Greater(t, page.Movements[0].Seq, page.Movements[1].Seq, "newest first")

	var streamed int
	for m, err := range stack.Ledger.QueryMovements(ctx, domain.MovementFilter{Types: []domain.MovementType{domain.MovementMasterDuplication}}) {
		require.NoError(t, err)
		assert.Equal(t, domain.MasterBox, m.Destination)
		streamed++
	}
	assert.Equal(t, 3, streamed)
}

func TestAuditor_DetectsTamperedBalance(t *testing.T) {
	ctx := context.Background()
	stack := testutil.NewStack(t, testutil.DefaultLoanConfig())
	p := stack.SeedProject(t, "Tower A")
	stack.Fund(t, p.ID, "100", domain.CurrencyARS)

	require.NoError(t, stack.Auditor.VerifyBox(ctx, domain.ProjectBox(p.ID)))

	_, err := stack.Pool.Exec(
		`UPDATE cash_boxes SET balance_ars = balance_ars + 1 WHERE owner_kind = 'project' AND owner_ref = $1`, p.ID)
	require.NoError(t, err)

	err = stack.Auditor.VerifyBox(ctx, domain.ProjectBox(p.ID))
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	mismatches, err := stack.Auditor.VerifyAll(ctx)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	assert.Equal(t, domain.ProjectBox(p.ID), mismatches[0].Owner)
	assert.Equal(t, "101", mismatches[0].Stored.ARS.String())
	assert.Equal(t, "100", mismatches[0].Computed.ARS.String())
}
