package loan_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
	"github.com/josh-kwaku/backoffice-ledger/internal/service/ledger"
	"github.com/josh-kwaku/backoffice-ledger/internal/service/loan"
	"github.com/josh-kwaku/backoffice-ledger/internal/testutil"
)

type loanFixture struct {
	stack    *testutil.Stack
	lender   *domain.Project
	borrower *domain.Project
}

func setupLoanTest(t *testing.T, cfg loan.Config) *loanFixture {
	t.Helper()

	stack := testutil.NewStack(t, cfg)
	lender := stack.SeedProject(t, "Lender")
	borrower := stack.SeedProject(t, "Borrower")
	stack.Fund(t, lender.ID, "10000", domain.CurrencyARS)

	return &loanFixture{stack: stack, lender: lender, borrower: borrower}
}

func (f *loanFixture) issue(t *testing.T, principal string, n int, key string) *loan.LoanDetail {
	t.Helper()

	d, err := f.stack.Loans.IssueLoan(context.Background(), loan.IssueRequest{
		Meta:              ledger.Meta{IdempotencyKey: key, Actor: "treasurer"},
		LenderProjectID:   f.lender.ID,
		BorrowerProjectID: f.borrower.ID,
		Principal:         testutil.Dec(principal),
		Currency:          domain.CurrencyARS,
		DueDate:           time.Now().UTC().AddDate(0, n, 0),
		InstallmentCount:  n,
	})
	require.NoError(t, err)
	return d
}

func (f *loanFixture) ars(t *testing.T, owner domain.BoxRef) string {
	t.Helper()
	return f.stack.Balance(t, owner).ARS.String()
}

func TestIssueLoan_DisbursesPrincipal(t *testing.T) {
	f := setupLoanTest(t, testutil.DefaultLoanConfig())

	d := f.issue(t, "6000", 3, "")

	assert.Equal(t, domain.LoanStatusPending, d.Loan.Status)
	assert.Regexp(t, `^LN-\d{6}$`, d.Loan.Code)
	assert.Len(t, d.Installments, 3)
	require.NotNil(t, d.Loan.DisbursementOperationID)
	assert.Equal(t, "4000", f.ars(t, domain.ProjectBox(f.lender.ID)))
	assert.Equal(t, "6000", f.ars(t, domain.ProjectBox(f.borrower.ID)))
	assert.Equal(t, 1, f.stack.CountMovements(t, *d.Loan.DisbursementOperationID))

	events, err := f.stack.Loans.History(context.Background(), d.Loan.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.LoanEventCreated, events[0].EventType)

	require.NoError(t, f.stack.Loans.VerifyLoan(context.Background(), d.Loan.ID))
	f.stack.RequireBalanced(t)
}

func TestIssueLoan_InsufficientFundsLeavesNoLoan(t *testing.T) {
	f := setupLoanTest(t, testutil.DefaultLoanConfig())

	_, err := f.stack.Loans.IssueLoan(context.Background(), loan.IssueRequest{
		LenderProjectID:   f.lender.ID,
		BorrowerProjectID: f.borrower.ID,
		Principal:         testutil.Dec("10000.01"),
		Currency:          domain.CurrencyARS,
		DueDate:           time.Now().AddDate(0, 1, 0),
		InstallmentCount:  1,
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindInsufficientFunds, domain.KindOf(err))

	loans, err := f.stack.Loans.ListLoans(context.Background(), domain.LoanFilter{})
	require.NoError(t, err)
	assert.Empty(t, loans)
	assert.Equal(t, "10000", f.ars(t, domain.ProjectBox(f.lender.ID)))
}

func TestIssueLoan_ReplaysIdempotencyKey(t *testing.T) {
	f := setupLoanTest(t, testutil.DefaultLoanConfig())

	first := f.issue(t, "3000", 2, "loan-key-1")
	second := f.issue(t, "3000", 2, "loan-key-1")

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Loan.ID, second.Loan.ID)
	assert.Equal(t, "7000", f.ars(t, domain.ProjectBox(f.lender.ID)))
}

func TestLoanLifecycle_PaidInFull(t *testing.T) {
	ctx := context.Background()
	f := setupLoanTest(t, testutil.DefaultLoanConfig())
	d := f.issue(t, "6000", 3, "")

	_, err := f.stack.Loans.RegisterInstallmentPayment(ctx, loan.PaymentRequest{
		InstallmentID: d.Installments[0].ID,
		Amount:        testutil.Dec("2000"),
	})
	assert.ErrorIs(t, err, domain.ErrInstallmentClosed, "pending loans take no payments")

	active, err := f.stack.Loans.ActivateLoan(ctx, d.Loan.ID, "treasurer")
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusActive, active.Loan.Status)
	require.NotNil(t, active.Loan.ActivatedAt)

	for i, inst := range d.Installments {
		res, err := f.stack.Loans.RegisterInstallmentPayment(ctx, loan.PaymentRequest{
			Meta:          ledger.Meta{IdempotencyKey: uuid.NewString()},
			InstallmentID: inst.ID,
			Amount:        inst.Amount,
			Date:          inst.DueDate.Add(-time.Hour),
		})
		require.NoError(t, err, "installment %d", i+1)
		assert.Equal(t, domain.InstallmentStatusPaid, res.Installment.Status)
	}

	got, err := f.stack.Loans.GetLoan(ctx, d.Loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusPaid, got.Loan.Status)
	assert.True(t, got.Loan.OutstandingBalance.IsZero())
	assert.Equal(t, "6000", got.Loan.TotalPaid.String())
	assert.Equal(t, "10000", f.ars(t, domain.ProjectBox(f.lender.ID)))
	assert.Equal(t, "0", f.ars(t, domain.ProjectBox(f.borrower.ID)))

	events, err := f.stack.Loans.History(ctx, d.Loan.ID)
	require.NoError(t, err)
	var types []domain.LoanEventType
	for _, e := range events {
		types = append(types, e.EventType)
	}
	assert.Contains(t, types, domain.LoanEventActivated)
	assert.Contains(t, types, domain.LoanEventPaid)

	require.NoError(t, f.stack.Loans.VerifyLoan(ctx, d.Loan.ID))
	f.stack.RequireBalanced(t)
}

func TestRegisterInstallmentPayment_RejectsOverpayment(t *testing.T) {
	ctx := context.Background()
	f := setupLoanTest(t, testutil.DefaultLoanConfig())
	d := f.issue(t, "6000", 3, "")
	_, err := f.stack.Loans.ActivateLoan(ctx, d.Loan.ID, "")
	require.NoError(t, err)

	_, err = f.stack.Loans.RegisterInstallmentPayment(ctx, loan.PaymentRequest{
		InstallmentID: d.Installments[0].ID,
		Amount:        testutil.Dec("2000.01"),
		Date:          d.Installments[0].DueDate.Add(-time.Hour),
	})
	require.ErrorIs(t, err, domain.ErrOverpayment)
	assert.Equal(t, domain.KindInvalidAmount, domain.KindOf(err))
	assert.Equal(t, "6000", f.ars(t, domain.ProjectBox(f.borrower.ID)))
}

func TestRegisterInstallmentPayment_LateFeeComesFirst(t *testing.T) {
	ctx := context.Background()
	f := setupLoanTest(t, testutil.DefaultLoanConfig())
	d := f.issue(t, "6000", 3, "")
	_, err := f.stack.Loans.ActivateLoan(ctx, d.Loan.ID, "")
	require.NoError(t, err)

	inst := d.Installments[0]
	res, err := f.stack.Loans.RegisterInstallmentPayment(ctx, loan.PaymentRequest{
		InstallmentID: inst.ID,
		Amount:        testutil.Dec("2000"),
		Date:          inst.DueDate.AddDate(0, 0, 3),
	})
	require.NoError(t, err)

	assert.Equal(t, "100", res.Installment.LateFee.String())
	assert.Equal(t, domain.InstallmentStatusPartial, res.Installment.Status)
	assert.Equal(t, "1900", res.Installment.PrincipalPaid.String())
	assert.Equal(t, "4100", res.Loan.OutstandingBalance.String())

	detail, ok := res.Receipt.Movements[0].Detail.(domain.RepaymentDetail)
	require.True(t, ok)
	assert.Equal(t, "100", detail.LateFee.String())
	assert.Equal(t, "1900", detail.Principal.String())

	rest, err := f.stack.Loans.RegisterInstallmentPayment(ctx, loan.PaymentRequest{
		InstallmentID: inst.ID,
		Amount:        testutil.Dec("100"),
		Date:          inst.DueDate.AddDate(0, 0, 4),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.InstallmentStatusPaid, rest.Installment.Status)
	assert.Equal(t, "100", rest.Installment.LateFee.String(), "late fee is assessed once")
	assert.Equal(t, "4000", rest.Loan.OutstandingBalance.String())

	require.NoError(t, f.stack.Loans.VerifyLoan(ctx, d.Loan.ID))
}

func TestRegisterInstallmentPayment_LateFeeAfterPartialPayment(t *testing.T) {
	ctx := context.Background()
	f := setupLoanTest(t, testutil.DefaultLoanConfig())
	d := f.issue(t, "1000", 1, "")
	f.stack.Fund(t, f.borrower.ID, "100", domain.CurrencyARS)
	_, err := f.stack.Loans.ActivateLoan(ctx, d.Loan.ID, "")
	require.NoError(t, err)

	inst := d.Installments[0]
	early, err := f.stack.Loans.RegisterInstallmentPayment(ctx, loan.PaymentRequest{
		InstallmentID: inst.ID,
		Amount:        testutil.Dec("500"),
		Date:          inst.DueDate.Add(-time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "500", early.Installment.PrincipalPaid.String())
	assert.True(t, early.Installment.LateFee.IsZero())

	late, err := f.stack.Loans.RegisterInstallmentPayment(ctx, loan.PaymentRequest{
		InstallmentID: inst.ID,
		Amount:        testutil.Dec("550"),
		Date:          inst.DueDate.AddDate(0, 0, 3),
	})
	require.NoError(t, err)

	assert.Equal(t, "50", late.Installment.LateFee.String())
	assert.Equal(t, "1000", late.Installment.PrincipalPaid.String())
	assert.Equal(t, "1050", late.Installment.PaidAmount.String())
	assert.Equal(t, domain.InstallmentStatusPaid, late.Installment.Status)
	assert.True(t, late.Loan.OutstandingBalance.IsZero(), "outstanding: got %s", late.Loan.OutstandingBalance)
	assert.Equal(t, domain.LoanStatusPaid, late.Loan.Status)

	detail, ok := late.Receipt.Movements[0].Detail.(domain.RepaymentDetail)
	require.True(t, ok)
	assert.Equal(t, "50", detail.LateFee.String())
	assert.Equal(t, "500", detail.Principal.String())

	require.NoError(t, f.stack.Loans.VerifyLoan(ctx, d.Loan.ID))
}

func TestRegisterInstallmentPayment_ReplaysIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	f := setupLoanTest(t, testutil.DefaultLoanConfig())
	d := f.issue(t, "6000", 3, "")
	_, err := f.stack.Loans.ActivateLoan(ctx, d.Loan.ID, "")
	require.NoError(t, err)

	req := loan.PaymentRequest{
		Meta:          ledger.Meta{IdempotencyKey: "repay-1"},
		InstallmentID: d.Installments[0].ID,
		Amount:        testutil.Dec("500"),
		Date:          d.Installments[0].DueDate.Add(-time.Hour),
	}
	first, err := f.stack.Loans.RegisterInstallmentPayment(ctx, req)
	require.NoError(t, err)
	second, err := f.stack.Loans.RegisterInstallmentPayment(ctx, req)
	require.NoError(t, err)

	assert.True(t, second.Receipt.Replayed)
	assert.Equal(t, first.Receipt.OperationID, second.Receipt.OperationID)
	assert.Equal(t, "500", second.Loan.TotalPaid.String())

	req.InstallmentID = d.Installments[1].ID
	_, err = f.stack.Loans.RegisterInstallmentPayment(ctx, req)
	assert.ErrorIs(t, err, domain.ErrIdempotencyConflict)
}

func TestReverseOperation_RefusesLoanTransfers(t *testing.T) {
	ctx := context.Background()
	f := setupLoanTest(t, testutil.DefaultLoanConfig())
	d := f.issue(t, "6000", 3, "")
	_, err := f.stack.Loans.ActivateLoan(ctx, d.Loan.ID, "")
	require.NoError(t, err)

	res, err := f.stack.Loans.RegisterInstallmentPayment(ctx, loan.PaymentRequest{
		InstallmentID: d.Installments[0].ID,
		Amount:        testutil.Dec("500"),
		Date:          d.Installments[0].DueDate.Add(-time.Hour),
	})
	require.NoError(t, err)

	for name, opID := range map[string]uuid.UUID{
		"disbursement": *d.Loan.DisbursementOperationID,
		"repayment":    res.Receipt.OperationID,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.stack.Ledger.ReverseOperation(ctx, ledger.ReverseRequest{OperationID: opID, Reason: "undo"})
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}

	assert.Equal(t, "4500", f.ars(t, domain.ProjectBox(f.lender.ID)))
	assert.Equal(t, "5500", f.ars(t, domain.ProjectBox(f.borrower.ID)))
	require.NoError(t, f.stack.Loans.VerifyLoan(ctx, d.Loan.ID))
	f.stack.RequireBalanced(t)
}

func TestCancelLoan(t *testing.T) {
	tests := []struct {
		name         string
		policy       loan.CancellationPolicy
		wantLender   string
		wantBorrower string
	}{
		{"retain keeps funds with borrower", loan.CancelRetain, "4000", "6000"},
		{"reverse returns funds to lender", loan.CancelReverse, "10000", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cfg := testutil.DefaultLoanConfig()
			cfg.CancellationPolicy = tt.policy
			f := setupLoanTest(t, cfg)
			d := f.issue(t, "6000", 3, "")

			got, err := f.stack.Loans.CancelLoan(ctx, loan.CancelRequest{LoanID: d.Loan.ID, Reason: "borrower withdrew"})
			require.NoError(t, err)

			assert.Equal(t, domain.LoanStatusCancelled, got.Loan.Status)
			require.NotNil(t, got.Loan.CancellationReason)
			assert.Equal(t, "borrower withdrew", *got.Loan.CancellationReason)
			for _, inst := range got.Installments {
				assert.Equal(t, domain.InstallmentStatusCancelled, inst.Status)
			}
			assert.Equal(t, tt.wantLender, f.ars(t, domain.ProjectBox(f.lender.ID)))
			assert.Equal(t, tt.wantBorrower, f.ars(t, domain.ProjectBox(f.borrower.ID)))

			_, err = f.stack.Loans.ActivateLoan(ctx, d.Loan.ID, "")
			assert.ErrorIs(t, err, domain.ErrIllegalTransition)
			f.stack.RequireBalanced(t)
		})
	}
}

func TestCancelLoan_ActiveLoanIsIllegal(t *testing.T) {
	ctx := context.Background()
	f := setupLoanTest(t, testutil.DefaultLoanConfig())
	d := f.issue(t, "6000", 3, "")
	_, err := f.stack.Loans.ActivateLoan(ctx, d.Loan.ID, "")
	require.NoError(t, err)

	_, err = f.stack.Loans.CancelLoan(ctx, loan.CancelRequest{LoanID: d.Loan.ID, Reason: "too late"})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

func TestDraftThenSubmit(t *testing.T) {
	ctx := context.Background()
	f := setupLoanTest(t, testutil.DefaultLoanConfig())

	draft, err := f.stack.Loans.DraftLoan(ctx, loan.IssueRequest{
		LenderProjectID:   f.lender.ID,
		BorrowerProjectID: f.borrower.ID,
		Principal:         testutil.Dec("1000"),
		Currency:          domain.CurrencyARS,
		DueDate:           time.Now().AddDate(0, 2, 0),
		InstallmentCount:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusDraft, draft.Loan.Status)
	assert.Nil(t, draft.Loan.DisbursementOperationID)
	assert.Equal(t, "10000", f.ars(t, domain.ProjectBox(f.lender.ID)))

	submitted, err := f.stack.Loans.SubmitLoan(ctx, draft.Loan.ID, ledger.Meta{Actor: "treasurer"})
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusPending, submitted.Loan.Status)
	assert.NotNil(t, submitted.Loan.DisbursementOperationID)
	assert.Equal(t, "9000", f.ars(t, domain.ProjectBox(f.lender.ID)))

	_, err = f.stack.Loans.SubmitLoan(ctx, draft.Loan.ID, ledger.Meta{})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

func TestRepayMaster(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.DefaultLoanConfig()
	cfg.RepaymentTarget = loan.RepayMaster
	f := setupLoanTest(t, cfg)
	d := f.issue(t, "1000", 1, "")
	_, err := f.stack.Loans.ActivateLoan(ctx, d.Loan.ID, "")
	require.NoError(t, err)

	masterBefore := f.stack.Balance(t, domain.MasterBox).ARS
	_, err = f.stack.Loans.RegisterInstallmentPayment(ctx, loan.PaymentRequest{
		InstallmentID: d.Installments[0].ID,
		Amount:        testutil.Dec("1000"),
		Date:          d.Installments[0].DueDate.Add(-time.Hour),
	})
	require.NoError(t, err)

	assert.Equal(t, "9000", f.ars(t, domain.ProjectBox(f.lender.ID)))
	assert.Equal(t, masterBefore.Add(testutil.Dec("1000")).String(), f.stack.Balance(t, domain.MasterBox).ARS.String())
	f.stack.RequireBalanced(t)
}

func TestListOverdue(t *testing.T) {
	ctx := context.Background()
	f := setupLoanTest(t, testutil.DefaultLoanConfig())
	d := f.issue(t, "3000", 3, "")
	_, err := f.stack.Loans.ActivateLoan(ctx, d.Loan.ID, "")
	require.NoError(t, err)

	none, err := f.stack.Loans.ListOverdue(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, none)

	later := d.Installments[1].DueDate.AddDate(0, 0, 10)
	overdue, err := f.stack.Loans.ListOverdue(ctx, later)
	require.NoError(t, err)
	require.Len(t, overdue, 2)
	assert.Equal(t, 1, overdue[0].Installment.Number)
	assert.Equal(t, 10, overdue[1].DaysLate)

	status := domain.LoanStatusOverdue
	loans, err := f.stack.Loans.ListLoans(ctx, domain.LoanFilter{Status: &status})
	require.NoError(t, err)
	assert.Empty(t, loans, "not past the final due date yet")
}
