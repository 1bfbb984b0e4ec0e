package loan

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

var monthsPerYear = decimal.NewFromInt(12)

// BuildSchedule splits principal into n equal principal shares, the rounding remainder
// landing on the last. Installments fall due monthly, the last on dueDate. Interest on each
// is the outstanding principal before it times rate/12, rate being an annual percentage.
func BuildSchedule(loanID uuid.UUID, principal decimal.Decimal, c domain.Currency, rate decimal.Decimal, dueDate time.Time, n int) []domain.LoanInstallment {
	count := decimal.NewFromInt(int64(n))
	share := principal.Div(count).Truncate(c.Fraction())
	last := principal.Sub(share.Mul(count.Sub(decimal.NewFromInt(1))))
	monthly := rate.Div(decimal.NewFromInt(100)).Div(monthsPerYear)

	installments := make([]domain.LoanInstallment, 0, n)
	remaining := principal
	for i := 1; i <= n; i++ {
		amount := share
		if i == n {
			amount = last
		}
		installments = append(installments, domain.LoanInstallment{
			ID:       uuid.New(),
			LoanID:   loanID,
			Number:   i,
			Amount:   amount,
			Interest: c.Round(remaining.Mul(monthly)),
			LateFee:  decimal.Zero,
			DueDate:  dueDate.AddDate(0, i-n, 0),
			Status:   domain.InstallmentStatusPending,
		})
		remaining = remaining.Sub(amount)
	}
	return installments
}

// allocation is how one payment splits across an installment's components.
type allocation struct {
	LateFee   decimal.Decimal
	Interest  decimal.Decimal
	Principal decimal.Decimal
}

// allocate applies amount to inst late fee first, then interest, then principal. What earlier
// payments covered beyond principal counts against the fee and interest, since a late fee can
// be assessed after principal has already been repaid.
func allocate(inst *domain.LoanInstallment, amount decimal.Decimal) allocation {
	chargesPaid := inst.PaidAmount.Sub(inst.PrincipalPaid)
	feePaid := decimal.Min(chargesPaid, inst.LateFee)
	interestPaid := decimal.Min(chargesPaid.Sub(feePaid), inst.Interest)

	var a allocation
	rest := amount
	a.LateFee = decimal.Min(rest, inst.LateFee.Sub(feePaid))
	rest = rest.Sub(a.LateFee)
	a.Interest = decimal.Min(rest, inst.Interest.Sub(interestPaid))
	rest = rest.Sub(a.Interest)
	a.Principal = decimal.Min(rest, inst.Amount.Sub(inst.PrincipalPaid))
	return a
}

// outstanding is principal less every principal share already repaid.
func outstanding(principal decimal.Decimal, installments []domain.LoanInstallment) decimal.Decimal {
	out := principal
	for _, i := range installments {
		out = out.Sub(i.PrincipalPaid)
	}
	return out
}
