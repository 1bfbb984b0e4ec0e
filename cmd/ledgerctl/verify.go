package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/josh-kwaku/backoffice-ledger/internal/app"
	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

type verifyCmd struct {
	loans bool
}

func (*verifyCmd) Name() string     { return "verify" }
func (*verifyCmd) Synopsis() string { return "check every box against its movement log" }
func (*verifyCmd) Usage() string {
	return `ledgerctl verify [-loans]

  Recomputes each cash box from the movement log and reports boxes whose stored balance
  differs. With -loans, also checks every loan's schedule and payments.
`
}

func (c *verifyCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.loans, "loans", false, "also verify loans")
}

func (c *verifyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	return withApp(ctx, func(a *app.App) error {
		mismatches, err := a.Auditor.VerifyAll(ctx)
		if err != nil {
			return err
		}
		for _, m := range mismatches {
			fmt.Printf("MISMATCH %s\n", m)
		}

		broken := 0
		if c.loans {
			loans, err := a.Loans.ListLoans(ctx, domain.LoanFilter{})
			if err != nil {
				return err
			}
			for _, l := range loans {
				if err := a.Loans.VerifyLoan(ctx, l.ID); err != nil {
					if !errors.Is(err, domain.ErrInvariantViolation) {
						return err
					}
					broken++
					fmt.Printf("LOAN %s: %v\n", l.Code, err)
				}
			}
			fmt.Printf("%d loans checked\n", len(loans))
		}

		if len(mismatches) > 0 || broken > 0 {
			return fmt.Errorf("%d boxes and %d loans inconsistent: %w", len(mismatches), broken, domain.ErrInvariantViolation)
		}
		fmt.Println("ledger balanced")
		return nil
	})
}
