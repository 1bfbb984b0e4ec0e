package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/josh-kwaku/backoffice-ledger/internal/app"
	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

type balanceCmd struct{}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "print cash box balances" }
func (*balanceCmd) Usage() string {
	return `ledgerctl balance [master|admin|project:<id> ...]

  Prints the ARS and USD balance of the named boxes, or of every box.
`
}

func (*balanceCmd) SetFlags(*flag.FlagSet) {}

func (*balanceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	owners := make([]domain.BoxRef, 0, f.NArg())
	for _, arg := range f.Args() {
		owner, err := domain.ParseBoxRef(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		owners = append(owners, owner)
	}

	return withApp(ctx, func(a *app.App) error {
		var boxes []domain.CashBox
		if len(owners) == 0 {
			all, err := a.Ledger.ListBoxes(ctx, nil)
			if err != nil {
				return err
			}
			boxes = all
		}
		for _, owner := range owners {
			b, err := a.Ledger.GetBox(ctx, owner)
			if err != nil {
				return err
			}
			boxes = append(boxes, *b)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "BOX\tARS\tUSD\tSTATUS\t")
		for _, b := range boxes {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", b.Owner,
				domain.CurrencyARS.Format(b.Balance.ARS),
				domain.CurrencyUSD.Format(b.Balance.USD),
				b.Status)
		}
		return tw.Flush()
	})
}
