package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/josh-kwaku/backoffice-ledger/internal/app"
	"github.com/josh-kwaku/backoffice-ledger/internal/repository"
)

type migrateCmd struct {
	status bool
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply pending schema migrations" }
func (*migrateCmd) Usage() string {
	return `ledgerctl migrate [-status]

  Applies every pending migration to DATABASE_URL, or prints the applied version.
`
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.status, "status", false, "print the applied version without migrating")
}

func (c *migrateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	cfg, ok := loadConfig()
	if !ok {
		return subcommands.ExitUsageError
	}

	if !c.status {
		if err := repository.RunMigrations(cfg.DatabaseURL); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	v, dirty, err := repository.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("schema version %d (dirty=%t)\n", v, dirty)
	if dirty {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type bootstrapCmd struct{}

func (*bootstrapCmd) Name() string     { return "bootstrap" }
func (*bootstrapCmd) Synopsis() string { return "create the Master and Admin cash boxes" }
func (*bootstrapCmd) Usage() string {
	return `ledgerctl bootstrap

  Ensures the Master and Admin boxes exist. Safe to run repeatedly.
`
}

func (*bootstrapCmd) SetFlags(*flag.FlagSet) {}

func (*bootstrapCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	return withApp(ctx, func(a *app.App) error {
		if err := a.Ledger.Bootstrap(ctx); err != nil {
			return err
		}
		fmt.Println("master and admin boxes ready")
		return nil
	})
}
