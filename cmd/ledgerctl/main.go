package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"

	"github.com/josh-kwaku/backoffice-ledger/internal/app"
	"github.com/josh-kwaku/backoffice-ledger/internal/config"
	"github.com/josh-kwaku/backoffice-ledger/internal/logging"
)

func main() {
	_ = godotenv.Load()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&migrateCmd{}, "schema")
	commander.Register(&bootstrapCmd{}, "schema")
	commander.Register(&verifyCmd{}, "audit")
	commander.Register(&balanceCmd{}, "audit")
	commander.Register(&tokenCmd{}, "auth")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

func loadConfig() (*config.Config, bool) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, false
	}
	logging.Init("ledgerctl", cfg.LogLevel, "development")
	return cfg, true
}

// withApp loads the configuration, wires the services and closes the pool when fn returns.
func withApp(ctx context.Context, fn func(*app.App) error) subcommands.ExitStatus {
	cfg, ok := loadConfig()
	if !ok {
		return subcommands.ExitUsageError
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Pool.Close()

	if err := fn(a); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
