package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"github.com/josh-kwaku/backoffice-ledger/internal/auth"
)

type tokenCmd struct {
	role   string
	expiry time.Duration
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "issue an operator token for the API" }
func (*tokenCmd) Usage() string {
	return `ledgerctl token [-role viewer|treasurer] [-expiry 8h] <operator>

  Signs a bearer token with JWT_SECRET for the named operator.
`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.role, "role", string(auth.RoleViewer), "viewer or treasurer")
	f.DurationVar(&c.expiry, "expiry", 8*time.Hour, "token lifetime")
}

func (c *tokenCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	role := auth.Role(c.role)
	if !role.IsValid() {
		fmt.Fprintf(os.Stderr, "Error: unknown role %q\n", c.role)
		return subcommands.ExitUsageError
	}

	cfg, ok := loadConfig()
	if !ok {
		return subcommands.ExitUsageError
	}
	tok, err := auth.GenerateToken(f.Arg(0), role, cfg.JWTSecret, c.expiry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println(tok)
	return subcommands.ExitSuccess
}
