package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/josh-kwaku/backoffice-ledger/internal/config"
	"github.com/josh-kwaku/backoffice-ledger/internal/fx"
	"github.com/josh-kwaku/backoffice-ledger/internal/repository"
	"github.com/josh-kwaku/backoffice-ledger/internal/service"
	"github.com/josh-kwaku/backoffice-ledger/internal/service/ledger"
	"github.com/josh-kwaku/backoffice-ledger/internal/service/loan"
)

// App holds the services shared by the API server and the ops CLI.
type App struct {
	Pool     *sql.DB
	Rates    *fx.RateService
	Ledger   *ledger.Service
	Projects *service.ProjectService
	Loans    *loan.Service
	Auditor  *ledger.Auditor
}

// New opens the database pool and wires every service. The caller closes Pool.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	loanCfg := LoanConfig(cfg)
	if err := loanCfg.Validate(); err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}
	oracle, err := NewOracle(cfg)
	if err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}

	pool, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		return nil, fmt.Errorf("app.New: %w", err)
	}

	db := repository.NewDB(pool, repository.TxConfig{
		LockTimeout:      cfg.DBLockTimeout,
		StatementTimeout: cfg.DBStatementTimeout,
		ConflictRetries:  cfg.DBConflictRetries,
	})
	boxes := repository.NewCashBoxRepository(pool)
	projects := repository.NewProjectRepository(pool)
	loans := repository.NewLoanRepository(pool)
	rates := fx.NewRateService(oracle)

	ledgerSvc := ledger.NewService(
		boxes,
		repository.NewMovementRepository(pool),
		repository.NewOperationRepository(pool),
		projects,
		rates,
		db,
	)

	return &App{
		Pool:     pool,
		Rates:    rates,
		Ledger:   ledgerSvc,
		Projects: service.NewProjectService(projects, boxes, loans, db),
		Loans: loan.NewService(
			loans,
			repository.NewLoanEventRepository(pool),
			projects,
			ledgerSvc,
			db,
			loanCfg,
		),
		Auditor: ledger.NewAuditor(boxes, repository.NewAuditRepository(pool), cfg.AuditConcurrency),
	}, nil
}

func LoanConfig(cfg *config.Config) loan.Config {
	return loan.Config{
		CancellationPolicy: loan.CancellationPolicy(cfg.LoanCancellationPolicy),
		RepaymentTarget:    loan.RepaymentTarget(cfg.LoanRepaymentTarget),
		LateFeePct:         cfg.LoanLateFeePct,
	}
}

// NewOracle picks the configured rate source.
func NewOracle(cfg *config.Config) (fx.Oracle, error) {
	switch cfg.RateOracle {
	case "http":
		return fx.NewHTTPOracle(fx.HTTPOracleConfig{
			BaseURL:           cfg.RateOracleURL,
			BuyPath:           cfg.RateBuyPath,
			SellPath:          cfg.RateSellPath,
			AsOfPath:          cfg.RateAsOfPath,
			MaxAge:            cfg.RateMaxAge,
			RequestsPerSecond: cfg.RateRequestsPerSecond,
			Timeout:           cfg.RateTimeout,
		}), nil
	default:
		quotes, err := fx.ParseStaticRates(cfg.StaticRates)
		if err != nil {
			return nil, fmt.Errorf("NewOracle: %w", err)
		}
		return fx.NewStaticOracle(quotes), nil
	}
}
