package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
	"github.com/josh-kwaku/backoffice-ledger/internal/fx"
	"github.com/josh-kwaku/backoffice-ledger/internal/repository"
	"github.com/josh-kwaku/backoffice-ledger/internal/service"
	"github.com/josh-kwaku/backoffice-ledger/internal/service/ledger"
	"github.com/josh-kwaku/backoffice-ledger/internal/service/loan"
)

// Stack is every service wired against one test database.
type Stack struct {
	Pool     *sql.DB
	DSN      string
	DB       *repository.DB
	Boxes    *repository.CashBoxRepository
	Oracle   *fx.StaticOracle
	Ledger   *ledger.Service
	Projects *service.ProjectService
	Loans    *loan.Service
	Auditor  *ledger.Auditor
}

// DefaultQuotes price USD at 1000 ARS buying and 1050 ARS selling on the "official" source.
func DefaultQuotes() map[string]fx.Quote {
	return map[string]fx.Quote{
		"official": {Buy: decimal.NewFromInt(1000), Sell: decimal.NewFromInt(1050), AsOf: time.Now().UTC()},
	}
}

// NewStack starts a database, wires the services with loanCfg and bootstraps Master and Admin.
func NewStack(t *testing.T, loanCfg loan.Config) *Stack {
	t.Helper()

	pool, dsn := SetupTestDB(t)
	db := repository.NewDB(pool, repository.TxConfig{
		LockTimeout:      2 * time.Second,
		StatementTimeout: 10 * time.Second,
		ConflictRetries:  2,
	})

	boxes := repository.NewCashBoxRepository(pool)
	projects := repository.NewProjectRepository(pool)
	loans := repository.NewLoanRepository(pool)
	oracle := fx.NewStaticOracle(DefaultQuotes())

	ledgerSvc := ledger.NewService(
		boxes,
		repository.NewMovementRepository(pool),
		repository.NewOperationRepository(pool),
		projects,
		fx.NewRateService(oracle),
		db,
	)
	if err := ledgerSvc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	return &Stack{
		Pool:     pool,
		DSN:      dsn,
		DB:       db,
		Boxes:    boxes,
		Oracle:   oracle,
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
		Auditor: ledger.NewAuditor(boxes, repository.NewAuditRepository(pool), 4),
	}
}

// DefaultLoanConfig retains disbursements on cancel, repays the lender and charges 5% late.
func DefaultLoanConfig() loan.Config {
	return loan.Config{
		CancellationPolicy: loan.CancelRetain,
		RepaymentTarget:    loan.RepayLender,
		LateFeePct:         decimal.NewFromInt(5),
	}
}

func (s *Stack) SeedProject(t *testing.T, name string) *domain.Project {
	t.Helper()

	p, err := s.Projects.CreateProject(context.Background(), name, domain.CurrencyARS, nil)
	if err != nil {
		t.Fatalf("seed project %s: %v", name, err)
	}
	return p
}

// Fund books a client payment into the project so it holds amount of c.
func (s *Stack) Fund(t *testing.T, projectID uuid.UUID, amount string, c domain.Currency) {
	t.Helper()

	_, err := s.Ledger.RecordProjectPayment(context.Background(), ledger.ProjectPaymentRequest{
		Meta:      ledger.Meta{Actor: "test"},
		ProjectID: projectID,
		Amount:    decimal.RequireFromString(amount),
		Currency:  c,
	})
	if err != nil {
		t.Fatalf("fund project %s with %s %s: %v", projectID, amount, c, err)
	}
}

func (s *Stack) Balance(t *testing.T, owner domain.BoxRef) domain.Balance {
	t.Helper()

	b, err := s.Boxes.GetBalance(context.Background(), owner)
	if err != nil {
		t.Fatalf("balance of %s: %v", owner, err)
	}
	return b
}

func (s *Stack) CountMovements(t *testing.T, operationID uuid.UUID) int {
	t.Helper()

	var count int
	err := s.Pool.QueryRow(`SELECT COUNT(*) FROM movements WHERE operation_id = $1`, operationID).Scan(&count)
	if err != nil {
		t.Fatalf("count movements for operation %s: %v", operationID, err)
	}
	return count
}

// RequireBalanced fails the test when any box disagrees with its movement log.
func (s *Stack) RequireBalanced(t *testing.T) {
	t.Helper()

	mismatches, err := s.Auditor.VerifyAll(context.Background())
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	for _, m := range mismatches {
		t.Errorf("audit mismatch: %v", m)
	}
}

// Dec is decimal.RequireFromString, for table literals.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
