package loan

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
	"github.com/josh-kwaku/backoffice-ledger/internal/logging"
	"github.com/josh-kwaku/backoffice-ledger/internal/metrics"
	"github.com/josh-kwaku/backoffice-ledger/internal/service/ledger"
)

type loanRepo interface {
	Create(ctx context.Context, tx *sql.Tx, l *domain.Loan) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)
	GetByDisbursementOperation(ctx context.Context, operationID uuid.UUID) (*domain.Loan, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Loan, error)
	Update(ctx context.Context, tx *sql.Tx, l *domain.Loan) error
	List(ctx context.Context, f domain.LoanFilter) ([]domain.Loan, error)
	NextCodeSeq(ctx context.Context, tx *sql.Tx) (int64, error)
	CreateInstallments(ctx context.Context, tx *sql.Tx, installments []domain.LoanInstallment) error
	GetInstallment(ctx context.Context, id uuid.UUID) (*domain.LoanInstallment, error)
	GetInstallments(ctx context.Context, loanID uuid.UUID) ([]domain.LoanInstallment, error)
	GetInstallmentsForUpdate(ctx context.Context, tx *sql.Tx, loanID uuid.UUID) ([]domain.LoanInstallment, error)
	UpdateInstallment(ctx context.Context, tx *sql.Tx, i *domain.LoanInstallment) error
}

type eventRepo interface {
	Create(ctx context.Context, tx *sql.Tx, e *domain.LoanEvent) error
	GetByLoanID(ctx context.Context, loanID uuid.UUID) ([]domain.LoanEvent, error)
}

type projectRegistry interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)
}

// poster is the slice of the ledger the loan engine moves money through.
type poster interface {
	TransferTx(ctx context.Context, tx *sql.Tx, req ledger.TransferRequest) (*ledger.Receipt, error)
	ReverseTx(ctx context.Context, tx *sql.Tx, req ledger.ReverseRequest) (*ledger.Receipt, error)
	Replay(ctx context.Context, meta ledger.Meta, kind domain.OperationKind) (*ledger.Receipt, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type CancellationPolicy string

const (
	// CancelRetain leaves disbursed funds with the borrower.
	CancelRetain CancellationPolicy = "retain"
	// CancelReverse reverses the disbursement in the cancelling transaction.
	CancelReverse CancellationPolicy = "reverse"
)

type RepaymentTarget string

const (
	RepayLender RepaymentTarget = "lender"
	RepayMaster RepaymentTarget = "master"
)

type Config struct {
	CancellationPolicy CancellationPolicy
	RepaymentTarget    RepaymentTarget
	// LateFeePct is charged once on an installment's principal and interest when it is paid late.
	LateFeePct decimal.Decimal
}

func (c Config) Validate() error {
	switch c.CancellationPolicy {
	case CancelRetain, CancelReverse:
	default:
		return fmt.Errorf("cancellation policy %q: want retain or reverse", c.CancellationPolicy)
	}
	switch c.RepaymentTarget {
	case RepayLender, RepayMaster:
	default:
		return fmt.Errorf("repayment target %q: want lender or master", c.RepaymentTarget)
	}
	if c.LateFeePct.IsNegative() {
		return fmt.Errorf("late fee %s%%: must not be negative", c.LateFeePct)
	}
	return nil
}

type Service struct {
	loans    loanRepo
	events   eventRepo
	projects projectRegistry
	ledger   poster
	db       txRunner
	config   Config
	now      func() time.Time
}

func NewService(
	loans loanRepo,
	events eventRepo,
	projects projectRegistry,
	ledger poster,
	db txRunner,
	cfg Config,
) *Service {
	return &Service{
		loans:    loans,
		events:   events,
		projects: projects,
		ledger:   ledger,
		db:       db,
		config:   cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// transition moves l to next, stamping the matching timestamp, and appends the event.
func (s *Service) transition(ctx context.Context, tx *sql.Tx, l *domain.Loan, next domain.LoanStatus, ev domain.LoanEventType, opID *uuid.UUID, actor, note string) error {
	if !l.Status.CanTransitionTo(next) {
		return fmt.Errorf("transition: %s -> %s: %w", l.Status, next, domain.ErrIllegalTransition)
	}

	now := s.now()
	from := l.Status
	l.Status = next
	l.UpdatedAt = now
	switch next {
	case domain.LoanStatusActive:
		l.ActivatedAt = &now
	case domain.LoanStatusPaid:
		l.PaidAt = &now
	case domain.LoanStatusCancelled:
		l.CancelledAt = &now
	}

	if err := s.loans.Update(ctx, tx, l); err != nil {
		return fmt.Errorf("transition: %w", err)
	}
	return s.appendEvent(ctx, tx, l.ID, ev, &from, next, opID, actor, note)
}

func (s *Service) appendEvent(ctx context.Context, tx *sql.Tx, loanID uuid.UUID, ev domain.LoanEventType, from *domain.LoanStatus, to domain.LoanStatus, opID *uuid.UUID, actor, note string) error {
	if actor == "" {
		actor = "system"
	}
	e := &domain.LoanEvent{
		ID:          uuid.New(),
		LoanID:      loanID,
		EventType:   ev,
		FromStatus:  from,
		ToStatus:    to,
		OperationID: opID,
		Actor:       actor,
		Note:        note,
		CreatedAt:   s.now(),
	}
	if err := s.events.Create(ctx, tx, e); err != nil {
		return fmt.Errorf("appendEvent: %w", err)
	}
	return nil
}

func (s *Service) requireProject(ctx context.Context, id uuid.UUID, role string) (*domain.Project, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", role, err)
	}
	if p.IsArchived() {
		return nil, fmt.Errorf("%s %s: %w", role, id, domain.ErrBoxRetired)
	}
	return p, nil
}

func observe(ctx context.Context, op string, start time.Time, err error, attrs ...any) {
	elapsed := time.Since(start)
	log := logging.FromContext(ctx)
	if err != nil {
		kind := domain.KindOf(err)
		metrics.RecordOperation(op, string(kind), elapsed)
		log.Warn("loan operation rejected", append([]any{"op", op, "error_kind", kind, "error", err}, attrs...)...)
		return
	}
	metrics.RecordOperation(op, "ok", elapsed)
	log.Info("loan operation committed", append([]any{"op", op, "duration_ms", elapsed.Milliseconds()}, attrs...)...)
}
