package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"iter"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
	"github.com/josh-kwaku/backoffice-ledger/internal/fx"
	"github.com/josh-kwaku/backoffice-ledger/internal/logging"
)

type boxRepo interface {
	GetByOwner(ctx context.Context, owner domain.BoxRef) (*domain.CashBox, error)
	GetBalance(ctx context.Context, owner domain.BoxRef) (domain.Balance, error)
	List(ctx context.Context, kind *domain.OwnerKind) ([]domain.CashBox, error)
	Ensure(ctx context.Context, owner domain.BoxRef) (*domain.CashBox, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, owner domain.BoxRef) (*domain.CashBox, error)
	ApplyDelta(ctx context.Context, tx *sql.Tx, box *domain.CashBox, delta domain.BoxDelta) error
}

type movementRepo interface {
	Append(ctx context.Context, tx *sql.Tx, m *domain.Movement) error
	Query(ctx context.Context, f domain.MovementFilter) iter.Seq2[domain.Movement, error]
	Page(ctx context.Context, f domain.MovementFilter, limit, offset int) ([]domain.Movement, int, error)
	GetByOperation(ctx context.Context, operationID uuid.UUID) ([]domain.Movement, error)
	GetByOperationTx(ctx context.Context, tx *sql.Tx, operationID uuid.UUID) ([]domain.Movement, error)
	SumsByBox(ctx context.Context, owner domain.BoxRef) (domain.BoxSums, error)
}

type operationRepo interface {
	CreateTx(ctx context.Context, tx *sql.Tx, op *domain.Operation) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Operation, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Operation, error)
	GetByIdempotencyKeyTx(ctx context.Context, tx *sql.Tx, key string) (*domain.Operation, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Operation, error)
	MarkReversed(ctx context.Context, tx *sql.Tx, id, reversalID uuid.UUID) error
}

type projectRegistry interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)
}

type rateService interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to domain.Currency, source string) (*fx.Conversion, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Service posts every balance-affecting operation. Cash boxes are only ever changed here,
// and only by the deltas of the movements it appends.
type Service struct {
	boxes      boxRepo
	movements  movementRepo
	operations operationRepo
	projects   projectRegistry
	rates      rateService
	db         txRunner
}

func NewService(
	boxes boxRepo,
	movements movementRepo,
	operations operationRepo,
	projects projectRegistry,
	rates rateService,
	db txRunner,
) *Service {
	return &Service{
		boxes:      boxes,
		movements:  movements,
		operations: operations,
		projects:   projects,
		rates:      rates,
		db:         db,
	}
}

// Meta carries the caller's idempotency key and identity. An empty key disables replay.
type Meta struct {
	IdempotencyKey string
	Actor          string
}

func (m Meta) key() *string {
	if m.IdempotencyKey == "" {
		return nil
	}
	k := m.IdempotencyKey
	return &k
}

func (m Meta) actor() string {
	if m.Actor == "" {
		return "system"
	}
	return m.Actor
}

// Receipt is returned by every posting operation. Replayed is set when the idempotency key
// matched an earlier operation and nothing new was written.
type Receipt struct {
	OperationID uuid.UUID
	Kind        domain.OperationKind
	Movements   []domain.Movement
	Replayed    bool
}

// Bootstrap ensures the Master and Admin boxes exist.
func (s *Service) Bootstrap(ctx context.Context) error {
	for _, owner := range []domain.BoxRef{domain.MasterBox, domain.AdminBox} {
		box, err := s.boxes.Ensure(ctx, owner)
		if err != nil {
			return fmt.Errorf("Bootstrap: %w", err)
		}
		logging.FromContext(ctx).Debug("cash box ready", "owner", owner.String(), "box_id", box.ID)
	}
	return nil
}

func (s *Service) requireProject(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("project id: %w", domain.ErrInvalidRequest)
	}
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsArchived() {
		return nil, fmt.Errorf("project %s: %w", id, domain.ErrBoxRetired)
	}
	return p, nil
}

func validateAmount(amount decimal.Decimal, c domain.Currency) error {
	if !c.IsValid() {
		return fmt.Errorf("currency %q: %w", c, domain.ErrInvalidCurrency)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%s: %w", amount, domain.ErrInvalidAmount)
	}
	if !amount.Equal(c.Round(amount)) {
		return fmt.Errorf("%s has more than %d decimals for %s: %w", amount, c.Fraction(), c, domain.ErrInvalidAmount)
	}
	return nil
}
