package ledger

import (
	"context"
	"fmt"
	"iter"

	"github.com/google/uuid"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

const maxPageSize = 200

func (s *Service) GetBalance(ctx context.Context, owner domain.BoxRef) (domain.Balance, error) {
	if err := owner.Validate(); err != nil {
		return domain.Balance{}, fmt.Errorf("GetBalance: %w", err)
	}
	bal, err := s.boxes.GetBalance(ctx, owner)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("GetBalance: %w", err)
	}
	return bal, nil
}

func (s *Service) GetBox(ctx context.Context, owner domain.BoxRef) (*domain.CashBox, error) {
	if err := owner.Validate(); err != nil {
		return nil, fmt.Errorf("GetBox: %w", err)
	}
	box, err := s.boxes.GetByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("GetBox: %w", err)
	}
	return box, nil
}

// ListBoxes returns every box, or only those of kind when it is set.
func (s *Service) ListBoxes(ctx context.Context, kind *domain.OwnerKind) ([]domain.CashBox, error) {
	if kind != nil && (!kind.IsValid() || *kind == domain.OwnerExternal) {
		return nil, fmt.Errorf("ListBoxes: owner kind %q: %w", *kind, domain.ErrInvalidRequest)
	}
	boxes, err := s.boxes.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("ListBoxes: %w", err)
	}
	return boxes, nil
}

// QueryMovements streams movements matching f, newest first.
func (s *Service) QueryMovements(ctx context.Context, f domain.MovementFilter) iter.Seq2[domain.Movement, error] {
	return s.movements.Query(ctx, f)
}

type MovementPage struct {
	Movements []domain.Movement
	Total     int
	Limit     int
	Offset    int
}

func (s *Service) PageMovements(ctx context.Context, f domain.MovementFilter, limit, offset int) (*MovementPage, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	movements, total, err := s.movements.Page(ctx, f, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("PageMovements: %w", err)
	}
	return &MovementPage{Movements: movements, Total: total, Limit: limit, Offset: offset}, nil
}

// GetOperation returns an operation with its movements.
func (s *Service) GetOperation(ctx context.Context, id uuid.UUID) (*domain.Operation, []domain.Movement, error) {
	op, err := s.operations.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("GetOperation: %w", err)
	}
	movements, err := s.movements.GetByOperation(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("GetOperation: %w", err)
	}
	return op, movements, nil
}

// MovementSums returns what the movement log says flowed into and out of a box.
func (s *Service) MovementSums(ctx context.Context, owner domain.BoxRef) (domain.BoxSums, error) {
	if err := owner.Validate(); err != nil {
		return domain.BoxSums{}, fmt.Errorf("MovementSums: %w", err)
	}
	sums, err := s.movements.SumsByBox(ctx, owner)
	if err != nil {
		return domain.BoxSums{}, fmt.Errorf("MovementSums: %w", err)
	}
	return sums, nil
}
