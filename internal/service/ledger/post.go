package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
	"github.com/josh-kwaku/backoffice-ledger/internal/logging"
	"github.com/josh-kwaku/backoffice-ledger/internal/metrics"
)

// posting is one operation ready to commit: its movements are complete apart from the
// identifiers and timestamps the poster assigns.
type posting struct {
	Kind          domain.OperationKind
	Meta          Meta
	Movements     []domain.Movement
	Description   string
	ProjectID     *uuid.UUID
	LoanID        *uuid.UUID
	InstallmentID *uuid.UUID
}

// post commits p in its own transaction and records the outcome.
func (s *Service) post(ctx context.Context, p posting) (*Receipt, error) {
	start := time.Now()

	var receipt *Receipt
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		receipt, err = s.postTx(ctx, tx, p)
		return err
	})

	s.observe(ctx, p, receipt, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// postTx records the operation, locks every box the movements touch, checks that no
// balance goes negative, applies the deltas and appends the movements. Box balances are
// derived from the movements alone.
func (s *Service) postTx(ctx context.Context, tx *sql.Tx, p posting) (*Receipt, error) {
	if len(p.Movements) == 0 {
		return nil, fmt.Errorf("postTx: %s: no movements: %w", p.Kind, domain.ErrInvalidRequest)
	}

	now := time.Now().UTC()
	op := &domain.Operation{
		ID:             uuid.New(),
		Kind:           p.Kind,
		IdempotencyKey: p.Meta.key(),
		Actor:          p.Meta.actor(),
		CreatedAt:      now,
	}

	created, err := s.operations.CreateTx(ctx, tx, op)
	if err != nil {
		return nil, fmt.Errorf("postTx: %w", err)
	}
	if !created {
		return s.replayTx(ctx, tx, p.Kind, *op.IdempotencyKey)
	}

	deltas := deltasFor(p.Movements, now)
	owners := sortedOwners(deltas)

	boxes, err := s.lockBoxes(ctx, tx, owners)
	if err != nil {
		return nil, fmt.Errorf("postTx: %w", err)
	}

	for _, owner := range owners {
		box, d := boxes[owner], deltas[owner]
		if box.IsRetired() {
			return nil, fmt.Errorf("postTx: %s: %w", owner, domain.ErrBoxRetired)
		}
		next := domain.Balance{
			ARS: box.Balance.ARS.Add(d.Balance.ARS),
			USD: box.Balance.USD.Add(d.Balance.USD),
		}
		for _, c := range []domain.Currency{domain.CurrencyARS, domain.CurrencyUSD} {
			if next.Of(c).IsNegative() {
				return nil, fmt.Errorf("postTx: %s holds %s, needs %s: %w",
					owner, c.Format(box.Balance.Of(c)), c.Format(d.Balance.Of(c).Neg()), domain.ErrInsufficientFunds)
			}
		}
	}

	for _, owner := range owners {
		if err := s.boxes.ApplyDelta(ctx, tx, boxes[owner], *deltas[owner]); err != nil {
			return nil, fmt.Errorf("postTx: %s: %w", owner, err)
		}
	}

	receipt := &Receipt{OperationID: op.ID, Kind: op.Kind, Movements: make([]domain.Movement, 0, len(p.Movements))}
	for _, m := range p.Movements {
		m.ID = uuid.New()
		m.OperationID = op.ID
		m.Actor = op.Actor
		m.CreatedAt = now
		if m.Description == "" {
			m.Description = p.Description
		}
		if m.ProjectID == nil {
			m.ProjectID = p.ProjectID
		}
		if m.LoanID == nil {
			m.LoanID = p.LoanID
		}
		if m.InstallmentID == nil {
			m.InstallmentID = p.InstallmentID
		}
		if err := s.movements.Append(ctx, tx, &m); err != nil {
			return nil, fmt.Errorf("postTx: %s: %w", m.Type, err)
		}
		receipt.Movements = append(receipt.Movements, m)
	}
	return receipt, nil
}

func (s *Service) replayTx(ctx context.Context, tx *sql.Tx, kind domain.OperationKind, key string) (*Receipt, error) {
	op, err := s.operations.GetByIdempotencyKeyTx(ctx, tx, key)
	if err != nil {
		return nil, fmt.Errorf("replayTx: %w", err)
	}
	return s.receiptFor(ctx, tx, op, kind)
}

// Replay answers a retried call without touching the rate oracle or taking locks.
// It returns nil when meta carries no key or the key has not been used.
func (s *Service) Replay(ctx context.Context, meta Meta, kind domain.OperationKind) (*Receipt, error) {
	if meta.IdempotencyKey == "" {
		return nil, nil
	}
	op, err := s.operations.GetByIdempotencyKey(ctx, meta.IdempotencyKey)
	if errors.Is(err, domain.ErrOperationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("replayed: %w", err)
	}
	return s.receiptFor(ctx, nil, op, kind)
}

func (s *Service) receiptFor(ctx context.Context, tx *sql.Tx, op *domain.Operation, kind domain.OperationKind) (*Receipt, error) {
	if op.Kind != kind {
		return nil, fmt.Errorf("key %q belongs to a %s operation: %w", *op.IdempotencyKey, op.Kind, domain.ErrIdempotencyConflict)
	}

	var movements []domain.Movement
	var err error
	if tx != nil {
		movements, err = s.movements.GetByOperationTx(ctx, tx, op.ID)
	} else {
		movements, err = s.movements.GetByOperation(ctx, op.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("receiptFor: %w", err)
	}
	return &Receipt{OperationID: op.ID, Kind: op.Kind, Movements: movements, Replayed: true}, nil
}

// deltasFor sums the balance effect of movements per internal box. External is not a box.
// Movements that stay inside one box (exchange) change its balance but not its lifetime totals.
func deltasFor(movements []domain.Movement, at time.Time) map[domain.BoxRef]*domain.BoxDelta {
	deltas := make(map[domain.BoxRef]*domain.BoxDelta)
	get := func(ref domain.BoxRef) *domain.BoxDelta {
		d, ok := deltas[ref]
		if !ok {
			d = &domain.BoxDelta{At: at}
			deltas[ref] = d
		}
		return d
	}

	for _, m := range movements {
		crossing := m.Source != m.Destination
		if !m.Source.IsExternal() {
			d := get(m.Source)
			d.Balance = d.Balance.Add(m.Currency, m.Amount.Neg())
			if crossing {
				d.Paid = d.Paid.Add(m.Currency, m.Amount)
			}
		}
		if !m.Destination.IsExternal() {
			d := get(m.Destination)
			d.Balance = d.Balance.Add(m.DestCurrency, m.DestAmount)
			if crossing {
				d.Received = d.Received.Add(m.DestCurrency, m.DestAmount)
			}
		}
	}
	return deltas
}

func sortedOwners(deltas map[domain.BoxRef]*domain.BoxDelta) []domain.BoxRef {
	owners := make([]domain.BoxRef, 0, len(deltas))
	for ref := range deltas {
		owners = append(owners, ref)
	}
	sort.Slice(owners, func(i, j int) bool {
		return owners[i].String() < owners[j].String()
	})
	return owners
}

// lockBoxes takes row locks in the order given, which callers keep sorted so concurrent
// operations on overlapping boxes cannot deadlock.
func (s *Service) lockBoxes(ctx context.Context, tx *sql.Tx, owners []domain.BoxRef) (map[domain.BoxRef]*domain.CashBox, error) {
	locked := make(map[domain.BoxRef]*domain.CashBox, len(owners))
	for _, owner := range owners {
		box, err := s.boxes.GetForUpdate(ctx, tx, owner)
		if err != nil {
			return nil, fmt.Errorf("lockBoxes: %w", err)
		}
		locked[owner] = box
	}
	return locked, nil
}

func (s *Service) observe(ctx context.Context, p posting, receipt *Receipt, err error, elapsed time.Duration) {
	log := logging.FromContext(ctx)

	if err != nil {
		kind := domain.KindOf(err)
		metrics.RecordOperation(string(p.Kind), string(kind), elapsed)
		log.Warn("ledger operation rejected",
			"kind", p.Kind,
			"error_kind", kind,
			"retryable", domain.IsRetryable(err),
			"error", err,
		)
		return
	}

	outcome := "ok"
	if receipt.Replayed {
		outcome = "replayed"
	}
	metrics.RecordOperation(string(p.Kind), outcome, elapsed)

	attrs := []any{
		"operation_id", receipt.OperationID,
		"kind", receipt.Kind,
		"replayed", receipt.Replayed,
		"movements", len(receipt.Movements),
		"duration_ms", elapsed.Milliseconds(),
	}
	if len(receipt.Movements) > 0 {
		m := receipt.Movements[0]
		attrs = append(attrs,
			"source", m.Source.String(),
			"destination", m.Destination.String(),
			"amount", m.Currency.Format(m.Amount),
		)
	}
	log.Info("ledger operation committed", attrs...)
}
