package ledger

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
	"github.com/josh-kwaku/backoffice-ledger/internal/logging"
	"github.com/josh-kwaku/backoffice-ledger/internal/metrics"
)

const defaultAuditConcurrency = 4

type snapshotRepo interface {
	Snapshot(ctx context.Context, owner domain.BoxRef) (domain.Balance, domain.BoxSums, error)
}

type boxLister interface {
	List(ctx context.Context, kind *domain.OwnerKind) ([]domain.CashBox, error)
}

// Auditor recomputes cash boxes from the movement log.
type Auditor struct {
	boxes       boxLister
	snapshots   snapshotRepo
	concurrency int
}

func NewAuditor(boxes boxLister, snapshots snapshotRepo, concurrency int) *Auditor {
	if concurrency <= 0 {
		concurrency = defaultAuditConcurrency
	}
	return &Auditor{boxes: boxes, snapshots: snapshots, concurrency: concurrency}
}

// Mismatch is a box whose stored balance disagrees with its movements.
type Mismatch struct {
	Owner    domain.BoxRef
	Stored   domain.Balance
	Computed domain.Balance
}

func (m Mismatch) Error() string {
	return fmt.Sprintf("%s stores ARS %s USD %s, movements give ARS %s USD %s",
		m.Owner, m.Stored.ARS, m.Stored.USD, m.Computed.ARS, m.Computed.USD)
}

// VerifyBox returns ErrInvariantViolation when the box's balance differs from the net of
// its inbound and outbound movements.
func (a *Auditor) VerifyBox(ctx context.Context, owner domain.BoxRef) error {
	mm, err := a.check(ctx, owner)
	if err != nil {
		return fmt.Errorf("VerifyBox: %w", err)
	}
	if mm != nil {
		return fmt.Errorf("VerifyBox: %s: %w", mm, domain.ErrInvariantViolation)
	}
	return nil
}

// VerifyAll checks every box with bounded concurrency and returns all mismatches found.
func (a *Auditor) VerifyAll(ctx context.Context) ([]Mismatch, error) {
	boxes, err := a.boxes.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("VerifyAll: %w", err)
	}

	var (
		mu         sync.Mutex
		mismatches []Mismatch
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, b := range boxes {
		owner := b.Owner
		g.Go(func() error {
			mm, err := a.check(ctx, owner)
			if err != nil {
				return err
			}
			if mm != nil {
				mu.Lock()
				mismatches = append(mismatches, *mm)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("VerifyAll: %w", err)
	}

	logging.FromContext(ctx).Info("ledger audit finished", "boxes", len(boxes), "mismatches", len(mismatches))
	return mismatches, nil
}

func (a *Auditor) check(ctx context.Context, owner domain.BoxRef) (*Mismatch, error) {
	stored, sums, err := a.snapshots.Snapshot(ctx, owner)
	if err != nil {
		return nil, err
	}
	if computed := sums.Net(); !computed.Equal(stored) {
		metrics.RecordAuditMismatch()
		logging.FromContext(ctx).Error("cash box out of balance",
			"owner", owner.String(),
			"stored_ars", stored.ARS, "stored_usd", stored.USD,
			"computed_ars", computed.ARS, "computed_usd", computed.USD,
		)
		return &Mismatch{Owner: owner, Stored: stored, Computed: computed}, nil
	}
	return nil, nil
}
