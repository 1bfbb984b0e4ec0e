package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

var transferOps = map[domain.TransferKind]domain.OperationKind{
	domain.MovementManualTransfer:   domain.OpTransfer,
	domain.MovementLoanDisbursement: domain.OpLoanDisbursement,
	domain.MovementLoanRepayment:    domain.OpLoanRepayment,
}

type TransferRequest struct {
	Meta
	From          domain.BoxRef
	To            domain.BoxRef
	Amount        decimal.Decimal
	Currency      domain.Currency
	Kind          domain.TransferKind
	Detail        domain.MovementDetail
	Description   string
	ProjectID     *uuid.UUID
	LoanID        *uuid.UUID
	InstallmentID *uuid.UUID
}

// TransferBetweenBoxes moves money between two internal boxes in one currency.
func (s *Service) TransferBetweenBoxes(ctx context.Context, req TransferRequest) (*Receipt, error) {
	p, err := s.transferPosting(req)
	if err != nil {
		return nil, fmt.Errorf("TransferBetweenBoxes: %w", err)
	}
	receipt, err := s.post(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("TransferBetweenBoxes: %w", err)
	}
	return receipt, nil
}

// TransferTx is TransferBetweenBoxes inside the caller's transaction, for operations that
// must commit a transfer together with their own rows.
func (s *Service) TransferTx(ctx context.Context, tx *sql.Tx, req TransferRequest) (*Receipt, error) {
	p, err := s.transferPosting(req)
	if err != nil {
		return nil, fmt.Errorf("TransferTx: %w", err)
	}
	receipt, err := s.postTx(ctx, tx, p)
	if err != nil {
		return nil, fmt.Errorf("TransferTx: %w", err)
	}
	return receipt, nil
}

func (s *Service) transferPosting(req TransferRequest) (posting, error) {
	opKind, ok := transferOps[req.Kind]
	if !ok {
		return posting{}, fmt.Errorf("transfer kind %q: %w", req.Kind, domain.ErrInvalidRequest)
	}
	for _, b := range []domain.BoxRef{req.From, req.To} {
		if err := b.Validate(); err != nil {
			return posting{}, err
		}
		if b.IsExternal() {
			return posting{}, fmt.Errorf("transfers stay between internal boxes: %w", domain.ErrInvalidRequest)
		}
	}
	if req.From == req.To {
		return posting{}, domain.ErrSameBox
	}
	if err := validateAmount(req.Amount, req.Currency); err != nil {
		return posting{}, err
	}

	detail := req.Detail
	if detail == nil && req.Kind == domain.MovementManualTransfer {
		detail = domain.TransferDetail{}
	}

	movements, err := expand(opKind,
		parties{From: req.From, To: req.To},
		flow{Amount: req.Amount, Currency: req.Currency},
		detail,
	)
	if err != nil {
		return posting{}, err
	}

	desc := req.Description
	if desc == "" {
		desc = fmt.Sprintf("Transfer %s from %s to %s", req.Currency.Format(req.Amount), req.From, req.To)
	}

	return posting{
		Kind:          opKind,
		Meta:          req.Meta,
		Movements:     movements,
		Description:   desc,
		ProjectID:     req.ProjectID,
		LoanID:        req.LoanID,
		InstallmentID: req.InstallmentID,
	}, nil
}
