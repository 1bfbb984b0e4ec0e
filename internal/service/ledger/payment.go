package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

type ProjectPaymentRequest struct {
	Meta
	ProjectID      uuid.UUID
	Amount         decimal.Decimal
	Currency       domain.Currency
	InstallmentRef string
	Description    string
}

// RecordProjectPayment books client money received by a project. The project box and the
// Master box both grow by the amount; Master mirrors the income rather than receiving a transfer.
func (s *Service) RecordProjectPayment(ctx context.Context, req ProjectPaymentRequest) (*Receipt, error) {
	if err := validateAmount(req.Amount, req.Currency); err != nil {
		return nil, fmt.Errorf("RecordProjectPayment: %w", err)
	}
	project, err := s.requireProject(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("RecordProjectPayment: %w", err)
	}

	movements, err := expand(domain.OpProjectPayment,
		parties{Project: domain.ProjectBox(project.ID)},
		flow{Amount: req.Amount, Currency: req.Currency},
		domain.IncomeDetail{InstallmentRef: req.InstallmentRef},
		domain.MirrorDetail{ProjectID: project.ID},
	)
	if err != nil {
		return nil, fmt.Errorf("RecordProjectPayment: %w", err)
	}

	desc := req.Description
	if desc == "" {
		desc = fmt.Sprintf("Payment received for %s", project.Name)
	}

	receipt, err := s.post(ctx, posting{
		Kind:        domain.OpProjectPayment,
		Meta:        req.Meta,
		Movements:   movements,
		Description: desc,
		ProjectID:   &project.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("RecordProjectPayment: %w", err)
	}
	return receipt, nil
}
