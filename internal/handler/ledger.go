package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
	"github.com/josh-kwaku/backoffice-ledger/internal/logging"
	"github.com/josh-kwaku/backoffice-ledger/internal/service/ledger"
)

type ledgerService interface {
	RecordProjectPayment(ctx context.Context, req ledger.ProjectPaymentRequest) (*ledger.Receipt, error)
	CollectFee(ctx context.Context, req ledger.CollectFeeRequest) (*ledger.Receipt, error)
	RecordAdminExpense(ctx context.Context, req ledger.AdminExpenseRequest) (*ledger.Receipt, error)
	RecordMasterWithdrawal(ctx context.Context, req ledger.MasterWithdrawalRequest) (*ledger.Receipt, error)
	ConvertCurrency(ctx context.Context, req ledger.ConvertCurrencyRequest) (*ledger.Receipt, error)
	TransferBetweenBoxes(ctx context.Context, req ledger.TransferRequest) (*ledger.Receipt, error)
	ReverseOperation(ctx context.Context, req ledger.ReverseRequest) (*ledger.Receipt, error)
}

type LedgerHandler struct {
	ledger ledgerService
}

func NewLedgerHandler(l ledgerService) *LedgerHandler {
	return &LedgerHandler{ledger: l}
}

// respondReceipt answers 201 for a new operation and 200 for a replay.
func respondReceipt(w http.ResponseWriter, r *http.Request, receipt *ledger.Receipt) {
	status := http.StatusCreated
	if receipt.Replayed {
		status = http.StatusOK
		logging.FromContext(r.Context()).Info("idempotent replay", "operation_id", receipt.OperationID, "kind", receipt.Kind)
	}
	RespondSuccess(w, status, toReceiptDTO(receipt))
}

type projectPaymentRequest struct {
	ProjectID      string `json:"project_id"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	InstallmentRef string `json:"installment_ref"`
	Description    string `json:"description"`
}

func (h *LedgerHandler) RecordProjectPayment(w http.ResponseWriter, r *http.Request) {
	var body projectPaymentRequest
	if !decode(r, &body) {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	var f fields
	req := ledger.ProjectPaymentRequest{
		Meta:           metaFrom(r),
		ProjectID:      f.uuid("project_id", body.ProjectID),
		Amount:         f.amount("amount", body.Amount),
		Currency:       f.currency("currency", body.Currency),
		InstallmentRef: body.InstallmentRef,
		Description:    body.Description,
	}
	if len(f) > 0 {
		RespondValidationError(w, f)
		return
	}

	receipt, err := h.ledger.RecordProjectPayment(r.Context(), req)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	respondReceipt(w, r, receipt)
}

type collectFeeRequest struct {
	ProjectID   string `json:"project_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Percentage  string `json:"percentage"`
	Fixed       string `json:"fixed"`
	Description string `json:"description"`
}

func (h *LedgerHandler) CollectFee(w http.ResponseWriter, r *http.Request) {
	var body collectFeeRequest
	if !decode(r, &body) {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	var f fields
	req := ledger.CollectFeeRequest{
		Meta:        metaFrom(r),
		ProjectID:   f.uuid("project_id", body.ProjectID),
		Currency:    f.currency("currency", body.Currency),
		Description: body.Description,
		Fee: ledger.FeeSpec{
			Percentage: f.optionalDecimal("percentage", body.Percentage),
			Fixed:      f.optionalDecimal("fixed", body.Fixed),
		},
	}
	// amount is the fee base and only matters for a percentage fee.
	if body.Amount != "" || req.Fee.Percentage != nil {
		req.Amount = f.amount("amount", body.Amount)
	}
	if len(f) > 0 {
		RespondValidationError(w, f)
		return
	}

	receipt, err := h.ledger.CollectFee(r.Context(), req)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	respondReceipt(w, r, receipt)
}

type outflowRequest struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Category    string `json:"category"`
	Beneficiary string `json:"beneficiary"`
	Description string `json:"description"`
}

func (b outflowRequest) parse() (decimal.Decimal, domain.Currency, fields) {
	var f fields
	amount := f.amount("amount", b.Amount)
	c := f.currency("currency", b.Currency)
	return amount, c, f
}

func (h *LedgerHandler) RecordAdminExpense(w http.ResponseWriter, r *http.Request) {
	var body outflowRequest
	if !decode(r, &body) {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	amount, c, f := body.parse()
	if len(f) > 0 {
		RespondValidationError(w, f)
		return
	}

	receipt, err := h.ledger.RecordAdminExpense(r.Context(), ledger.AdminExpenseRequest{
		Meta:        metaFrom(r),
		Amount:      amount,
		Currency:    c,
		Category:    body.Category,
		Description: body.Description,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	respondReceipt(w, r, receipt)
}

func (h *LedgerHandler) RecordMasterWithdrawal(w http.ResponseWriter, r *http.Request) {
	var body outflowRequest
	if !decode(r, &body) {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	amount, c, f := body.parse()
	if len(f) > 0 {
		RespondValidationError(w, f)
		return
	}

	receipt, err := h.ledger.RecordMasterWithdrawal(r.Context(), ledger.MasterWithdrawalRequest{
		Meta:        metaFrom(r),
		Amount:      amount,
		Currency:    c,
		Beneficiary: body.Beneficiary,
		Description: body.Description,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	respondReceipt(w, r, receipt)
}

type convertRequest struct {
	Box        string `json:"box"`
	From       string `json:"from"`
	To         string `json:"to"`
	Amount     string `json:"amount"`
	RateSource string `json:"rate_source"`
}

func (h *LedgerHandler) ConvertCurrency(w http.ResponseWriter, r *http.Request) {
	var body convertRequest
	if !decode(r, &body) {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	var f fields
	req := ledger.ConvertCurrencyRequest{
		Meta:       metaFrom(r),
		Box:        f.box("box", body.Box),
		From:       f.currency("from", body.From),
		To:         f.currency("to", body.To),
		Amount:     f.amount("amount", body.Amount),
		RateSource: body.RateSource,
	}
	if req.RateSource == "" {
		f.add("rate_source", "required")
	}
	if len(f) > 0 {
		RespondValidationError(w, f)
		return
	}

	receipt, err := h.ledger.ConvertCurrency(r.Context(), req)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	respondReceipt(w, r, receipt)
}

type transferRequest struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Note        string `json:"note"`
	Description string `json:"description"`
}

func (h *LedgerHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var body transferRequest
	if !decode(r, &body) {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	var f fields
	req := ledger.TransferRequest{
		Meta:        metaFrom(r),
		From:        f.box("from", body.From),
		To:          f.box("to", body.To),
		Amount:      f.amount("amount", body.Amount),
		Currency:    f.currency("currency", body.Currency),
		Kind:        domain.MovementManualTransfer,
		Detail:      domain.TransferDetail{Note: body.Note},
		Description: body.Description,
	}
	if len(f) > 0 {
		RespondValidationError(w, f)
		return
	}

	receipt, err := h.ledger.TransferBetweenBoxes(r.Context(), req)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	respondReceipt(w, r, receipt)
}

type reverseRequest struct {
	Reason string `json:"reason"`
}

func (h *LedgerHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidVar(r, "id")
	if !ok {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	var body reverseRequest
	if !decode(r, &body) {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if body.Reason == "" {
		RespondValidationError(w, []FieldError{{Field: "reason", Message: "required"}})
		return
	}

	receipt, err := h.ledger.ReverseOperation(r.Context(), ledger.ReverseRequest{
		Meta:        metaFrom(r),
		OperationID: id,
		Reason:      body.Reason,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	respondReceipt(w, r, receipt)
}
