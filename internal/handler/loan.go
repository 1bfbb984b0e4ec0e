package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
	"github.com/josh-kwaku/backoffice-ledger/internal/service/ledger"
	"github.com/josh-kwaku/backoffice-ledger/internal/service/loan"
)

type loanService interface {
	IssueLoan(ctx context.Context, req loan.IssueRequest) (*loan.LoanDetail, error)
	DraftLoan(ctx context.Context, req loan.IssueRequest) (*loan.LoanDetail, error)
	SubmitLoan(ctx context.Context, loanID uuid.UUID, meta ledger.Meta) (*loan.LoanDetail, error)
	ActivateLoan(ctx context.Context, loanID uuid.UUID, actor string) (*loan.LoanDetail, error)
	CancelLoan(ctx context.Context, req loan.CancelRequest) (*loan.LoanDetail, error)
	RegisterInstallmentPayment(ctx context.Context, req loan.PaymentRequest) (*loan.PaymentResult, error)
	GetLoan(ctx context.Context, loanID uuid.UUID) (*loan.LoanDetail, error)
	ListLoans(ctx context.Context, f domain.LoanFilter) ([]loan.LoanSummary, error)
	ListOverdue(ctx context.Context, now time.Time) ([]loan.OverdueInstallment, error)
	History(ctx context.Context, loanID uuid.UUID) ([]domain.LoanEvent, error)
	VerifyLoan(ctx context.Context, loanID uuid.UUID) error
}

type LoanHandler struct {
	loans loanService
}

func NewLoanHandler(loans loanService) *LoanHandler {
	return &LoanHandler{loans: loans}
}

type issueLoanRequest struct {
	LenderProjectID   string `json:"lender_project_id"`
	BorrowerProjectID string `json:"borrower_project_id"`
	Principal         string `json:"principal"`
	Currency          string `json:"currency"`
	DueDate           string `json:"due_date"`
	InstallmentCount  int    `json:"installment_count"`
	Rate              string `json:"rate"`
	Draft             bool   `json:"draft"`
}

func (b issueLoanRequest) parse(r *http.Request) (loan.IssueRequest, fields) {
	var f fields
	req := loan.IssueRequest{
		Meta:              metaFrom(r),
		LenderProjectID:   f.uuid("lender_project_id", b.LenderProjectID),
		BorrowerProjectID: f.uuid("borrower_project_id", b.BorrowerProjectID),
		Principal:         f.amount("principal", b.Principal),
		Currency:          f.currency("currency", b.Currency),
		DueDate:           f.date("due_date", b.DueDate, true),
		InstallmentCount:  b.InstallmentCount,
	}
	if b.InstallmentCount < 1 {
		f.add("installment_count", "must be at least 1")
	}
	if rate := f.optionalDecimal("rate", b.Rate); rate != nil {
		if rate.IsNegative() {
			f.add("rate", "must not be negative")
		}
		req.Rate = *rate
	}
	return req, f
}

// Issue creates a loan. With draft set the loan is saved without disbursing.
func (h *LoanHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var body issueLoanRequest
	if !decode(r, &body) {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	req, f := body.parse(r)
	if len(f) > 0 {
		RespondValidationError(w, f)
		return
	}

	var (
		detail *loan.LoanDetail
		err    error
	)
	if body.Draft {
		detail, err = h.loans.DraftLoan(r.Context(), req)
	} else {
		detail, err = h.loans.IssueLoan(r.Context(), req)
	}
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if detail.Replayed {
		status = http.StatusOK
	}
	RespondSuccess(w, status, toLoanDetailDTO(detail))
}

func (h *LoanHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidVar(r, "id")
	if !ok {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	detail, err := h.loans.SubmitLoan(r.Context(), id, metaFrom(r))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toLoanDetailDTO(detail))
}

func (h *LoanHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidVar(r, "id")
	if !ok {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	detail, err := h.loans.ActivateLoan(r.Context(), id, metaFrom(r).Actor)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toLoanDetailDTO(detail))
}

type cancelLoanRequest struct {
	Reason string `json:"reason"`
}

func (h *LoanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidVar(r, "id")
	if !ok {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	var body cancelLoanRequest
	if !decode(r, &body) {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if body.Reason == "" {
		RespondValidationError(w, []FieldError{{Field: "reason", Message: "required"}})
		return
	}

	detail, err := h.loans.CancelLoan(r.Context(), loan.CancelRequest{
		Meta:   metaFrom(r),
		LoanID: id,
		Reason: body.Reason,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toLoanDetailDTO(detail))
}

type installmentPaymentRequest struct {
	Amount string `json:"amount"`
	Date   string `json:"date"`
}

type paymentResultDTO struct {
	Loan        loanDTO        `json:"loan"`
	Installment installmentDTO `json:"installment"`
	Receipt     *receiptDTO    `json:"receipt,omitempty"`
}

func (h *LoanHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidVar(r, "installmentID")
	if !ok {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	var body installmentPaymentRequest
	if !decode(r, &body) {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	var f fields
	req := loan.PaymentRequest{
		Meta:          metaFrom(r),
		InstallmentID: id,
		Amount:        f.amount("amount", body.Amount),
		Date:          f.date("date", body.Date, false),
	}
	if len(f) > 0 {
		RespondValidationError(w, f)
		return
	}

	res, err := h.loans.RegisterInstallmentPayment(r.Context(), req)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dto := paymentResultDTO{
		Loan:        toLoanDTO(&res.Loan, res.Loan.EffectiveStatus(time.Now().UTC())),
		Installment: toInstallmentDTO(&res.Installment),
	}
	status := http.StatusCreated
	if res.Receipt != nil {
		rd := toReceiptDTO(res.Receipt)
		dto.Receipt = &rd
		if res.Receipt.Replayed {
			status = http.StatusOK
		}
	}
	RespondSuccess(w, status, dto)
}

func (h *LoanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidVar(r, "id")
	if !ok {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	detail, err := h.loans.GetLoan(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toLoanDetailDTO(detail))
}

func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		f      fields
		filter domain.LoanFilter
	)
	q := r.URL.Query()
	if v := q.Get("project_id"); v != "" {
		id := f.uuid("project_id", v)
		filter.ProjectID = &id
	}
	if v := q.Get("status"); v != "" {
		s := domain.LoanStatus(v)
		filter.Status = &s
	}
	if len(f) > 0 {
		RespondValidationError(w, f)
		return
	}

	loans, err := h.loans.ListLoans(r.Context(), filter)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]loanDTO, 0, len(loans))
	for i := range loans {
		dtos = append(dtos, toLoanDTO(&loans[i].Loan, loans[i].EffectiveStatus))
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

type overdueDTO struct {
	LoanID      uuid.UUID      `json:"loan_id"`
	LoanCode    string         `json:"loan_code"`
	Borrower    uuid.UUID      `json:"borrower_project_id"`
	Installment installmentDTO `json:"installment"`
	DaysLate    int            `json:"days_late"`
}

func (h *LoanHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	var f fields
	asOf := f.date("as_of", r.URL.Query().Get("as_of"), false)
	if len(f) > 0 {
		RespondValidationError(w, f)
		return
	}

	items, err := h.loans.ListOverdue(r.Context(), asOf)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]overdueDTO, 0, len(items))
	for i := range items {
		dtos = append(dtos, overdueDTO{
			LoanID:      items[i].Loan.ID,
			LoanCode:    items[i].Loan.Code,
			Borrower:    items[i].Loan.BorrowerProjectID,
			Installment: toInstallmentDTO(&items[i].Installment),
			DaysLate:    items[i].DaysLate,
		})
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *LoanHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidVar(r, "id")
	if !ok {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	events, err := h.loans.History(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]loanEventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, toLoanEventDTO(e))
	}
	RespondSuccess(w, http.StatusOK, dtos)
}

func (h *LoanHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidVar(r, "id")
	if !ok {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if err := h.loans.VerifyLoan(r.Context(), id); err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, map[string]any{"loan_id": id, "consistent": true})
}
