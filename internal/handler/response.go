package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code      string           `json:"code"`
	Kind      domain.ErrorKind `json:"kind,omitempty"`
	Message   string           `json:"message"`
	Retryable bool             `json:"retryable"`
	Details   any              `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	respondError(w, appErr, "", false, details)
}

func respondError(w http.ResponseWriter, appErr *AppError, kind domain.ErrorKind, retryable bool, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:      appErr.Code,
			Kind:      kind,
			Message:   appErr.Message,
			Retryable: retryable,
			Details:   details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	respondError(w, ErrValidationFailed, domain.KindInvalidRequest, false, fields)
}

// domainErrors is checked in order; the first sentinel err wraps decides the response.
var domainErrors = []struct {
	err    error
	appErr *AppError
}{
	{domain.ErrInsufficientFunds, ErrInsufficientFunds},
	{domain.ErrOverpayment, ErrOverpayment},
	{domain.ErrInvalidAmount, ErrInvalidAmount},
	{domain.ErrInvalidCurrency, ErrInvalidCurrency},
	{domain.ErrInvalidFeeSpec, ErrInvalidFeeSpec},
	{domain.ErrSameCurrency, ErrSameCurrency},
	{domain.ErrSameBox, ErrSameBox},
	{domain.ErrBoxRetired, ErrBoxRetired},
	{domain.ErrBoxNotFound, ErrBoxNotFound},
	{domain.ErrProjectNotFound, ErrProjectNotFound},
	{domain.ErrLoanNotFound, ErrLoanNotFound},
	{domain.ErrInstallmentNotFound, ErrInstallmentNotFound},
	{domain.ErrOperationNotFound, ErrOperationNotFound},
	{domain.ErrNotFound, ErrResourceNotFound},
	{domain.ErrRateUnavailable, ErrRateUnavailable},
	{domain.ErrTransactionFailed, ErrTransactionFailed},
	{domain.ErrVersionConflict, ErrTransactionFailed},
	{domain.ErrInvariantViolation, ErrInvariantViolation},
	{domain.ErrIllegalTransition, ErrIllegalTransition},
	{domain.ErrInstallmentClosed, ErrInstallmentClosed},
	{domain.ErrAlreadyReversed, ErrAlreadyReversed},
	{domain.ErrIdempotencyConflict, ErrIdempotencyConflict},
	{domain.ErrProjectHasFunds, ErrProjectHasFunds},
	{domain.ErrProjectHasOpenLoans, ErrProjectHasOpenLoans},
	{domain.ErrInvalidRequest, ErrInvalidRequest},
}

func RespondDomainError(w http.ResponseWriter, err error) {
	appErr := ErrInternalError
	for _, e := range domainErrors {
		if errors.Is(err, e.err) {
			appErr = e.appErr
			break
		}
	}

	kind := domain.KindOf(err)
	if kind == domain.KindInternal || kind == domain.KindInvariantViolation {
		slog.Error("unhandled domain error", "error", err, "error_kind", kind)
	}
	respondError(w, appErr, kind, domain.IsRetryable(err), nil)
}
