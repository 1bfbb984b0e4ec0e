package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrForbidden        = &AppError{http.StatusForbidden, "FORBIDDEN", "Operator role may not post operations"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidAmount         = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be positive and fit the currency's minor unit"}
	ErrInvalidCurrency       = &AppError{http.StatusBadRequest, "INVALID_CURRENCY", "Currency must be ARS or USD"}
	ErrInvalidFeeSpec        = &AppError{http.StatusBadRequest, "INVALID_FEE_SPEC", "Set exactly one of percentage or fixed"}
	ErrSameCurrency          = &AppError{http.StatusBadRequest, "SAME_CURRENCY", "Source and destination currency are the same"}
	ErrSameBox               = &AppError{http.StatusBadRequest, "SAME_BOX", "Source and destination box are the same"}
	ErrOverpayment           = &AppError{http.StatusUnprocessableEntity, "OVERPAYMENT", "Payment exceeds the amount due"}
	ErrBoxNotFound           = &AppError{http.StatusNotFound, "BOX_NOT_FOUND", "Cash box not found"}
	ErrProjectNotFound       = &AppError{http.StatusNotFound, "PROJECT_NOT_FOUND", "Project not found"}
	ErrLoanNotFound          = &AppError{http.StatusNotFound, "LOAN_NOT_FOUND", "Loan not found"}
	ErrInstallmentNotFound   = &AppError{http.StatusNotFound, "INSTALLMENT_NOT_FOUND", "Installment not found"}
	ErrOperationNotFound     = &AppError{http.StatusNotFound, "OPERATION_NOT_FOUND", "Operation not found"}
	ErrBoxRetired            = &AppError{http.StatusNotFound, "BOX_RETIRED", "Cash box is retired"}
	ErrInsufficientFunds     = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "Insufficient funds"}
	ErrRateUnavailable       = &AppError{http.StatusServiceUnavailable, "RATE_UNAVAILABLE", "Exchange rate unavailable"}
	ErrTransactionFailed     = &AppError{http.StatusConflict, "TRANSACTION_FAILED", "Transaction aborted by a concurrent update, please retry"}
	ErrInvariantViolation    = &AppError{http.StatusInternalServerError, "INVARIANT_VIOLATION", "Ledger invariant violated"}
	ErrIllegalTransition     = &AppError{http.StatusUnprocessableEntity, "ILLEGAL_TRANSITION", "Loan cannot move to that status"}
	ErrInstallmentClosed     = &AppError{http.StatusUnprocessableEntity, "INSTALLMENT_CLOSED", "Installment is not open for payment"}
	ErrAlreadyReversed       = &AppError{http.StatusConflict, "ALREADY_REVERSED", "Operation already reversed"}
	ErrProjectHasFunds       = &AppError{http.StatusUnprocessableEntity, "PROJECT_HAS_FUNDS", "Project box still holds funds"}
	ErrProjectHasOpenLoans   = &AppError{http.StatusUnprocessableEntity, "PROJECT_HAS_OPEN_LOANS", "Project has open loans"}
	ErrInvalidIdempotencyKey = &AppError{http.StatusBadRequest, "INVALID_IDEMPOTENCY_KEY", "Idempotency-Key must be 1 to 255 printable characters"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used for a different operation"}
	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
)
