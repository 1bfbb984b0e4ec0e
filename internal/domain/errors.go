package domain

import "errors"

var (
	ErrInvalidAmount       = errors.New("amount must be a finite number greater than zero")
	ErrNotFound            = errors.New("not found")
	ErrBoxNotFound         = errors.New("cash box not found")
	ErrProjectNotFound     = errors.New("project not found")
	ErrLoanNotFound        = errors.New("loan not found")
	ErrInstallmentNotFound = errors.New("installment not found")
	ErrOperationNotFound   = errors.New("operation not found")
	ErrBoxRetired          = errors.New("cash box retired")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrRateUnavailable     = errors.New("exchange rate unavailable")
	ErrTransactionFailed   = errors.New("transaction failed")
	ErrVersionConflict     = errors.New("optimistic lock conflict")
	ErrInvariantViolation  = errors.New("ledger invariant violation")

	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidCurrency     = errors.New("invalid currency")
	ErrInvalidFeeSpec      = errors.New("fee spec must set exactly one of percentage or fixed")
	ErrSameCurrency        = errors.New("source and destination currency are the same")
	ErrSameBox             = errors.New("source and destination box are the same")
	ErrIllegalTransition   = errors.New("illegal loan status transition")
	ErrInstallmentClosed   = errors.New("installment is not open for payment")
	ErrOverpayment         = errors.New("payment exceeds amount due")
	ErrAlreadyReversed     = errors.New("operation already reversed")
	ErrIdempotencyConflict = errors.New("idempotency key already used for a different operation")
	ErrProjectHasFunds     = errors.New("project box still holds funds")
	ErrProjectHasOpenLoans = errors.New("project has open loans")
)

// ErrorKind is the classification every ledger error resolves to.
type ErrorKind string

const (
	KindInvalidAmount      ErrorKind = "InvalidAmount"
	KindUnknownEntity      ErrorKind = "UnknownEntity"
	KindInsufficientFunds  ErrorKind = "InsufficientFunds"
	KindRateUnavailable    ErrorKind = "RateUnavailable"
	KindTransactionFailed  ErrorKind = "TransactionFailed"
	KindInvariantViolation ErrorKind = "InvariantViolation"
	KindInvalidRequest     ErrorKind = "InvalidRequest"
	KindInternal           ErrorKind = "Internal"
)

var kindTable = []struct {
	err  error
	kind ErrorKind
}{
	{ErrInvalidAmount, KindInvalidAmount},
	{ErrOverpayment, KindInvalidAmount},
	{ErrNotFound, KindUnknownEntity},
	{ErrBoxNotFound, KindUnknownEntity},
	{ErrProjectNotFound, KindUnknownEntity},
	{ErrLoanNotFound, KindUnknownEntity},
	{ErrInstallmentNotFound, KindUnknownEntity},
	{ErrOperationNotFound, KindUnknownEntity},
	{ErrBoxRetired, KindUnknownEntity},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrRateUnavailable, KindRateUnavailable},
	{ErrTransactionFailed, KindTransactionFailed},
	{ErrVersionConflict, KindTransactionFailed},
	{ErrInvariantViolation, KindInvariantViolation},
	{ErrInvalidRequest, KindInvalidRequest},
	{ErrInvalidCurrency, KindInvalidRequest},
	{ErrInvalidFeeSpec, KindInvalidRequest},
	{ErrSameCurrency, KindInvalidRequest},
	{ErrSameBox, KindInvalidRequest},
	{ErrIllegalTransition, KindInvalidRequest},
	{ErrInstallmentClosed, KindInvalidRequest},
	{ErrAlreadyReversed, KindInvalidRequest},
	{ErrIdempotencyConflict, KindInvalidRequest},
	{ErrProjectHasFunds, KindInvalidRequest},
	{ErrProjectHasOpenLoans, KindInvalidRequest},
}

// KindOf classifies err. Unrecognised errors are KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, e := range kindTable {
		if errors.Is(err, e.err) {
			return e.kind
		}
	}
	return KindInternal
}

// IsRetryable reports whether the caller may retry the failed operation.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransactionFailed
}
