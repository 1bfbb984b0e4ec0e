package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRespondDomainError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		kind      domain.ErrorKind
		retryable bool
	}{
		{"insufficient funds", domain.ErrInsufficientFunds, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", domain.KindInsufficientFunds, false},
		{"overpayment", domain.ErrOverpayment, http.StatusUnprocessableEntity, "OVERPAYMENT", domain.KindInvalidAmount, false},
		{"unknown project", domain.ErrProjectNotFound, http.StatusNotFound, "PROJECT_NOT_FOUND", domain.KindUnknownEntity, false},
		{"retired box", domain.ErrBoxRetired, http.StatusNotFound, "BOX_RETIRED", domain.KindUnknownEntity, false},
		{"rate unavailable", domain.ErrRateUnavailable, http.StatusServiceUnavailable, "RATE_UNAVAILABLE", domain.KindRateUnavailable, false},
		{"serialization failure", domain.ErrTransactionFailed, http.StatusConflict, "TRANSACTION_FAILED", domain.KindTransactionFailed, true},
		{"version conflict", domain.ErrVersionConflict, http.StatusConflict, "TRANSACTION_FAILED", domain.KindTransactionFailed, true},
		{"invariant", domain.ErrInvariantViolation, http.StatusInternalServerError, "INVARIANT_VIOLATION", domain.KindInvariantViolation, false},
		{"illegal transition", domain.ErrIllegalTransition, http.StatusUnprocessableEntity, "ILLEGAL_TRANSITION", domain.KindInvalidRequest, false},
		{"key reuse", domain.ErrIdempotencyConflict, http.StatusConflict, "IDEMPOTENCY_CONFLICT", domain.KindInvalidRequest, false},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR", domain.KindInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondDomainError(rec, fmt.Errorf("Op: inner: %w", tt.err))

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeResponse(t, rec)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.kind, resp.Error.Kind)
			assert.Equal(t, tt.retryable, resp.Error.Retryable)
		})
	}
}

func TestDomainErrorsAllMapped(t *testing.T) {
	for _, e := range domainErrors {
		assert.NotNil(t, e.appErr, e.err.Error())
		assert.NotEqual(t, domain.KindInternal, domain.KindOf(e.err), e.err.Error())
	}
}

func TestRespondValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondValidationError(rec, []FieldError{{Field: "amount", Message: "required"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	assert.Equal(t, domain.KindInvalidRequest, resp.Error.Kind)
}
