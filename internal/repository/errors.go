package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

// Postgres error codes that abort a transaction but leave nothing applied.
var retryableCodes = map[pq.ErrorCode]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57014": true, // query_canceled (statement_timeout)
}

const checkViolation pq.ErrorCode = "23514"

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrTransactionFailed) || errors.Is(err, domain.ErrInvariantViolation) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrTransactionFailed, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if retryableCodes[pqErr.Code] {
			return fmt.Errorf("%w: %s (%s): %w", domain.ErrTransactionFailed, pqErr.Code.Name(), pqErr.Code, err)
		}
		// The non-negative balance checks are a backstop behind the poster's own funds check.
		if pqErr.Code == checkViolation && pqErr.Table == "cash_boxes" {
			return fmt.Errorf("%w: %s: %w", domain.ErrInvariantViolation, pqErr.Constraint, err)
		}
	}
	return err
}

// isWriteConflict reports whether err is a serialization failure or deadlock, the two aborts
// a fresh attempt of the same transaction can resolve.
func isWriteConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}
