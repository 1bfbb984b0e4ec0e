package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/josh-kwaku/backoffice-ledger/internal/domain"
)

const loanColumns = `id, code, lender_project_id, borrower_project_id, principal, currency, rate,
	status, outstanding_balance, total_paid, due_date, installment_count,
	disbursement_operation_id, cancellation_reason, version,
	created_at, updated_at, activated_at, paid_at, cancelled_at`

const installmentColumns = `id, loan_id, number, amount, interest, late_fee, due_date,
	status, paid_amount, principal_paid, paid_date`

type LoanRepository struct {
	db *sql.DB
}

func NewLoanRepository(db *sql.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

func (r *LoanRepository) Create(ctx context.Context, tx *sql.Tx, l *domain.Loan) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO loans (
			id, code, lender_project_id, borrower_project_id, principal, currency, rate,
			status, outstanding_balance, total_paid, due_date, installment_count,
			disbursement_operation_id, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		l.ID, l.Code, l.LenderProjectID, l.BorrowerProjectID, l.Principal, l.Currency, l.Rate,
		l.Status, l.OutstandingBalance, l.TotalPaid, l.DueDate, l.InstallmentCount,
		nullUUID(l.DisbursementOperationID), l.Version, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", classify(err))
	}
	return nil
}

func (r *LoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	l, err := scanLoan(r.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrLoanNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return l, nil
}

func (r *LoanRepository) GetByDisbursementOperation(ctx context.Context, operationID uuid.UUID) (*domain.Loan, error) {
	l, err := scanLoan(r.db.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE disbursement_operation_id = $1`, operationID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByDisbursementOperation: %w", domain.ErrLoanNotFound)
		}
		return nil, fmt.Errorf("GetByDisbursementOperation: %w", err)
	}
	return l, nil
}

func (r *LoanRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Loan, error) {
	l, err := scanLoan(tx.QueryRowContext(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrLoanNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", classify(err))
	}
	return l, nil
}

// Update writes the mutable loan fields and bumps the version. A stale l.Version
// matches no row and yields ErrVersionConflict.
func (r *LoanRepository) Update(ctx context.Context, tx *sql.Tx, l *domain.Loan) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE loans SET
			status = $3, outstanding_balance = $4, total_paid = $5,
			disbursement_operation_id = $6, cancellation_reason = $7,
			updated_at = $8, activated_at = $9, paid_at = $10, cancelled_at = $11,
			version = version + 1
		WHERE id = $1 AND version = $2`,
		l.ID, l.Version,
		l.Status, l.OutstandingBalance, l.TotalPaid,
		nullUUID(l.DisbursementOperationID), l.CancellationReason,
		l.UpdatedAt, l.ActivatedAt, l.PaidAt, l.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("Update: loan %s: %w", l.ID, domain.ErrVersionConflict)
	}
	l.Version++
	return nil
}

func (r *LoanRepository) List(ctx context.Context, f domain.LoanFilter) ([]domain.Loan, error) {
	var where []string
	var args []any
	if f.ProjectID != nil {
		args = append(args, *f.ProjectID)
		where = append(where, fmt.Sprintf("(lender_project_id = $%[1]d OR borrower_project_id = $%[1]d)", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + loanColumns + ` FROM loans`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	rows, err := r.db.QueryContext(ctx, query+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	var loans []domain.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("List: scan: %w", err)
		}
		loans = append(loans, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows: %w", err)
	}
	return loans, nil
}

// CountOpenTx counts loans of a project, as lender or borrower, that are not yet terminal.
func (r *LoanRepository) CountOpenTx(ctx context.Context, tx *sql.Tx, projectID uuid.UUID) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loans
		WHERE (lender_project_id = $1 OR borrower_project_id = $1)
		AND status NOT IN ('paid', 'cancelled')`, projectID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountOpenTx: %w", classify(err))
	}
	return n, nil
}

func (r *LoanRepository) NextCodeSeq(ctx context.Context, tx *sql.Tx) (int64, error) {
	var n int64
	if err := tx.QueryRowContext(ctx, `SELECT nextval('loan_code_seq')`).Scan(&n); err != nil {
		return 0, fmt.Errorf("NextCodeSeq: %w", classify(err))
	}
	return n, nil
}

func (r *LoanRepository) CreateInstallments(ctx context.Context, tx *sql.Tx, installments []domain.LoanInstallment) error {
	for _, i := range installments {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO loan_installments (
				id, loan_id, number, amount, interest, late_fee, due_date,
				status, paid_amount, principal_paid, paid_date
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			i.ID, i.LoanID, i.Number, i.Amount, i.Interest, i.LateFee, i.DueDate,
			i.Status, i.PaidAmount, i.PrincipalPaid, i.PaidDate,
		)
		if err != nil {
			return fmt.Errorf("CreateInstallments: #%d: %w", i.Number, classify(err))
		}
	}
	return nil
}

func (r *LoanRepository) GetInstallment(ctx context.Context, id uuid.UUID) (*domain.LoanInstallment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+installmentColumns+` FROM loan_installments WHERE id = $1`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("GetInstallment: %w", err)
	}
	installments, err := scanInstallments(rows)
	if err != nil {
		return nil, fmt.Errorf("GetInstallment: %w", err)
	}
	if len(installments) == 0 {
		return nil, fmt.Errorf("GetInstallment: %w", domain.ErrInstallmentNotFound)
	}
	return &installments[0], nil
}

func (r *LoanRepository) GetInstallments(ctx context.Context, loanID uuid.UUID) ([]domain.LoanInstallment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+installmentColumns+` FROM loan_installments WHERE loan_id = $1 ORDER BY number`, loanID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetInstallments: %w", err)
	}
	installments, err := scanInstallments(rows)
	if err != nil {
		return nil, fmt.Errorf("GetInstallments: %w", err)
	}
	return installments, nil
}

// GetInstallmentsForUpdate locks every installment of the loan in number order.
func (r *LoanRepository) GetInstallmentsForUpdate(ctx context.Context, tx *sql.Tx, loanID uuid.UUID) ([]domain.LoanInstallment, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+installmentColumns+` FROM loan_installments WHERE loan_id = $1 ORDER BY number FOR UPDATE`, loanID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetInstallmentsForUpdate: %w", classify(err))
	}
	installments, err := scanInstallments(rows)
	if err != nil {
		return nil, fmt.Errorf("GetInstallmentsForUpdate: %w", err)
	}
	return installments, nil
}

func (r *LoanRepository) UpdateInstallment(ctx context.Context, tx *sql.Tx, i *domain.LoanInstallment) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE loan_installments SET
			late_fee = $2, status = $3, paid_amount = $4, principal_paid = $5, paid_date = $6
		WHERE id = $1`,
		i.ID, i.LateFee, i.Status, i.PaidAmount, i.PrincipalPaid, i.PaidDate,
	)
	if err != nil {
		return fmt.Errorf("UpdateInstallment: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateInstallment: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("UpdateInstallment: %w", domain.ErrInstallmentNotFound)
	}
	return nil
}

func scanInstallments(rows *sql.Rows) ([]domain.LoanInstallment, error) {
	defer rows.Close()

	var installments []domain.LoanInstallment
	for rows.Next() {
		var i domain.LoanInstallment
		err := rows.Scan(
			&i.ID, &i.LoanID, &i.Number, &i.Amount, &i.Interest, &i.LateFee, &i.DueDate,
			&i.Status, &i.PaidAmount, &i.PrincipalPaid, &i.PaidDate,
		)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		installments = append(installments, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return installments, nil
}

func scanLoan(s scanner) (*domain.Loan, error) {
	var l domain.Loan
	var disbursementOp uuid.NullUUID
	err := s.Scan(
		&l.ID, &l.Code, &l.LenderProjectID, &l.BorrowerProjectID, &l.Principal, &l.Currency, &l.Rate,
		&l.Status, &l.OutstandingBalance, &l.TotalPaid, &l.DueDate, &l.InstallmentCount,
		&disbursementOp, &l.CancellationReason, &l.Version,
		&l.CreatedAt, &l.UpdatedAt, &l.ActivatedAt, &l.PaidAt, &l.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	l.DisbursementOperationID = fromNullUUID(disbursementOp)
	return &l, nil
}
