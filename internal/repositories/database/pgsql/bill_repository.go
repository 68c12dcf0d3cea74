package pgsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/opennpo/nonprofit_books_app/internal/apperrors"
	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	portsrepo "github.com/opennpo/nonprofit_books_app/internal/core/ports/repositories"
	"github.com/opennpo/nonprofit_books_app/internal/utils/pagination"
	"github.com/shopspring/decimal"
)

// PgxBillRepository persists bills and payments. It holds the ledger
// repository so a payment or accrual posting lands in the same database
// transaction as the bill mutation it belongs to.
type PgxBillRepository struct {
	BaseRepository
	ledger *PgxLedgerRepository
}

// newPgxBillRepository creates a new repository for billing data.
func newPgxBillRepository(pool *pgxpool.Pool, ledger *PgxLedgerRepository) *PgxBillRepository {
	return &PgxBillRepository{
		BaseRepository: BaseRepository{Pool: pool},
		ledger:         ledger,
	}
}

var _ portsrepo.BillRepository = (*PgxBillRepository)(nil)

const billColumns = `bill_id, organization_id, direction, counterparty_name, description, amount, amount_paid, status, bill_date, due_date, ledger_account_id, offset_account_id, accrual_transaction_id, created_at, created_by, last_updated_at, last_updated_by`

func scanBill(row pgx.Row) (*domain.Bill, error) {
	var bill domain.Bill
	var accrualID sql.NullString

	err := row.Scan(
		&bill.BillID,
		&bill.OrganizationID,
		&bill.Direction,
		&bill.CounterpartyName,
		&bill.Description,
		&bill.Amount,
		&bill.AmountPaid,
		&bill.Status,
		&bill.BillDate,
		&bill.DueDate,
		&bill.LedgerAccountID,
		&bill.OffsetAccountID,
		&accrualID,
		&bill.CreatedAt,
		&bill.CreatedBy,
		&bill.LastUpdatedAt,
		&bill.LastUpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	if accrualID.Valid {
		bill.AccrualTransactionID = &accrualID.String
	}
	return &bill, nil
}

// findBillForUpdate loads and locks the bill row inside the transaction.
// Every compound bill mutation starts here so concurrent payments,
// recalculations, and cancellations of one bill serialize.
func (r *PgxBillRepository) findBillForUpdate(ctx context.Context, tx pgx.Tx, billID string) (*domain.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE bill_id = $1 FOR UPDATE;`
	bill, err := scanBill(tx.QueryRow(ctx, query, billID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: bill %s", apperrors.ErrNotFound, billID)
		}
		return nil, fmt.Errorf("failed to lock bill %s: %w", billID, err)
	}
	return bill, nil
}

// sumNonVoidedPayments totals the bill's payments whose ledger transactions
// are not voided.
func sumNonVoidedPayments(ctx context.Context, q querier, billID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(p.amount), 0)
		FROM bill_payments p
		JOIN transactions t ON t.transaction_id = p.transaction_id
		WHERE p.bill_id = $1 AND NOT t.is_voided;
	`, billID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payments for bill %s: %w", billID, err)
	}
	return total, nil
}

func (r *PgxBillRepository) updateBillPaymentState(ctx context.Context, tx pgx.Tx, bill *domain.Bill, amountPaid decimal.Decimal, status domain.BillStatus, by string, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE bills
		SET amount_paid = $2, status = $3, last_updated_at = $4, last_updated_by = $5
		WHERE bill_id = $1;
	`, bill.BillID, amountPaid, string(status), now, by)
	if err != nil {
		return fmt.Errorf("failed to update bill %s: %w", bill.BillID, err)
	}
	bill.AmountPaid = amountPaid
	bill.Status = status
	bill.LastUpdatedAt = now
	bill.LastUpdatedBy = by
	return nil
}

// SaveBill inserts the bill and, when accrual is non-nil, posts the accrual
// transaction in the same database transaction.
func (r *PgxBillRepository) SaveBill(ctx context.Context, bill domain.Bill, accrual *domain.Transaction, accrualDeltas map[string]decimal.Decimal) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	if accrual != nil {
		if err := r.ledger.SaveTransactionInTx(ctx, tx, *accrual, accrualDeltas); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO bills (` + billColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17);
	`
	var accrualID sql.NullString
	if bill.AccrualTransactionID != nil {
		accrualID = sql.NullString{String: *bill.AccrualTransactionID, Valid: true}
	}

	_, err = tx.Exec(ctx, query,
		bill.BillID,
		bill.OrganizationID,
		string(bill.Direction),
		bill.CounterpartyName,
		bill.Description,
		bill.Amount,
		bill.AmountPaid,
		string(bill.Status),
		bill.BillDate,
		bill.DueDate,
		bill.LedgerAccountID,
		bill.OffsetAccountID,
		accrualID,
		bill.CreatedAt,
		bill.CreatedBy,
		bill.LastUpdatedAt,
		bill.LastUpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: bill %s already exists", apperrors.ErrDuplicate, bill.BillID)
		}
		return fmt.Errorf("failed to insert bill %s: %w", bill.BillID, err)
	}

	return r.Commit(ctx, tx)
}

// FindBillByID retrieves a single bill.
func (r *PgxBillRepository) FindBillByID(ctx context.Context, billID string) (*domain.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE bill_id = $1;`
	bill, err := scanBill(r.Pool.QueryRow(ctx, query, billID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: bill %s", apperrors.ErrNotFound, billID)
		}
		return nil, fmt.Errorf("failed to find bill %s: %w", billID, err)
	}
	return bill, nil
}

// ListBills returns a page of the organization's bills ordered by
// (bill_date, created_at) descending.
func (r *PgxBillRepository) ListBills(ctx context.Context, organizationID string, direction *domain.BillDirection, limit int, nextToken *string) ([]domain.Bill, *string, error) {
	args := []any{organizationID, limit + 1}
	query := `SELECT ` + billColumns + ` FROM bills WHERE organization_id = $1`

	if direction != nil {
		args = append(args, string(*direction))
		query += fmt.Sprintf(` AND direction = $%d`, len(args))
	}
	if nextToken != nil && *nextToken != "" {
		billDate, createdAt, err := pagination.DecodeToken(*nextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		args = append(args, billDate, createdAt)
		query += fmt.Sprintf(` AND (bill_date, created_at) < ($%d, $%d)`, len(args)-1, len(args))
	}
	query += `
		ORDER BY bill_date DESC, created_at DESC
		LIMIT $2;
	`

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list bills for organization %s: %w", organizationID, err)
	}
	defer rows.Close()

	bills := []domain.Bill{}
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan bill row: %w", err)
		}
		bills = append(bills, *bill)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating bill rows: %w", err)
	}

	var token *string
	if len(bills) > limit {
		bills = bills[:limit]
		last := bills[len(bills)-1]
		t := pagination.EncodeToken(last.BillDate, last.CreatedAt)
		token = &t
	}
	return bills, token, nil
}

// ListOutstandingBills returns UNPAID and PARTIALLY_PAID bills.
func (r *PgxBillRepository) ListOutstandingBills(ctx context.Context, organizationID string) ([]domain.Bill, error) {
	query := `
		SELECT ` + billColumns + `
		FROM bills
		WHERE organization_id = $1 AND status IN ('UNPAID', 'PARTIALLY_PAID')
		ORDER BY due_date, bill_id;
	`
	rows, err := r.Pool.Query(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outstanding bills: %w", err)
	}
	defer rows.Close()

	bills := []domain.Bill{}
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill row: %w", err)
		}
		bills = append(bills, *bill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bill rows: %w", err)
	}
	return bills, nil
}

// ListPaymentsForBill returns every payment event recorded against the bill.
func (r *PgxBillRepository) ListPaymentsForBill(ctx context.Context, billID string) ([]domain.BillPayment, error) {
	query := `
		SELECT payment_id, bill_id, transaction_id, amount, payment_date, cash_account_id, notes, created_at, created_by, last_updated_at, last_updated_by
		FROM bill_payments
		WHERE bill_id = $1
		ORDER BY payment_date, created_at;
	`
	rows, err := r.Pool.Query(ctx, query, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for bill %s: %w", billID, err)
	}
	defer rows.Close()

	payments := []domain.BillPayment{}
	for rows.Next() {
		var p domain.BillPayment
		err := rows.Scan(
			&p.PaymentID,
			&p.BillID,
			&p.TransactionID,
			&p.Amount,
			&p.PaymentDate,
			&p.CashAccountID,
			&p.Notes,
			&p.CreatedAt,
			&p.CreatedBy,
			&p.LastUpdatedAt,
			&p.LastUpdatedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment rows: %w", err)
	}
	return payments, nil
}

// RecordPayment locks the bill, re-validates the remaining balance under the
// lock, posts the payment transaction, inserts the payment row, and
// recomputes the bill's paid amount and status, all in one database
// transaction.
func (r *PgxBillRepository) RecordPayment(ctx context.Context, payment domain.BillPayment, txn domain.Transaction, deltas map[string]decimal.Decimal) (*domain.Bill, error) {
	tx, err := r.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Rollback(ctx, tx)

	bill, err := r.findBillForUpdate(ctx, tx, payment.BillID)
	if err != nil {
		return nil, err
	}
	if bill.IsTerminal() {
		return nil, fmt.Errorf("%w: bill %s is %s and accepts no further payments", apperrors.ErrStateInvalid, bill.BillID, bill.Status)
	}
	if payment.Amount.GreaterThan(bill.Outstanding()) {
		return nil, fmt.Errorf("%w: payment of %s exceeds outstanding balance %s",
			apperrors.ErrValidation, payment.Amount.String(), bill.Outstanding().String())
	}

	if err := r.ledger.SaveTransactionInTx(ctx, tx, txn, deltas); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO bill_payments (payment_id, bill_id, transaction_id, amount, payment_date, cash_account_id, notes, created_at, created_by, last_updated_at, last_updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`,
		payment.PaymentID,
		payment.BillID,
		payment.TransactionID,
		payment.Amount,
		payment.PaymentDate,
		payment.CashAccountID,
		payment.Notes,
		payment.CreatedAt,
		payment.CreatedBy,
		payment.LastUpdatedAt,
		payment.LastUpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: payment %s already exists", apperrors.ErrDuplicate, payment.PaymentID)
		}
		return nil, fmt.Errorf("failed to insert payment %s: %w", payment.PaymentID, err)
	}

	newPaid := bill.AmountPaid.Add(payment.Amount)
	newStatus := domain.DeriveBillStatus(bill.Amount, newPaid)
	if err := r.updateBillPaymentState(ctx, tx, bill, newPaid, newStatus, payment.CreatedBy, payment.CreatedAt); err != nil {
		return nil, err
	}

	if err := r.Commit(ctx, tx); err != nil {
		return nil, err
	}
	return bill, nil
}

// RecalculateStatus recomputes amount_paid from the bill's non-voided
// payments and re-derives the status. Cancelled bills are left untouched.
func (r *PgxBillRepository) RecalculateStatus(ctx context.Context, billID string, by string) (*domain.Bill, error) {
	tx, err := r.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Rollback(ctx, tx)

	bill, err := r.findBillForUpdate(ctx, tx, billID)
	if err != nil {
		return nil, err
	}
	if bill.Status == domain.BillCancelled {
		if err := r.Commit(ctx, tx); err != nil {
			return nil, err
		}
		return bill, nil
	}

	paid, err := sumNonVoidedPayments(ctx, tx, billID)
	if err != nil {
		return nil, err
	}

	status := domain.DeriveBillStatus(bill.Amount, paid)
	if err := r.updateBillPaymentState(ctx, tx, bill, paid, status, by, time.Now().UTC()); err != nil {
		return nil, err
	}

	if err := r.Commit(ctx, tx); err != nil {
		return nil, err
	}
	return bill, nil
}

// CancelBill marks the bill cancelled, provided no payments were ever
// recorded against it. A non-nil voidAccrual is voided in the same database
// transaction.
func (r *PgxBillRepository) CancelBill(ctx context.Context, billID string, by string, voidAccrual *domain.Transaction, voidDeltas map[string]decimal.Decimal) (*domain.Bill, error) {
	tx, err := r.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Rollback(ctx, tx)

	bill, err := r.findBillForUpdate(ctx, tx, billID)
	if err != nil {
		return nil, err
	}
	if bill.IsTerminal() {
		return nil, fmt.Errorf("%w: bill %s is already %s", apperrors.ErrStateInvalid, billID, bill.Status)
	}

	var paymentCount int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM bill_payments WHERE bill_id = $1;`, billID).Scan(&paymentCount); err != nil {
		return nil, fmt.Errorf("failed to count payments for bill %s: %w", billID, err)
	}
	if paymentCount > 0 {
		return nil, fmt.Errorf("%w: bill %s has recorded payments and cannot be cancelled", apperrors.ErrStateInvalid, billID)
	}

	if voidAccrual != nil {
		if err := r.ledger.MarkVoidedInTx(ctx, tx, *voidAccrual, voidDeltas); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	if err := r.updateBillPaymentState(ctx, tx, bill, bill.AmountPaid, domain.BillCancelled, by, now); err != nil {
		return nil, err
	}

	if err := r.Commit(ctx, tx); err != nil {
		return nil, err
	}
	return bill, nil
}
