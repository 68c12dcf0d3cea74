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

// PgxLedgerRepository persists ledger postings and the derived account
// balances. Balance rows are only ever touched inside the same transaction as
// the posting or void that moves them, under FOR UPDATE locks taken in sorted
// order.
type PgxLedgerRepository struct {
	BaseRepository
}

// newPgxLedgerRepository creates a new repository for ledger data.
func newPgxLedgerRepository(pool *pgxpool.Pool) *PgxLedgerRepository {
	return &PgxLedgerRepository{BaseRepository{Pool: pool}}
}

var _ portsrepo.LedgerRepository = (*PgxLedgerRepository)(nil)

const transactionColumns = `transaction_id, organization_id, debit_account_id, credit_account_id, amount, transaction_date, type, description, is_voided, void_reason, voided_by, voided_at, created_at, created_by, last_updated_at, last_updated_by`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var txn domain.Transaction
	var voidReason, voidedBy sql.NullString
	var voidedAt sql.NullTime

	err := row.Scan(
		&txn.TransactionID,
		&txn.OrganizationID,
		&txn.DebitAccountID,
		&txn.CreditAccountID,
		&txn.Amount,
		&txn.TransactionDate,
		&txn.Type,
		&txn.Description,
		&txn.IsVoided,
		&voidReason,
		&voidedBy,
		&voidedAt,
		&txn.CreatedAt,
		&txn.CreatedBy,
		&txn.LastUpdatedAt,
		&txn.LastUpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	txn.VoidReason = voidReason.String
	txn.VoidedBy = voidedBy.String
	if voidedAt.Valid {
		t := voidedAt.Time
		txn.VoidedAt = &t
	}
	return &txn, nil
}

// lockBalances takes FOR UPDATE locks on the balance rows of the given
// accounts, creating missing rows first. Locking in sorted account order
// keeps concurrent postings deadlock-free.
func lockBalances(ctx context.Context, tx pgx.Tx, accountIDs []string) error {
	if len(accountIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO account_balances (account_id, balance)
		SELECT unnest($1::text[]), 0
		ON CONFLICT (account_id) DO NOTHING;
	`, accountIDs)
	if err != nil {
		return fmt.Errorf("failed to ensure balance rows: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT account_id FROM account_balances
		WHERE account_id = ANY($1)
		ORDER BY account_id
		FOR UPDATE;
	`, accountIDs)
	if err != nil {
		return fmt.Errorf("failed to lock balance rows: %w", err)
	}
	defer rows.Close()
	locked := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan locked balance row: %w", err)
		}
		locked++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating locked balance rows: %w", err)
	}
	if locked != len(accountIDs) {
		return fmt.Errorf("%w: could not lock all balance rows", apperrors.ErrInternal)
	}
	return nil
}

// applyDeltas adds the signed deltas to the locked balance rows in one batch.
func applyDeltas(ctx context.Context, tx pgx.Tx, deltas map[string]decimal.Decimal, now time.Time) error {
	batch := &pgx.Batch{}
	accountIDs := make([]string, 0, len(deltas))
	for accountID, delta := range deltas {
		if delta.IsZero() {
			continue
		}
		batch.Queue(`
			UPDATE account_balances
			SET balance = balance + $2, updated_at = $3
			WHERE account_id = $1;
		`, accountID, delta, now)
		accountIDs = append(accountIDs, accountID)
	}
	if batch.Len() == 0 {
		return nil
	}

	br := tx.SendBatch(ctx, batch)
	var batchErr error
	for i := 0; i < batch.Len(); i++ {
		ct, err := br.Exec()
		if err != nil {
			if batchErr == nil {
				batchErr = fmt.Errorf("failed to update balance for account %s: %w", accountIDs[i], err)
			}
		} else if ct.RowsAffected() == 0 && batchErr == nil {
			batchErr = fmt.Errorf("%w: balance row for account %s missing during update", apperrors.ErrInternal, accountIDs[i])
		}
	}
	if err := br.Close(); err != nil && batchErr == nil {
		batchErr = fmt.Errorf("failed to close balance update batch: %w", err)
	}
	return batchErr
}

func deltaAccountIDs(deltas map[string]decimal.Decimal) []string {
	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	return ids
}

// SaveTransactionInTx inserts the posting and applies its balance deltas
// inside a caller-owned transaction.
func (r *PgxLedgerRepository) SaveTransactionInTx(ctx context.Context, tx pgx.Tx, txn domain.Transaction, deltas map[string]decimal.Decimal) error {
	if err := lockBalances(ctx, tx, deltaAccountIDs(deltas)); err != nil {
		return err
	}

	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16);
	`
	var voidReason, voidedBy sql.NullString
	if txn.VoidReason != "" {
		voidReason = sql.NullString{String: txn.VoidReason, Valid: true}
	}
	if txn.VoidedBy != "" {
		voidedBy = sql.NullString{String: txn.VoidedBy, Valid: true}
	}
	var voidedAt sql.NullTime
	if txn.VoidedAt != nil {
		voidedAt = sql.NullTime{Time: *txn.VoidedAt, Valid: true}
	}

	_, err := tx.Exec(ctx, query,
		txn.TransactionID,
		txn.OrganizationID,
		txn.DebitAccountID,
		txn.CreditAccountID,
		txn.Amount,
		txn.TransactionDate,
		string(txn.Type),
		txn.Description,
		txn.IsVoided,
		voidReason,
		voidedBy,
		voidedAt,
		txn.CreatedAt,
		txn.CreatedBy,
		txn.LastUpdatedAt,
		txn.LastUpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: transaction %s already exists", apperrors.ErrDuplicate, txn.TransactionID)
		}
		return fmt.Errorf("failed to insert transaction %s: %w", txn.TransactionID, err)
	}

	return applyDeltas(ctx, tx, deltas, txn.CreatedAt)
}

// SaveTransaction inserts the posting and its balance deltas in a new
// transaction of its own.
func (r *PgxLedgerRepository) SaveTransaction(ctx context.Context, txn domain.Transaction, deltas map[string]decimal.Decimal) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	if err := r.SaveTransactionInTx(ctx, tx, txn, deltas); err != nil {
		return err
	}
	return r.Commit(ctx, tx)
}

// MarkVoidedInTx flags the posting voided and applies the inverse deltas
// inside a caller-owned transaction. The update is conditioned on the row not
// being voided yet.
func (r *PgxLedgerRepository) MarkVoidedInTx(ctx context.Context, tx pgx.Tx, txn domain.Transaction, deltas map[string]decimal.Decimal) error {
	if err := lockBalances(ctx, tx, deltaAccountIDs(deltas)); err != nil {
		return err
	}

	query := `
		UPDATE transactions
		SET is_voided = TRUE, void_reason = $2, voided_by = $3, voided_at = $4, last_updated_at = $5, last_updated_by = $6
		WHERE transaction_id = $1 AND is_voided = FALSE;
	`
	cmdTag, err := tx.Exec(ctx, query,
		txn.TransactionID,
		txn.VoidReason,
		txn.VoidedBy,
		txn.VoidedAt,
		txn.LastUpdatedAt,
		txn.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to void transaction %s: %w", txn.TransactionID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: transaction %s is missing or already voided", apperrors.ErrConflict, txn.TransactionID)
	}

	return applyDeltas(ctx, tx, deltas, txn.LastUpdatedAt)
}

// MarkVoided flags the posting voided in a new transaction of its own.
func (r *PgxLedgerRepository) MarkVoided(ctx context.Context, txn domain.Transaction, deltas map[string]decimal.Decimal) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	if err := r.MarkVoidedInTx(ctx, tx, txn, deltas); err != nil {
		return err
	}
	return r.Commit(ctx, tx)
}

// FindTransactionByID retrieves a single posting.
func (r *PgxLedgerRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id = $1;`
	txn, err := scanTransaction(r.Pool.QueryRow(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %s", apperrors.ErrNotFound, transactionID)
		}
		return nil, fmt.Errorf("failed to find transaction %s: %w", transactionID, err)
	}
	return txn, nil
}

// ListTransactionsByAccount returns a page of the account's postings ordered
// by (transaction_date, created_at) descending, with a cursor for the next
// page.
func (r *PgxLedgerRepository) ListTransactionsByAccount(ctx context.Context, organizationID, accountID string, limit int, nextToken *string) ([]domain.Transaction, *string, error) {
	args := []any{organizationID, accountID, limit + 1}
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE organization_id = $1 AND (debit_account_id = $2 OR credit_account_id = $2)
	`
	if nextToken != nil && *nextToken != "" {
		txnDate, createdAt, err := pagination.DecodeToken(*nextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		query += ` AND (transaction_date, created_at) < ($4, $5)`
		args = append(args, txnDate, createdAt)
	}
	query += `
		ORDER BY transaction_date DESC, created_at DESC
		LIMIT $3;
	`

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list transactions for account %s: %w", accountID, err)
	}
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	var token *string
	if len(txns) > limit {
		txns = txns[:limit]
		last := txns[len(txns)-1]
		t := pagination.EncodeToken(last.TransactionDate, last.CreatedAt)
		token = &t
	}
	return txns, token, nil
}

// InitBalance creates the zero balance row for a new account; a no-op when
// the row already exists.
func (r *PgxLedgerRepository) InitBalance(ctx context.Context, accountID string) error {
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO account_balances (account_id, balance)
		VALUES ($1, 0)
		ON CONFLICT (account_id) DO NOTHING;
	`, accountID)
	if err != nil {
		return fmt.Errorf("failed to init balance for account %s: %w", accountID, err)
	}
	return nil
}

// FindBalance returns the derived balance of one account.
func (r *PgxLedgerRepository) FindBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.Pool.QueryRow(ctx, `SELECT balance FROM account_balances WHERE account_id = $1;`, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: no balance row for account %s", apperrors.ErrNotFound, accountID)
		}
		return decimal.Zero, fmt.Errorf("failed to find balance for account %s: %w", accountID, err)
	}
	return balance, nil
}

// FindBalances batch-fetches balances; missing accounts are absent from the map.
func (r *PgxLedgerRepository) FindBalances(ctx context.Context, accountIDs []string) (map[string]decimal.Decimal, error) {
	if len(accountIDs) == 0 {
		return map[string]decimal.Decimal{}, nil
	}
	rows, err := r.Pool.Query(ctx, `SELECT account_id, balance FROM account_balances WHERE account_id = ANY($1);`, accountIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	balances := make(map[string]decimal.Decimal, len(accountIDs))
	for rows.Next() {
		var id string
		var balance decimal.Decimal
		if err := rows.Scan(&id, &balance); err != nil {
			return nil, fmt.Errorf("failed to scan balance row: %w", err)
		}
		balances[id] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}
	return balances, nil
}

func sumActivityInRange(ctx context.Context, q querier, organizationID string, from, to time.Time) (map[string]portsrepo.AccountActivity, error) {
	query := `
		SELECT account_id, SUM(debits) AS debits, SUM(credits) AS credits
		FROM (
			SELECT debit_account_id AS account_id, amount AS debits, 0 AS credits
			FROM transactions
			WHERE organization_id = $1 AND NOT is_voided
			  AND transaction_date >= $2 AND transaction_date < $3
			UNION ALL
			SELECT credit_account_id, 0, amount
			FROM transactions
			WHERE organization_id = $1 AND NOT is_voided
			  AND transaction_date >= $2 AND transaction_date < $3
		) legs
		GROUP BY account_id;
	`
	rows, err := q.Query(ctx, query, organizationID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to sum account activity: %w", err)
	}
	defer rows.Close()

	activity := map[string]portsrepo.AccountActivity{}
	for rows.Next() {
		var id string
		var act portsrepo.AccountActivity
		if err := rows.Scan(&id, &act.Debits, &act.Credits); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		activity[id] = act
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}
	return activity, nil
}

// SumAccountActivityInRange totals non-voided postings dated in [from, to)
// per account.
func (r *PgxLedgerRepository) SumAccountActivityInRange(ctx context.Context, organizationID string, from, to time.Time) (map[string]portsrepo.AccountActivity, error) {
	return sumActivityInRange(ctx, r.Pool, organizationID, from, to)
}

// SumAccountActivityInRangeInTx is SumAccountActivityInRange against a
// caller-owned transaction.
func (r *PgxLedgerRepository) SumAccountActivityInRangeInTx(ctx context.Context, tx pgx.Tx, organizationID string, from, to time.Time) (map[string]portsrepo.AccountActivity, error) {
	return sumActivityInRange(ctx, tx, organizationID, from, to)
}
