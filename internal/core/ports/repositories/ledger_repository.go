package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// AccountActivity is the per-account debit and credit totals over some range
// of non-voided postings.
type AccountActivity struct {
	Debits  decimal.Decimal
	Credits decimal.Decimal
}

// LedgerRepository persists ledger postings and the derived per-account
// balances. Every balance change flows through SaveTransaction/MarkVoided;
// the balance rows are never writable any other way.
//
// The InTx variants run against a caller-owned transaction so that the
// billing and fiscal-period repositories can compose a posting with their own
// writes atomically.
type LedgerRepository interface {
	SaveTransaction(ctx context.Context, txn domain.Transaction, deltas map[string]decimal.Decimal) error
	SaveTransactionInTx(ctx context.Context, tx pgx.Tx, txn domain.Transaction, deltas map[string]decimal.Decimal) error

	// MarkVoided flags the transaction voided and applies the inverse balance
	// deltas. The update is conditioned on the row not being voided yet; a
	// raced double void fails with apperrors.ErrConflict.
	MarkVoided(ctx context.Context, txn domain.Transaction, deltas map[string]decimal.Decimal) error
	MarkVoidedInTx(ctx context.Context, tx pgx.Tx, txn domain.Transaction, deltas map[string]decimal.Decimal) error

	FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error)
	ListTransactionsByAccount(ctx context.Context, organizationID, accountID string, limit int, nextToken *string) ([]domain.Transaction, *string, error)

	// InitBalance creates the zero balance row for a new account; it is a
	// no-op when the row already exists.
	InitBalance(ctx context.Context, accountID string) error
	FindBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	FindBalances(ctx context.Context, accountIDs []string) (map[string]decimal.Decimal, error)

	// SumAccountActivityInRange totals non-voided postings dated in
	// [from, to) per account, for period summaries and closing.
	SumAccountActivityInRange(ctx context.Context, organizationID string, from, to time.Time) (map[string]AccountActivity, error)
	SumAccountActivityInRangeInTx(ctx context.Context, tx pgx.Tx, organizationID string, from, to time.Time) (map[string]AccountActivity, error)
}
