package accounting

import (
	"fmt"

	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// DebitDelta returns the signed balance change a debit of amount applies to
// an account of the given type.
//
// Convention:
//
//	DEBIT to ASSET/EXPENSE -> Positive (+)
//	CREDIT to ASSET/EXPENSE -> Negative (-)
//	DEBIT to LIABILITY/EQUITY/REVENUE -> Negative (-)
//	CREDIT to LIABILITY/EQUITY/REVENUE -> Positive (+)
func DebitDelta(accountType domain.AccountType, amount decimal.Decimal) (decimal.Decimal, error) {
	switch accountType {
	case domain.Asset, domain.Expense:
		return amount, nil
	case domain.Liability, domain.Equity, domain.Revenue:
		return amount.Neg(), nil
	default:
		return decimal.Zero, fmt.Errorf("unknown account type '%s'", accountType)
	}
}

// CreditDelta returns the signed balance change a credit of amount applies to
// an account of the given type. It is the exact inverse of DebitDelta.
func CreditDelta(accountType domain.AccountType, amount decimal.Decimal) (decimal.Decimal, error) {
	delta, err := DebitDelta(accountType, amount)
	if err != nil {
		return decimal.Zero, err
	}
	return delta.Neg(), nil
}

// PostingDeltas computes the per-account signed balance changes for a single
// double-entry posting. Both legs of a posting always move through here so
// that posting and voiding stay exact inverses.
func PostingDeltas(txn domain.Transaction, debitType, creditType domain.AccountType) (map[string]decimal.Decimal, error) {
	debitDelta, err := DebitDelta(debitType, txn.Amount)
	if err != nil {
		return nil, fmt.Errorf("debit leg of transaction %s: %w", txn.TransactionID, err)
	}
	creditDelta, err := CreditDelta(creditType, txn.Amount)
	if err != nil {
		return nil, fmt.Errorf("credit leg of transaction %s: %w", txn.TransactionID, err)
	}
	return map[string]decimal.Decimal{
		txn.DebitAccountID:  debitDelta,
		txn.CreditAccountID: creditDelta,
	}, nil
}

// InverseDeltas negates every delta in the map; used when voiding a posting.
func InverseDeltas(deltas map[string]decimal.Decimal) map[string]decimal.Decimal {
	inverse := make(map[string]decimal.Decimal, len(deltas))
	for accountID, delta := range deltas {
		inverse[accountID] = delta.Neg()
	}
	return inverse
}
