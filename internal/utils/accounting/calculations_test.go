package accounting_test

import (
	"testing"

	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	"github.com/opennpo/nonprofit_books_app/internal/utils/accounting"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebitDelta_SignConvention(t *testing.T) {
	amount := decimal.NewFromInt(100)

	testCases := []struct {
		accountType domain.AccountType
		expected    decimal.Decimal
	}{
		{domain.Asset, amount},
		{domain.Expense, amount},
		{domain.Liability, amount.Neg()},
		{domain.Equity, amount.Neg()},
		{domain.Revenue, amount.Neg()},
	}

	for _, tc := range testCases {
		t.Run(string(tc.accountType), func(t *testing.T) {
			debit, err := accounting.DebitDelta(tc.accountType, amount)
			require.NoError(t, err)
			assert.True(t, debit.Equal(tc.expected), "debit to %s should be %s, got %s", tc.accountType, tc.expected, debit)

			// A credit is always the exact inverse of a debit.
			credit, err := accounting.CreditDelta(tc.accountType, amount)
			require.NoError(t, err)
			assert.True(t, credit.Equal(tc.expected.Neg()))
		})
	}
}

func TestDebitDelta_UnknownType(t *testing.T) {
	_, err := accounting.DebitDelta(domain.AccountType("GOODWILL"), decimal.NewFromInt(1))
	assert.Error(t, err)

	_, err = accounting.CreditDelta(domain.AccountType("GOODWILL"), decimal.NewFromInt(1))
	assert.Error(t, err)
}

func TestPostingDeltas(t *testing.T) {
	txn := domain.Transaction{
		TransactionID:   "txn-1",
		DebitAccountID:  "acct-cash",
		CreditAccountID: "acct-donations",
		Amount:          decimal.NewFromInt(100),
	}

	// Donation: cash (asset) debited, revenue credited; both balances rise.
	deltas, err := accounting.PostingDeltas(txn, domain.Asset, domain.Revenue)
	require.NoError(t, err)
	require.Len(t, deltas, 2)
	assert.True(t, deltas["acct-cash"].Equal(decimal.NewFromInt(100)))
	assert.True(t, deltas["acct-donations"].Equal(decimal.NewFromInt(100)))
}

func TestPostingDeltas_UnknownLeg(t *testing.T) {
	txn := domain.Transaction{
		TransactionID:   "txn-1",
		DebitAccountID:  "acct-a",
		CreditAccountID: "acct-b",
		Amount:          decimal.NewFromInt(100),
	}

	_, err := accounting.PostingDeltas(txn, domain.AccountType("BAD"), domain.Revenue)
	assert.Error(t, err)

	_, err = accounting.PostingDeltas(txn, domain.Asset, domain.AccountType("BAD"))
	assert.Error(t, err)
}

func TestInverseDeltas(t *testing.T) {
	deltas := map[string]decimal.Decimal{
		"acct-a": decimal.NewFromInt(100),
		"acct-b": decimal.NewFromInt(-40),
	}

	inverse := accounting.InverseDeltas(deltas)
	require.Len(t, inverse, 2)
	assert.True(t, inverse["acct-a"].Equal(decimal.NewFromInt(-100)))
	assert.True(t, inverse["acct-b"].Equal(decimal.NewFromInt(40)))

	// Applying a posting and its inverse nets to zero on every account.
	for accountID := range deltas {
		assert.True(t, deltas[accountID].Add(inverse[accountID]).IsZero())
	}
}
