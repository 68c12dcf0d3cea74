package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies what business event produced a ledger posting.
type TransactionType string

const (
	TxnDonation    TransactionType = "DONATION"
	TxnBillAccrual TransactionType = "BILL_ACCRUAL"
	TxnBillPayment TransactionType = "BILL_PAYMENT"
	TxnManual      TransactionType = "MANUAL"
	TxnClosing     TransactionType = "CLOSING"
)

// ValidTransactionType reports whether t is a known posting type.
func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TxnDonation, TxnBillAccrual, TxnBillPayment, TxnManual, TxnClosing:
		return true
	}
	return false
}

// Transaction is a single double-entry ledger posting: one debit account, one
// credit account, positive amount. Immutable once created except for the void
// flag; never deleted.
type Transaction struct {
	TransactionID   string          `json:"transactionID"`
	OrganizationID  string          `json:"organizationID"`
	DebitAccountID  string          `json:"debitAccountID"`
	CreditAccountID string          `json:"creditAccountID"`
	Amount          decimal.Decimal `json:"amount"` // Always > 0
	TransactionDate time.Time       `json:"transactionDate"`
	Type            TransactionType `json:"type"`
	Description     string          `json:"description"`
	IsVoided        bool            `json:"isVoided"`
	VoidReason      string          `json:"voidReason"`
	VoidedBy        string          `json:"voidedBy"`
	VoidedAt        *time.Time      `json:"voidedAt"`
	AuditFields
}
