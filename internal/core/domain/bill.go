package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillDirection indicates whether money is owed by us or to us.
type BillDirection string

const (
	Payable    BillDirection = "PAYABLE"
	Receivable BillDirection = "RECEIVABLE"
)

// ValidBillDirection reports whether d is a known bill direction.
func ValidBillDirection(d BillDirection) bool {
	return d == Payable || d == Receivable
}

// BillStatus is the lifecycle state of a bill. PAID and CANCELLED are
// terminal: no further payments or edits are accepted afterwards.
type BillStatus string

const (
	BillUnpaid        BillStatus = "UNPAID"
	BillPartiallyPaid BillStatus = "PARTIALLY_PAID"
	BillPaid          BillStatus = "PAID"
	BillCancelled     BillStatus = "CANCELLED"
)

// Bill is a payable or receivable obligation tracked against the ledger.
// LedgerAccountID is the accounts-payable (LIABILITY) or accounts-receivable
// (ASSET) account the bill accrues against; OffsetAccountID is the expense or
// revenue account on the other side of the accrual.
type Bill struct {
	BillID               string          `json:"billID"`
	OrganizationID       string          `json:"organizationID"`
	Direction            BillDirection   `json:"direction"`
	CounterpartyName     string          `json:"counterpartyName"`
	Description          string          `json:"description"`
	Amount               decimal.Decimal `json:"amount"`
	AmountPaid           decimal.Decimal `json:"amountPaid"`
	Status               BillStatus      `json:"status"`
	BillDate             time.Time       `json:"billDate"`
	DueDate              time.Time       `json:"dueDate"`
	LedgerAccountID      string          `json:"ledgerAccountID"`
	OffsetAccountID      string          `json:"offsetAccountID"`
	AccrualTransactionID *string         `json:"accrualTransactionID"`
	AuditFields
}

// Outstanding returns the unpaid remainder of the bill.
func (b Bill) Outstanding() decimal.Decimal {
	return b.Amount.Sub(b.AmountPaid)
}

// IsTerminal reports whether the bill accepts no further payments or edits.
func (b Bill) IsTerminal() bool {
	return b.Status == BillPaid || b.Status == BillCancelled
}

// DeriveBillStatus derives a bill's status purely from the sum of its
// non-voided payments versus its amount. Recomputing from the sum, rather
// than incrementing counters, keeps the derivation idempotent and lets it
// converge after a payment is voided.
func DeriveBillStatus(amount, amountPaid decimal.Decimal) BillStatus {
	switch {
	case amountPaid.GreaterThanOrEqual(amount):
		return BillPaid
	case amountPaid.IsPositive():
		return BillPartiallyPaid
	default:
		return BillUnpaid
	}
}

// BillPayment records one payment event against a bill and links it to the
// ledger transaction it produced.
type BillPayment struct {
	PaymentID     string          `json:"paymentID"`
	BillID        string          `json:"billID"`
	TransactionID string          `json:"transactionID"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   time.Time       `json:"paymentDate"`
	CashAccountID string          `json:"cashAccountID"`
	Notes         string          `json:"notes"`
	AuditFields
}

// AgingBucket aggregates outstanding bill amounts for one overdue band.
type AgingBucket struct {
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

// AgingBuckets holds the standard aging bands for one bill direction.
type AgingBuckets struct {
	Current     AgingBucket     `json:"current"`
	Days1To30   AgingBucket     `json:"days1to30"`
	Days31To60  AgingBucket     `json:"days31to60"`
	Days61To90  AgingBucket     `json:"days61to90"`
	Days90Plus  AgingBucket     `json:"days90plus"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	TotalCount  int             `json:"totalCount"`
}

// Add places an outstanding amount into the bucket for daysOverdue.
func (a *AgingBuckets) Add(daysOverdue int, amount decimal.Decimal) {
	bucket := &a.Current
	switch {
	case daysOverdue >= 91:
		bucket = &a.Days90Plus
	case daysOverdue >= 61:
		bucket = &a.Days61To90
	case daysOverdue >= 31:
		bucket = &a.Days31To60
	case daysOverdue >= 1:
		bucket = &a.Days1To30
	}
	bucket.Amount = bucket.Amount.Add(amount)
	bucket.Count++
	a.TotalAmount = a.TotalAmount.Add(amount)
	a.TotalCount++
}

// AgingReport buckets outstanding bills by days past due, separately for
// payables and receivables.
type AgingReport struct {
	AsOf        time.Time    `json:"asOf"`
	Payables    AgingBuckets `json:"payables"`
	Receivables AgingBuckets `json:"receivables"`
}
