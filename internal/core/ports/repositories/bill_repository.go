package repositories

import (
	"context"

	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// BillRepository persists bills and their payments. The compound operations
// (payment, recalculation, cancellation) run as single database transactions
// that lock the bill row, so concurrent payments against one bill serialize
// and can never overpay it.
type BillRepository interface {
	// SaveBill inserts the bill and, when accrual is non-nil, posts the
	// accrual transaction (with its balance deltas) in the same transaction.
	SaveBill(ctx context.Context, bill domain.Bill, accrual *domain.Transaction, accrualDeltas map[string]decimal.Decimal) error

	FindBillByID(ctx context.Context, billID string) (*domain.Bill, error)
	ListBills(ctx context.Context, organizationID string, direction *domain.BillDirection, limit int, nextToken *string) ([]domain.Bill, *string, error)

	// ListOutstandingBills returns UNPAID and PARTIALLY_PAID bills for aging
	// and projected-balance reporting.
	ListOutstandingBills(ctx context.Context, organizationID string) ([]domain.Bill, error)
	ListPaymentsForBill(ctx context.Context, billID string) ([]domain.BillPayment, error)

	// RecordPayment locks the bill, re-validates remaining balance under the
	// lock, posts the payment transaction, inserts the BillPayment row, and
	// recomputes amount_paid/status in one transaction. Returns the updated
	// bill.
	RecordPayment(ctx context.Context, payment domain.BillPayment, txn domain.Transaction, deltas map[string]decimal.Decimal) (*domain.Bill, error)

	// RecalculateStatus recomputes amount_paid from non-voided payments and
	// re-derives status. Idempotent.
	RecalculateStatus(ctx context.Context, billID string, by string) (*domain.Bill, error)

	// CancelBill marks the bill cancelled, provided no payments were ever
	// recorded against it; when voidAccrual is non-nil the accrual posting is
	// voided (with inverse deltas) in the same transaction.
	CancelBill(ctx context.Context, billID string, by string, voidAccrual *domain.Transaction, voidDeltas map[string]decimal.Decimal) (*domain.Bill, error)
}
