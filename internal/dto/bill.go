package dto

import (
	"time"

	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreateBillRequest defines the data needed to record a bill. When
// PostAccrual is true the accrual transaction is posted in the same unit of
// work (expense against payable, or receivable against revenue).
type CreateBillRequest struct {
	OrganizationID   string               `json:"organizationID" binding:"required"`
	Direction        domain.BillDirection `json:"direction" binding:"required,oneof=PAYABLE RECEIVABLE"`
	CounterpartyName string               `json:"counterpartyName" binding:"required"`
	Description      string               `json:"description"`
	Amount           decimal.Decimal      `json:"amount" binding:"required,decimalpositive"`
	BillDate         time.Time            `json:"billDate" binding:"required"`
	DueDate          time.Time            `json:"dueDate" binding:"required"`
	LedgerAccountID  string               `json:"ledgerAccountID" binding:"required"`
	OffsetAccountID  string               `json:"offsetAccountID" binding:"required"`
	PostAccrual      bool                 `json:"postAccrual"`
}

// RecordPaymentRequest defines the data needed to record a payment on a bill.
type RecordPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount" binding:"required,decimalpositive"`
	PaymentDate   time.Time       `json:"paymentDate" binding:"required"`
	CashAccountID string          `json:"cashAccountID" binding:"required"`
	Notes         string          `json:"notes"`
}

// BillResponse defines the data returned for a bill.
type BillResponse struct {
	BillID               string               `json:"billID"`
	OrganizationID       string               `json:"organizationID"`
	Direction            domain.BillDirection `json:"direction"`
	CounterpartyName     string               `json:"counterpartyName"`
	Description          string               `json:"description"`
	Amount               decimal.Decimal      `json:"amount"`
	AmountPaid           decimal.Decimal      `json:"amountPaid"`
	Outstanding          decimal.Decimal      `json:"outstanding"`
	Status               domain.BillStatus    `json:"status"`
	BillDate             time.Time            `json:"billDate"`
	DueDate              time.Time            `json:"dueDate"`
	LedgerAccountID      string               `json:"ledgerAccountID"`
	OffsetAccountID      string               `json:"offsetAccountID"`
	AccrualTransactionID *string              `json:"accrualTransactionID,omitempty"`
	CreatedAt            time.Time            `json:"createdAt"`
	CreatedBy            string               `json:"createdBy"`
}

// ToBillResponse converts a domain.Bill to its DTO.
func ToBillResponse(b *domain.Bill) BillResponse {
	return BillResponse{
		BillID:               b.BillID,
		OrganizationID:       b.OrganizationID,
		Direction:            b.Direction,
		CounterpartyName:     b.CounterpartyName,
		Description:          b.Description,
		Amount:               b.Amount,
		AmountPaid:           b.AmountPaid,
		Outstanding:          b.Outstanding(),
		Status:               b.Status,
		BillDate:             b.BillDate,
		DueDate:              b.DueDate,
		LedgerAccountID:      b.LedgerAccountID,
		OffsetAccountID:      b.OffsetAccountID,
		AccrualTransactionID: b.AccrualTransactionID,
		CreatedAt:            b.CreatedAt,
		CreatedBy:            b.CreatedBy,
	}
}

// ToListBillResponse converts a slice of bills to DTOs.
func ToListBillResponse(bills []domain.Bill) []BillResponse {
	res := make([]BillResponse, len(bills))
	for i := range bills {
		res[i] = ToBillResponse(&bills[i])
	}
	return res
}

// ListBillsParams defines query parameters for listing bills.
type ListBillsParams struct {
	Direction *domain.BillDirection `form:"direction" binding:"omitempty,oneof=PAYABLE RECEIVABLE"`
	Limit     int                   `form:"limit,default=50"`
	NextToken *string               `form:"nextToken"`
}

// ListBillsResponse wraps a page of bills with the cursor for the next page.
type ListBillsResponse struct {
	Bills     []BillResponse `json:"bills"`
	NextToken *string        `json:"nextToken,omitempty"`
}

// BillPaymentResponse defines the data returned for one payment event.
type BillPaymentResponse struct {
	PaymentID     string          `json:"paymentID"`
	BillID        string          `json:"billID"`
	TransactionID string          `json:"transactionID"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   time.Time       `json:"paymentDate"`
	CashAccountID string          `json:"cashAccountID"`
	Notes         string          `json:"notes"`
	CreatedAt     time.Time       `json:"createdAt"`
	CreatedBy     string          `json:"createdBy"`
}

func ToBillPaymentResponse(p *domain.BillPayment) BillPaymentResponse {
	return BillPaymentResponse{
		PaymentID:     p.PaymentID,
		BillID:        p.BillID,
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		PaymentDate:   p.PaymentDate,
		CashAccountID: p.CashAccountID,
		Notes:         p.Notes,
		CreatedAt:     p.CreatedAt,
		CreatedBy:     p.CreatedBy,
	}
}

func ToListBillPaymentResponse(payments []domain.BillPayment) []BillPaymentResponse {
	res := make([]BillPaymentResponse, len(payments))
	for i := range payments {
		res[i] = ToBillPaymentResponse(&payments[i])
	}
	return res
}

// AgingParams defines query parameters for the aging report.
type AgingParams struct {
	AsOf *time.Time `form:"asOf" time_format:"2006-01-02"`
}

// ProjectedBalanceParams defines query parameters for cash projection.
type ProjectedBalanceParams struct {
	Through time.Time `form:"through" binding:"required" time_format:"2006-01-02"`
}

// ProjectedBalanceResponse reports an account's balance once every
// outstanding bill due through the horizon has settled.
type ProjectedBalanceResponse struct {
	AccountID        string          `json:"accountID"`
	CurrentBalance   decimal.Decimal `json:"currentBalance"`
	ProjectedBalance decimal.Decimal `json:"projectedBalance"`
	Through          time.Time       `json:"through"`
	OverdraftRisk    bool            `json:"overdraftRisk"`
}
