package dto

import (
	"time"

	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreateTransactionRequest defines the data needed to post a ledger entry.
// Exactly one account is debited and one credited; the amount is positive.
type CreateTransactionRequest struct {
	OrganizationID  string                 `json:"organizationID" binding:"required"`
	DebitAccountID  string                 `json:"debitAccountID" binding:"required"`
	CreditAccountID string                 `json:"creditAccountID" binding:"required"`
	Amount          decimal.Decimal        `json:"amount" binding:"required,decimalpositive"`
	TransactionDate time.Time              `json:"transactionDate" binding:"required"`
	Type            domain.TransactionType `json:"type" binding:"required,oneof=DONATION BILL_ACCRUAL BILL_PAYMENT MANUAL CLOSING"`
	Description     string                 `json:"description"`
}

// VoidTransactionRequest defines the data needed to void a posting.
type VoidTransactionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// TransactionResponse defines the data returned for a ledger posting.
type TransactionResponse struct {
	TransactionID   string                 `json:"transactionID"`
	OrganizationID  string                 `json:"organizationID"`
	DebitAccountID  string                 `json:"debitAccountID"`
	CreditAccountID string                 `json:"creditAccountID"`
	Amount          decimal.Decimal        `json:"amount"`
	TransactionDate time.Time              `json:"transactionDate"`
	Type            domain.TransactionType `json:"type"`
	Description     string                 `json:"description"`
	IsVoided        bool                   `json:"isVoided"`
	VoidReason      string                 `json:"voidReason,omitempty"`
	VoidedBy        string                 `json:"voidedBy,omitempty"`
	VoidedAt        *time.Time             `json:"voidedAt,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	CreatedBy       string                 `json:"createdBy"`
}

// ToTransactionResponse converts a domain.Transaction to its DTO.
func ToTransactionResponse(txn *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		TransactionID:   txn.TransactionID,
		OrganizationID:  txn.OrganizationID,
		DebitAccountID:  txn.DebitAccountID,
		CreditAccountID: txn.CreditAccountID,
		Amount:          txn.Amount,
		TransactionDate: txn.TransactionDate,
		Type:            txn.Type,
		Description:     txn.Description,
		IsVoided:        txn.IsVoided,
		VoidReason:      txn.VoidReason,
		VoidedBy:        txn.VoidedBy,
		VoidedAt:        txn.VoidedAt,
		CreatedAt:       txn.CreatedAt,
		CreatedBy:       txn.CreatedBy,
	}
}

// ToListTransactionResponse converts a slice of transactions to DTOs.
func ToListTransactionResponse(txns []domain.Transaction) []TransactionResponse {
	res := make([]TransactionResponse, len(txns))
	for i := range txns {
		res[i] = ToTransactionResponse(&txns[i])
	}
	return res
}

// ListTransactionsParams defines query parameters for listing account activity.
type ListTransactionsParams struct {
	Limit     int     `form:"limit,default=50"`
	NextToken *string `form:"nextToken"`
}

// ListTransactionsResponse wraps a page of postings with the cursor for the
// next page, nil when this was the last page.
type ListTransactionsResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	NextToken    *string               `json:"nextToken,omitempty"`
}
