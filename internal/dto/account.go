package dto

import (
	"time"

	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreateAccountRequest defines the data needed to create a new account.
type CreateAccountRequest struct {
	OrganizationID  string             `json:"organizationID" binding:"required"`
	Code            string             `json:"code" binding:"required"`
	Name            string             `json:"name" binding:"required"`
	AccountType     domain.AccountType `json:"accountType" binding:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	ParentAccountID *string            `json:"parentAccountID"` // Optional, use pointer for nullability
	Description     string             `json:"description"`     // Optional
	EffectiveAt     *time.Time         `json:"effectiveAt"`     // Optional, defaults to now
}

// UpdateAccountRequest defines the data allowed for revising an account.
// Use pointers to distinguish between zero-value updates and fields not provided.
type UpdateAccountRequest struct {
	Code        *string    `json:"code"`
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	EffectiveAt *time.Time `json:"effectiveAt"` // Optional, defaults to now
}

// ReparentAccountRequest moves an account under a new parent. A nil parent
// makes the account a root of the hierarchy.
type ReparentAccountRequest struct {
	ParentAccountID *string    `json:"parentAccountID"`
	EffectiveAt     *time.Time `json:"effectiveAt"`
}

// AccountResponse defines the data returned for an account version.
type AccountResponse struct {
	AccountID       string              `json:"accountID"`
	OrganizationID  string              `json:"organizationID"`
	Code            string              `json:"code"`
	Name            string              `json:"name"`
	AccountType     domain.AccountType  `json:"accountType"`
	ParentAccountID string              `json:"parentAccountID"` // Empty string when the account is a root
	Description     string              `json:"description"`
	IsActive        bool                `json:"isActive"`
	Version         VersionMetaResponse `json:"version"`
}

// ToAccountResponse converts a versioned domain account to its DTO.
func ToAccountResponse(v *domain.Versioned[domain.Account]) AccountResponse {
	return AccountResponse{
		AccountID:       v.EntityID,
		OrganizationID:  v.Entity.OrganizationID,
		Code:            v.Entity.Code,
		Name:            v.Entity.Name,
		AccountType:     v.Entity.AccountType,
		ParentAccountID: v.Entity.ParentAccountID,
		Description:     v.Entity.Description,
		IsActive:        v.Entity.IsActive,
		Version:         ToVersionMetaResponse(v.VersionMeta),
	}
}

// ToListAccountResponse converts a slice of versioned accounts to DTOs.
func ToListAccountResponse(accounts []domain.Versioned[domain.Account]) []AccountResponse {
	res := make([]AccountResponse, len(accounts))
	for i := range accounts {
		res[i] = ToAccountResponse(&accounts[i])
	}
	return res
}

// AccountBalanceResponse defines the data returned for an account balance query.
type AccountBalanceResponse struct {
	AccountID string          `json:"accountID"`
	Balance   decimal.Decimal `json:"balance"`
}

// ListAccountsResponse wraps the list of accounts.
type ListAccountsResponse struct {
	Accounts []AccountResponse `json:"accounts"`
}

// TrialBalanceLine is one account of the trial balance with its ledger balance.
type TrialBalanceLine struct {
	AccountID   string             `json:"accountID"`
	Code        string             `json:"code"`
	Name        string             `json:"name"`
	AccountType domain.AccountType `json:"accountType"`
	IsActive    bool               `json:"isActive"`
	Balance     decimal.Decimal    `json:"balance"`
}

// TrialBalanceResponse lists every current account of an organization with
// its balance.
type TrialBalanceResponse struct {
	OrganizationID string             `json:"organizationID"`
	Lines          []TrialBalanceLine `json:"lines"`
}

// ToTrialBalanceResponse pairs the organization's accounts with their
// balances. Accounts missing from the balance map report zero.
func ToTrialBalanceResponse(organizationID string, accounts []domain.Versioned[domain.Account], balances map[string]decimal.Decimal) TrialBalanceResponse {
	lines := make([]TrialBalanceLine, len(accounts))
	for i := range accounts {
		acc := &accounts[i]
		lines[i] = TrialBalanceLine{
			AccountID:   acc.EntityID,
			Code:        acc.Entity.Code,
			Name:        acc.Entity.Name,
			AccountType: acc.Entity.AccountType,
			IsActive:    acc.Entity.IsActive,
			Balance:     balances[acc.EntityID],
		}
	}
	return TrialBalanceResponse{OrganizationID: organizationID, Lines: lines}
}
