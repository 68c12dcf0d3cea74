package domain

// AccountType defines the fundamental accounting type of an account.
// It is fixed at creation and never revised.
type AccountType string

const (
	Asset     AccountType = "ASSET"
	Liability AccountType = "LIABILITY"
	Equity    AccountType = "EQUITY"
	Revenue   AccountType = "REVENUE"
	Expense   AccountType = "EXPENSE"
)

// ValidAccountType reports whether t is one of the five closed account types.
func ValidAccountType(t AccountType) bool {
	switch t {
	case Asset, Liability, Equity, Revenue, Expense:
		return true
	}
	return false
}

// Account is the versioned payload for a ledger account. The balance is NOT
// part of the payload: it is derived state owned by the ledger engine and
// must always equal the signed sum of non-voided transaction legs.
type Account struct {
	OrganizationID  string      `json:"organizationID"`
	Code            string      `json:"code"` // Chart-of-accounts code, e.g. "1000"
	Name            string      `json:"name"`
	AccountType     AccountType `json:"accountType"`
	ParentAccountID string      `json:"parentAccountID"` // Empty when top-level
	Description     string      `json:"description"`
	IsActive        bool        `json:"isActive"`
}
