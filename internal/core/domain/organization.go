package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Organization is the versioned payload for a nonprofit organization.
// FundBalanceAccountID and IncomeSummaryAccountID designate the EQUITY
// accounts used by fiscal-period closing.
type Organization struct {
	Name                   string `json:"name"`
	Mission                string `json:"mission"`
	Email                  string `json:"email"`
	TaxID                  string `json:"taxID"`
	FundBalanceAccountID   string `json:"fundBalanceAccountID"`
	IncomeSummaryAccountID string `json:"incomeSummaryAccountID"`
}

// MembershipLevel is the dues tier of a membership.
type MembershipLevel string

const (
	LevelIndividual MembershipLevel = "INDIVIDUAL"
	LevelHousehold  MembershipLevel = "HOUSEHOLD"
	LevelSustaining MembershipLevel = "SUSTAINING"
	LevelLifetime   MembershipLevel = "LIFETIME"
)

// Membership is the versioned payload linking a contact to an organization.
type Membership struct {
	OrganizationID string          `json:"organizationID"`
	ContactID      string          `json:"contactID"`
	Level          MembershipLevel `json:"level"`
	StartDate      time.Time       `json:"startDate"`
	EndDate        *time.Time      `json:"endDate"` // Nil while the membership is open-ended
}

// Contact is the versioned payload for a donor, member, or vendor contact.
type Contact struct {
	OrganizationID string `json:"organizationID"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
}

// ProgramSpending is the versioned payload for a program-spending record,
// tracking how restricted or program funds were applied.
type ProgramSpending struct {
	OrganizationID string          `json:"organizationID"`
	ProgramName    string          `json:"programName"`
	AccountID      string          `json:"accountID"` // Expense account the spending posts against
	Amount         decimal.Decimal `json:"amount"`
	SpentAt        time.Time       `json:"spentAt"`
	Notes          string          `json:"notes"`
}
