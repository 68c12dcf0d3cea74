package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FiscalPeriodStatus is the lifecycle state of a fiscal period. The
// transition is one-way: a closed period is never reopened.
type FiscalPeriodStatus string

const (
	PeriodOpen   FiscalPeriodStatus = "OPEN"
	PeriodClosed FiscalPeriodStatus = "CLOSED"
)

// FiscalPeriod is a bounded accounting period. Closing sweeps the period's
// revenue and expense activity into the organization's fund-balance account
// and locks the period against further postings.
type FiscalPeriod struct {
	PeriodID             string             `json:"periodID"`
	OrganizationID       string             `json:"organizationID"`
	Name                 string             `json:"name"`
	StartDate            time.Time          `json:"startDate"`
	EndDate              time.Time          `json:"endDate"` // Exclusive upper bound
	Status               FiscalPeriodStatus `json:"status"`
	ClosedAt             *time.Time         `json:"closedAt"`
	ClosedBy             string             `json:"closedBy"`
	ClosingTransactionID *string            `json:"closingTransactionID"`
	AuditFields
}

// Contains reports whether t falls inside the period's date range.
func (p FiscalPeriod) Contains(t time.Time) bool {
	return !t.Before(p.StartDate) && t.Before(p.EndDate)
}

// PeriodSummary is the revenue/expense activity of a period, as computed at
// close time or on demand.
type PeriodSummary struct {
	PeriodID     string          `json:"periodID"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
	NetIncome    decimal.Decimal `json:"netIncome"`
}
