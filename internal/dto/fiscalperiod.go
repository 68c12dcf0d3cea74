package dto

import (
	"time"

	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreateFiscalPeriodRequest opens a new fiscal period. EndDate is exclusive.
type CreateFiscalPeriodRequest struct {
	OrganizationID string    `json:"organizationID" binding:"required"`
	Name           string    `json:"name" binding:"required"`
	StartDate      time.Time `json:"startDate" binding:"required"`
	EndDate        time.Time `json:"endDate" binding:"required"`
}

// FiscalPeriodResponse defines the data returned for a fiscal period.
type FiscalPeriodResponse struct {
	PeriodID             string                    `json:"periodID"`
	OrganizationID       string                    `json:"organizationID"`
	Name                 string                    `json:"name"`
	StartDate            time.Time                 `json:"startDate"`
	EndDate              time.Time                 `json:"endDate"`
	Status               domain.FiscalPeriodStatus `json:"status"`
	ClosedAt             *time.Time                `json:"closedAt,omitempty"`
	ClosedBy             string                    `json:"closedBy,omitempty"`
	ClosingTransactionID *string                   `json:"closingTransactionID,omitempty"`
	CreatedAt            time.Time                 `json:"createdAt"`
	CreatedBy            string                    `json:"createdBy"`
}

// ToFiscalPeriodResponse converts a domain.FiscalPeriod to its DTO.
func ToFiscalPeriodResponse(p *domain.FiscalPeriod) FiscalPeriodResponse {
	return FiscalPeriodResponse{
		PeriodID:             p.PeriodID,
		OrganizationID:       p.OrganizationID,
		Name:                 p.Name,
		StartDate:            p.StartDate,
		EndDate:              p.EndDate,
		Status:               p.Status,
		ClosedAt:             p.ClosedAt,
		ClosedBy:             p.ClosedBy,
		ClosingTransactionID: p.ClosingTransactionID,
		CreatedAt:            p.CreatedAt,
		CreatedBy:            p.CreatedBy,
	}
}

// ToListFiscalPeriodResponse converts a slice of periods to DTOs.
func ToListFiscalPeriodResponse(periods []domain.FiscalPeriod) []FiscalPeriodResponse {
	res := make([]FiscalPeriodResponse, len(periods))
	for i := range periods {
		res[i] = ToFiscalPeriodResponse(&periods[i])
	}
	return res
}

// PeriodSummaryResponse reports the revenue and expense totals of a period.
type PeriodSummaryResponse struct {
	PeriodID     string          `json:"periodID"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
	NetIncome    decimal.Decimal `json:"netIncome"`
}

// ToPeriodSummaryResponse converts a domain.PeriodSummary to its DTO.
func ToPeriodSummaryResponse(s *domain.PeriodSummary) PeriodSummaryResponse {
	return PeriodSummaryResponse{
		PeriodID:     s.PeriodID,
		TotalRevenue: s.TotalRevenue,
		TotalExpense: s.TotalExpense,
		NetIncome:    s.NetIncome,
	}
}

// ClosePeriodResponse returns the closed period together with the closing
// transaction, which is absent when the period netted to zero.
type ClosePeriodResponse struct {
	Period             FiscalPeriodResponse  `json:"period"`
	ClosingTransaction *TransactionResponse  `json:"closingTransaction,omitempty"`
	Summary            PeriodSummaryResponse `json:"summary"`
}
