package repositories

import (
	"context"
	"time"

	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
)

// FiscalPeriodRepository persists fiscal periods and executes the close
// settlement. ClosePeriod is the only mutation of a period after creation.
type FiscalPeriodRepository interface {
	SavePeriod(ctx context.Context, period domain.FiscalPeriod) error
	FindPeriodByID(ctx context.Context, periodID string) (*domain.FiscalPeriod, error)
	ListPeriods(ctx context.Context, organizationID string) ([]domain.FiscalPeriod, error)

	// FindOverlappingPeriod returns any existing period of the organization
	// whose [start, end) range intersects the given one, or ErrNotFound.
	FindOverlappingPeriod(ctx context.Context, organizationID string, start, end time.Time) (*domain.FiscalPeriod, error)

	// FindClosedPeriodContaining returns the CLOSED period covering the
	// instant, or ErrNotFound. The ledger refuses postings dated inside one.
	FindClosedPeriodContaining(ctx context.Context, organizationID string, at time.Time) (*domain.FiscalPeriod, error)

	// ComputeSummary totals the period's non-voided revenue and expense
	// activity using the supplied account-type map.
	ComputeSummary(ctx context.Context, period domain.FiscalPeriod, accountTypes map[string]domain.AccountType) (*domain.PeriodSummary, error)

	// ClosePeriod executes the close as one transaction: lock the period row
	// (conditioned on OPEN; a raced double close fails with ErrConflict),
	// total the period's revenue/expense activity, post the single closing
	// transaction moving net income between the income-summary and
	// fund-balance accounts, and mark the period CLOSED. Returns the closed
	// period and the closing transaction (nil when net income was zero).
	ClosePeriod(ctx context.Context, period domain.FiscalPeriod, accountTypes map[string]domain.AccountType, fundAccountID, summaryAccountID, closedBy string) (*domain.FiscalPeriod, *domain.Transaction, error)
}
