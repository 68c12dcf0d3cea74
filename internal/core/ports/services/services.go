package services

import (
	"context"

	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// AccountSvcFacade is the slice of the account service the ledger, billing,
// and fiscal-period services depend on. Keeping it an interface lets tests
// substitute fakes without standing up the version store.
type AccountSvcFacade interface {
	// GetAccountByID returns the current version of the account.
	GetAccountByID(ctx context.Context, accountID string) (*domain.Versioned[domain.Account], error)

	// GetAccountsByIDs batch-fetches current account versions; missing IDs
	// are simply absent from the map.
	GetAccountsByIDs(ctx context.Context, accountIDs []string) (map[string]domain.Versioned[domain.Account], error)

	// ListAccountsByOrganization returns every current, non-deleted account
	// of the organization (active and inactive).
	ListAccountsByOrganization(ctx context.Context, organizationID string) ([]domain.Versioned[domain.Account], error)

	// GetBalance returns the live ledger balance of the account.
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
}

// OrganizationSvcFacade exposes organization reads to the fiscal-period
// service, which needs the designated closing accounts.
type OrganizationSvcFacade interface {
	GetOrganizationByID(ctx context.Context, organizationID string) (*domain.Versioned[domain.Organization], error)
}
