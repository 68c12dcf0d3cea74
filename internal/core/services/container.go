package services

import (
	portsrepo "github.com/opennpo/nonprofit_books_app/internal/core/ports/repositories"
	portssvc "github.com/opennpo/nonprofit_books_app/internal/core/ports/services"
)

// Container holds all the services and manages their dependencies.
type Container struct {
	Organization    *OrganizationService
	Contact         *ContactService
	Membership      *MembershipService
	ProgramSpending *ProgramSpendingService
	Account         *AccountService
	Ledger          *LedgerService
	Billing         *BillingService
	FiscalPeriod    *FiscalPeriodService
}

// NewContainer creates a new service container with properly initialized
// dependencies.
func NewContainer(repos *portsrepo.RepositoryProvider) *Container {
	container := &Container{}

	container.Organization = NewOrganizationService(repos.VersionRepo)
	container.Account = NewAccountService(repos.VersionRepo, repos.LedgerRepo)
	container.Contact = NewContactService(repos.VersionRepo, container.Organization)
	container.Membership = NewMembershipService(repos.VersionRepo, container.Contact)
	container.ProgramSpending = NewProgramSpendingService(repos.VersionRepo, container.Account)

	container.Ledger = NewLedgerService(repos.LedgerRepo, repos.PeriodRepo, container.Account)
	container.Billing = NewBillingService(repos.BillRepo, repos.LedgerRepo, repos.PeriodRepo, container.Account)
	container.FiscalPeriod = NewFiscalPeriodService(repos.PeriodRepo, container.Account, container.Organization)

	return container
}

// Compile-time checks that the concrete services satisfy the facades other
// layers depend on.
var (
	_ portssvc.AccountSvcFacade      = (*AccountService)(nil)
	_ portssvc.OrganizationSvcFacade = (*OrganizationService)(nil)
)
