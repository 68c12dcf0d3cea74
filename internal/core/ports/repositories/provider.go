package repositories

// RepositoryProvider bundles the repository implementations handed to the
// service container.
type RepositoryProvider struct {
	VersionRepo VersionRepository
	LedgerRepo  LedgerRepository
	BillRepo    BillRepository
	PeriodRepo  FiscalPeriodRepository
}
