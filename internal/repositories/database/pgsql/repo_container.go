package pgsql

import (
	"github.com/jackc/pgx/v5/pgxpool"
	portsrepo "github.com/opennpo/nonprofit_books_app/internal/core/ports/repositories"
)

func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	versionRepo := newPgxVersionRepository(dbPool)
	ledgerRepo := newPgxLedgerRepository(dbPool)
	billRepo := newPgxBillRepository(dbPool, ledgerRepo)
	periodRepo := newPgxFiscalPeriodRepository(dbPool, ledgerRepo)

	return portsrepo.RepositoryProvider{
		VersionRepo: versionRepo,
		LedgerRepo:  ledgerRepo,
		BillRepo:    billRepo,
		PeriodRepo:  periodRepo,
	}
}
