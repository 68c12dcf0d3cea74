package pgsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/opennpo/nonprofit_books_app/internal/apperrors"
	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	portsrepo "github.com/opennpo/nonprofit_books_app/internal/core/ports/repositories"
	"github.com/opennpo/nonprofit_books_app/internal/utils/accounting"
	"github.com/shopspring/decimal"
)

// PgxFiscalPeriodRepository persists fiscal periods and executes the close
// settlement. It holds the ledger repository so the closing transaction posts
// inside the same database transaction that marks the period CLOSED.
type PgxFiscalPeriodRepository struct {
	BaseRepository
	ledger *PgxLedgerRepository
}

// newPgxFiscalPeriodRepository creates a new repository for fiscal periods.
func newPgxFiscalPeriodRepository(pool *pgxpool.Pool, ledger *PgxLedgerRepository) *PgxFiscalPeriodRepository {
	return &PgxFiscalPeriodRepository{
		BaseRepository: BaseRepository{Pool: pool},
		ledger:         ledger,
	}
}

var _ portsrepo.FiscalPeriodRepository = (*PgxFiscalPeriodRepository)(nil)

const periodColumns = `period_id, organization_id, name, start_date, end_date, status, closed_at, closed_by, closing_transaction_id, created_at, created_by, last_updated_at, last_updated_by`

func scanPeriod(row pgx.Row) (*domain.FiscalPeriod, error) {
	var p domain.FiscalPeriod
	var closedAt sql.NullTime
	var closedBy, closingTxnID sql.NullString

	err := row.Scan(
		&p.PeriodID,
		&p.OrganizationID,
		&p.Name,
		&p.StartDate,
		&p.EndDate,
		&p.Status,
		&closedAt,
		&closedBy,
		&closingTxnID,
		&p.CreatedAt,
		&p.CreatedBy,
		&p.LastUpdatedAt,
		&p.LastUpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	if closedAt.Valid {
		t := closedAt.Time
		p.ClosedAt = &t
	}
	p.ClosedBy = closedBy.String
	if closingTxnID.Valid {
		p.ClosingTransactionID = &closingTxnID.String
	}
	return &p, nil
}

// SavePeriod inserts a new fiscal period. The table carries an EXCLUDE
// constraint on the date range, so an overlap that slipped past the service
// check still fails, as ErrConflict.
func (r *PgxFiscalPeriodRepository) SavePeriod(ctx context.Context, period domain.FiscalPeriod) error {
	query := `
		INSERT INTO fiscal_periods (` + periodColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
	`
	_, err := r.Pool.Exec(ctx, query,
		period.PeriodID,
		period.OrganizationID,
		period.Name,
		period.StartDate,
		period.EndDate,
		string(period.Status),
		period.ClosedAt,
		period.ClosedBy,
		period.ClosingTransactionID,
		period.CreatedAt,
		period.CreatedBy,
		period.LastUpdatedAt,
		period.LastUpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: period %s already exists", apperrors.ErrDuplicate, period.PeriodID)
		}
		if isExclusionViolation(err) {
			return fmt.Errorf("%w: period overlaps an existing period", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to insert period %s: %w", period.PeriodID, err)
	}
	return nil
}

// FindPeriodByID retrieves a single fiscal period.
func (r *PgxFiscalPeriodRepository) FindPeriodByID(ctx context.Context, periodID string) (*domain.FiscalPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM fiscal_periods WHERE period_id = $1;`
	period, err := scanPeriod(r.Pool.QueryRow(ctx, query, periodID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: fiscal period %s", apperrors.ErrNotFound, periodID)
		}
		return nil, fmt.Errorf("failed to find fiscal period %s: %w", periodID, err)
	}
	return period, nil
}

// ListPeriods returns the organization's fiscal periods, oldest first.
func (r *PgxFiscalPeriodRepository) ListPeriods(ctx context.Context, organizationID string) ([]domain.FiscalPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM fiscal_periods WHERE organization_id = $1 ORDER BY start_date;`
	rows, err := r.Pool.Query(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fiscal periods: %w", err)
	}
	defer rows.Close()

	periods := []domain.FiscalPeriod{}
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan period row: %w", err)
		}
		periods = append(periods, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating period rows: %w", err)
	}
	return periods, nil
}

// FindOverlappingPeriod returns any period of the organization whose
// [start, end) range intersects the given one.
func (r *PgxFiscalPeriodRepository) FindOverlappingPeriod(ctx context.Context, organizationID string, start, end time.Time) (*domain.FiscalPeriod, error) {
	query := `
		SELECT ` + periodColumns + `
		FROM fiscal_periods
		WHERE organization_id = $1 AND start_date < $3 AND end_date > $2
		LIMIT 1;
	`
	period, err := scanPeriod(r.Pool.QueryRow(ctx, query, organizationID, start, end))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: no overlapping period", apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find overlapping period: %w", err)
	}
	return period, nil
}

// FindClosedPeriodContaining returns the CLOSED period covering the instant.
func (r *PgxFiscalPeriodRepository) FindClosedPeriodContaining(ctx context.Context, organizationID string, at time.Time) (*domain.FiscalPeriod, error) {
	query := `
		SELECT ` + periodColumns + `
		FROM fiscal_periods
		WHERE organization_id = $1 AND status = 'CLOSED' AND start_date <= $2 AND end_date > $2
		LIMIT 1;
	`
	period, err := scanPeriod(r.Pool.QueryRow(ctx, query, organizationID, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: no closed period contains %s", apperrors.ErrNotFound, at.Format(time.RFC3339))
		}
		return nil, fmt.Errorf("failed to find closed period: %w", err)
	}
	return period, nil
}

// summarize reduces per-account activity to revenue/expense totals. Revenue
// accounts grow on the credit side, expense accounts on the debit side.
func summarize(periodID string, activity map[string]portsrepo.AccountActivity, accountTypes map[string]domain.AccountType) *domain.PeriodSummary {
	summary := &domain.PeriodSummary{PeriodID: periodID}
	for accountID, act := range activity {
		switch accountTypes[accountID] {
		case domain.Revenue:
			summary.TotalRevenue = summary.TotalRevenue.Add(act.Credits.Sub(act.Debits))
		case domain.Expense:
			summary.TotalExpense = summary.TotalExpense.Add(act.Debits.Sub(act.Credits))
		}
	}
	summary.NetIncome = summary.TotalRevenue.Sub(summary.TotalExpense)
	return summary
}

// ComputeSummary totals the period's non-voided revenue and expense activity.
func (r *PgxFiscalPeriodRepository) ComputeSummary(ctx context.Context, period domain.FiscalPeriod, accountTypes map[string]domain.AccountType) (*domain.PeriodSummary, error) {
	activity, err := r.ledger.SumAccountActivityInRange(ctx, period.OrganizationID, period.StartDate, period.EndDate)
	if err != nil {
		return nil, err
	}
	return summarize(period.PeriodID, activity, accountTypes), nil
}

// ClosePeriod executes the close as one database transaction: mark the period
// CLOSED (conditioned on OPEN, so a raced double close fails with
// ErrConflict), total the period's activity, and post the single closing
// transaction that moves net income from the income-summary account into the
// fund-balance account. A period that netted to zero closes without a
// posting.
func (r *PgxFiscalPeriodRepository) ClosePeriod(ctx context.Context, period domain.FiscalPeriod, accountTypes map[string]domain.AccountType, fundAccountID, summaryAccountID, closedBy string) (*domain.FiscalPeriod, *domain.Transaction, error) {
	tx, err := r.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer r.Rollback(ctx, tx)

	now := time.Now().UTC()
	cmdTag, err := tx.Exec(ctx, `
		UPDATE fiscal_periods
		SET status = 'CLOSED', closed_at = $2, closed_by = $3, last_updated_at = $2, last_updated_by = $3
		WHERE period_id = $1 AND status = 'OPEN';
	`, period.PeriodID, now, closedBy)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to close period %s: %w", period.PeriodID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return nil, nil, fmt.Errorf("%w: period %s is not open", apperrors.ErrConflict, period.PeriodID)
	}

	activity, err := r.ledger.SumAccountActivityInRangeInTx(ctx, tx, period.OrganizationID, period.StartDate, period.EndDate)
	if err != nil {
		return nil, nil, err
	}
	summary := summarize(period.PeriodID, activity, accountTypes)

	var closingTxn *domain.Transaction
	if !summary.NetIncome.IsZero() {
		// Positive net income moves from the income-summary account into
		// fund balance; a deficit moves the other way.
		amount := summary.NetIncome
		debitAccountID, creditAccountID := summaryAccountID, fundAccountID
		if amount.IsNegative() {
			amount = amount.Neg()
			debitAccountID, creditAccountID = fundAccountID, summaryAccountID
		}

		txn := domain.Transaction{
			TransactionID:   uuid.NewString(),
			OrganizationID:  period.OrganizationID,
			DebitAccountID:  debitAccountID,
			CreditAccountID: creditAccountID,
			Amount:          amount,
			TransactionDate: period.EndDate,
			Type:            domain.TxnClosing,
			Description:     fmt.Sprintf("Closing entry for period %s", period.Name),
			AuditFields: domain.AuditFields{
				CreatedAt:     now,
				CreatedBy:     closedBy,
				LastUpdatedAt: now,
				LastUpdatedBy: closedBy,
			},
		}

		debitDelta, err := accounting.DebitDelta(domain.Equity, amount)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrInternal, err)
		}
		creditDelta, err := accounting.CreditDelta(domain.Equity, amount)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrInternal, err)
		}
		deltas := map[string]decimal.Decimal{
			debitAccountID:  debitDelta,
			creditAccountID: creditDelta,
		}

		if err := r.ledger.SaveTransactionInTx(ctx, tx, txn, deltas); err != nil {
			return nil, nil, err
		}

		_, err = tx.Exec(ctx, `
			UPDATE fiscal_periods SET closing_transaction_id = $2 WHERE period_id = $1;
		`, period.PeriodID, txn.TransactionID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to link closing transaction: %w", err)
		}
		closingTxn = &txn
	}

	if err := r.Commit(ctx, tx); err != nil {
		return nil, nil, err
	}

	closed := period
	closed.Status = domain.PeriodClosed
	closed.ClosedAt = &now
	closed.ClosedBy = closedBy
	closed.LastUpdatedAt = now
	closed.LastUpdatedBy = closedBy
	if closingTxn != nil {
		closed.ClosingTransactionID = &closingTxn.TransactionID
	}
	return &closed, closingTxn, nil
}
