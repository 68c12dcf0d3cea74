package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opennpo/nonprofit_books_app/internal/apperrors"
	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	portsrepo "github.com/opennpo/nonprofit_books_app/internal/core/ports/repositories"
	portssvc "github.com/opennpo/nonprofit_books_app/internal/core/ports/services"
	"github.com/opennpo/nonprofit_books_app/internal/dto"
	"github.com/opennpo/nonprofit_books_app/internal/middleware"
)

// FiscalPeriodService opens and closes fiscal periods. Close sweeps the
// period's revenue and expense activity into the organization's fund-balance
// account through a single closing transaction and locks the period.
type FiscalPeriodService struct {
	periodRepo portsrepo.FiscalPeriodRepository
	accountSvc portssvc.AccountSvcFacade
	orgSvc     portssvc.OrganizationSvcFacade
}

// NewFiscalPeriodService creates a new FiscalPeriodService.
func NewFiscalPeriodService(periodRepo portsrepo.FiscalPeriodRepository, accountSvc portssvc.AccountSvcFacade, orgSvc portssvc.OrganizationSvcFacade) *FiscalPeriodService {
	return &FiscalPeriodService{
		periodRepo: periodRepo,
		accountSvc: accountSvc,
		orgSvc:     orgSvc,
	}
}

// OpenPeriod creates a new OPEN fiscal period. Periods of one organization
// may never overlap, regardless of status.
func (s *FiscalPeriodService) OpenPeriod(ctx context.Context, req dto.CreateFiscalPeriodRequest, actor domain.Actor) (*domain.FiscalPeriod, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if !actor.Can(domain.PermClosePeriod) {
		return nil, fmt.Errorf("%w: role %s cannot manage fiscal periods", apperrors.ErrForbidden, actor.Role)
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, fmt.Errorf("%w: period end must be after start", apperrors.ErrValidation)
	}

	overlapping, err := s.periodRepo.FindOverlappingPeriod(ctx, req.OrganizationID, req.StartDate.UTC(), req.EndDate.UTC())
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if overlapping != nil {
		return nil, fmt.Errorf("%w: period overlaps existing period %s", apperrors.ErrConflict, overlapping.Name)
	}

	now := time.Now().UTC()
	period := domain.FiscalPeriod{
		PeriodID:       uuid.NewString(),
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		StartDate:      req.StartDate.UTC(),
		EndDate:        req.EndDate.UTC(),
		Status:         domain.PeriodOpen,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     actor.UserID,
			LastUpdatedAt: now,
			LastUpdatedBy: actor.UserID,
		},
	}

	if err := s.periodRepo.SavePeriod(ctx, period); err != nil {
		logger.Error("Failed to save fiscal period", slog.String("period_id", period.PeriodID), slog.String("error", err.Error()))
		return nil, err
	}

	logger.Info("Fiscal period opened", slog.String("period_id", period.PeriodID), slog.String("name", period.Name))
	return &period, nil
}

// GetPeriodByID returns a single fiscal period.
func (s *FiscalPeriodService) GetPeriodByID(ctx context.Context, periodID string) (*domain.FiscalPeriod, error) {
	return s.periodRepo.FindPeriodByID(ctx, periodID)
}

// ListPeriods returns the organization's fiscal periods.
func (s *FiscalPeriodService) ListPeriods(ctx context.Context, organizationID string) ([]domain.FiscalPeriod, error) {
	return s.periodRepo.ListPeriods(ctx, organizationID)
}

// accountTypesFor maps every account of the organization to its type, for
// classifying transaction legs into revenue and expense activity.
func (s *FiscalPeriodService) accountTypesFor(ctx context.Context, organizationID string) (map[string]domain.AccountType, error) {
	accounts, err := s.accountSvc.ListAccountsByOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	types := make(map[string]domain.AccountType, len(accounts))
	for _, acc := range accounts {
		types[acc.EntityID] = acc.Entity.AccountType
	}
	return types, nil
}

// GetSummary totals the period's non-voided revenue and expense activity.
func (s *FiscalPeriodService) GetSummary(ctx context.Context, periodID string) (*domain.PeriodSummary, error) {
	period, err := s.periodRepo.FindPeriodByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	types, err := s.accountTypesFor(ctx, period.OrganizationID)
	if err != nil {
		return nil, err
	}
	return s.periodRepo.ComputeSummary(ctx, *period, types)
}

// ExecuteClose closes an OPEN period: the period's revenue/expense totals are
// swept into the fund-balance account via one closing transaction and the
// period is marked CLOSED, all in a single database transaction. Closing an
// already closed period fails with apperrors.ErrConflict.
func (s *FiscalPeriodService) ExecuteClose(ctx context.Context, periodID string, actor domain.Actor) (*domain.FiscalPeriod, *domain.Transaction, *domain.PeriodSummary, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if !actor.Can(domain.PermClosePeriod) {
		return nil, nil, nil, fmt.Errorf("%w: role %s cannot close fiscal periods", apperrors.ErrForbidden, actor.Role)
	}

	period, err := s.periodRepo.FindPeriodByID(ctx, periodID)
	if err != nil {
		return nil, nil, nil, err
	}
	if period.Status == domain.PeriodClosed {
		return nil, nil, nil, fmt.Errorf("%w: period %s is already closed", apperrors.ErrConflict, periodID)
	}

	org, err := s.orgSvc.GetOrganizationByID(ctx, period.OrganizationID)
	if err != nil {
		return nil, nil, nil, err
	}
	fundAccountID := org.Entity.FundBalanceAccountID
	summaryAccountID := org.Entity.IncomeSummaryAccountID
	if fundAccountID == "" || summaryAccountID == "" {
		return nil, nil, nil, fmt.Errorf("%w: organization %s has no closing accounts configured", apperrors.ErrStateInvalid, period.OrganizationID)
	}

	types, err := s.accountTypesFor(ctx, period.OrganizationID)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, accountID := range []string{fundAccountID, summaryAccountID} {
		t, ok := types[accountID]
		if !ok {
			return nil, nil, nil, fmt.Errorf("%w: closing account %s not found", apperrors.ErrStateInvalid, accountID)
		}
		if t != domain.Equity {
			return nil, nil, nil, fmt.Errorf("%w: closing account %s must be an EQUITY account", apperrors.ErrStateInvalid, accountID)
		}
	}

	closed, closingTxn, err := s.periodRepo.ClosePeriod(ctx, *period, types, fundAccountID, summaryAccountID, actor.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			logger.Warn("Concurrent period close detected", slog.String("period_id", periodID))
		} else {
			logger.Error("Failed to close fiscal period", slog.String("period_id", periodID), slog.String("error", err.Error()))
		}
		return nil, nil, nil, err
	}

	summary, err := s.periodRepo.ComputeSummary(ctx, *closed, types)
	if err != nil {
		return nil, nil, nil, err
	}

	logger.Info("Fiscal period closed",
		slog.String("period_id", periodID),
		slog.String("net_income", summary.NetIncome.String()),
		slog.Bool("closing_transaction_posted", closingTxn != nil),
	)
	return closed, closingTxn, summary, nil
}
