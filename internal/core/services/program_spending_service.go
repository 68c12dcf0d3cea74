package services

import (
	"context"
	"fmt"
	"time"

	"github.com/opennpo/nonprofit_books_app/internal/apperrors"
	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	portsrepo "github.com/opennpo/nonprofit_books_app/internal/core/ports/repositories"
	portssvc "github.com/opennpo/nonprofit_books_app/internal/core/ports/services"
	"github.com/opennpo/nonprofit_books_app/internal/dto"
)

// ProgramSpendingService manages versioned program-spending records, which
// document how program funds were applied against expense accounts.
type ProgramSpendingService struct {
	store      *VersionStore[domain.ProgramSpending]
	accountSvc portssvc.AccountSvcFacade
}

// NewProgramSpendingService creates a new ProgramSpendingService.
func NewProgramSpendingService(versionRepo portsrepo.VersionRepository, accountSvc portssvc.AccountSvcFacade) *ProgramSpendingService {
	return &ProgramSpendingService{
		store:      NewVersionStore[domain.ProgramSpending](domain.EntityProgramSpending, versionRepo),
		accountSvc: accountSvc,
	}
}

// CreateProgramSpending records a new program-spending entry.
func (s *ProgramSpendingService) CreateProgramSpending(ctx context.Context, req dto.CreateProgramSpendingRequest, actor domain.Actor) (*domain.Versioned[domain.ProgramSpending], error) {
	if !actor.Can(domain.PermManageEntities) {
		return nil, fmt.Errorf("%w: role %s cannot manage program spending", apperrors.ErrForbidden, actor.Role)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: spending amount must be positive, got %s", apperrors.ErrValidation, req.Amount.String())
	}

	account, err := s.accountSvc.GetAccountByID(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("%w: account %s not found", apperrors.ErrValidation, req.AccountID)
	}
	if account.Entity.OrganizationID != req.OrganizationID {
		return nil, fmt.Errorf("%w: account belongs to a different organization", apperrors.ErrValidation)
	}
	if account.Entity.AccountType != domain.Expense {
		return nil, fmt.Errorf("%w: program spending must reference an EXPENSE account", apperrors.ErrValidation)
	}

	spending := domain.ProgramSpending{
		OrganizationID: req.OrganizationID,
		ProgramName:    req.ProgramName,
		AccountID:      req.AccountID,
		Amount:         req.Amount,
		SpentAt:        req.SpentAt.UTC(),
		Notes:          req.Notes,
	}
	return s.store.Create(ctx, "", spending, effectiveOrNow(req.EffectiveAt), actor.UserID)
}

// GetProgramSpendingByID returns the current version of the record.
func (s *ProgramSpendingService) GetProgramSpendingByID(ctx context.Context, spendingID string) (*domain.Versioned[domain.ProgramSpending], error) {
	return s.store.GetCurrent(ctx, spendingID)
}

// ListProgramSpendingByOrganization returns the organization's current
// program-spending records.
func (s *ProgramSpendingService) ListProgramSpendingByOrganization(ctx context.Context, organizationID string) ([]domain.Versioned[domain.ProgramSpending], error) {
	all, err := s.store.ListCurrent(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]domain.Versioned[domain.ProgramSpending], 0, len(all))
	for _, r := range all {
		if r.Entity.OrganizationID == organizationID {
			records = append(records, r)
		}
	}
	return records, nil
}

// UpdateProgramSpending revises the record. Nil request fields are untouched.
func (s *ProgramSpendingService) UpdateProgramSpending(ctx context.Context, spendingID string, req dto.UpdateProgramSpendingRequest, actor domain.Actor) (*domain.Versioned[domain.ProgramSpending], error) {
	if !actor.Can(domain.PermManageEntities) {
		return nil, fmt.Errorf("%w: role %s cannot manage program spending", apperrors.ErrForbidden, actor.Role)
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: spending amount must be positive, got %s", apperrors.ErrValidation, req.Amount.String())
	}

	return s.store.ReviseWithRetry(ctx, spendingID, effectiveOrNow(req.EffectiveAt), actor.UserID, func(r *domain.ProgramSpending) error {
		if req.ProgramName != nil {
			r.ProgramName = *req.ProgramName
		}
		if req.Amount != nil {
			r.Amount = *req.Amount
		}
		if req.Notes != nil {
			r.Notes = *req.Notes
		}
		return nil
	})
}

// GetProgramSpendingAsOf returns the record as the system currently believes
// it was at the given instant.
func (s *ProgramSpendingService) GetProgramSpendingAsOf(ctx context.Context, spendingID string, at time.Time) (*domain.Versioned[domain.ProgramSpending], error) {
	return s.store.GetAsOf(ctx, spendingID, at)
}

// GetProgramSpendingHistory returns the record's full version chain.
func (s *ProgramSpendingService) GetProgramSpendingHistory(ctx context.Context, spendingID string) ([]domain.Versioned[domain.ProgramSpending], error) {
	return s.store.GetHistory(ctx, spendingID)
}

// GetProgramSpendingChanges returns every program-spending version recorded
// in [from, to).
func (s *ProgramSpendingService) GetProgramSpendingChanges(ctx context.Context, from, to time.Time) ([]domain.Versioned[domain.ProgramSpending], error) {
	return s.store.GetChangesInRange(ctx, from, to)
}

// DeleteProgramSpending soft-deletes the record.
func (s *ProgramSpendingService) DeleteProgramSpending(ctx context.Context, spendingID string, actor domain.Actor) error {
	if !actor.Can(domain.PermManageEntities) {
		return fmt.Errorf("%w: role %s cannot manage program spending", apperrors.ErrForbidden, actor.Role)
	}
	return s.store.SoftDelete(ctx, spendingID, actor.UserID)
}
