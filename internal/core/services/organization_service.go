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

// OrganizationService manages versioned organization records.
type OrganizationService struct {
	store *VersionStore[domain.Organization]
}

// NewOrganizationService creates a new OrganizationService.
func NewOrganizationService(versionRepo portsrepo.VersionRepository) *OrganizationService {
	return &OrganizationService{
		store: NewVersionStore[domain.Organization](domain.EntityOrganization, versionRepo),
	}
}

var _ portssvc.OrganizationSvcFacade = (*OrganizationService)(nil)

// CreateOrganization creates version 1 of a new organization.
func (s *OrganizationService) CreateOrganization(ctx context.Context, req dto.CreateOrganizationRequest, actor domain.Actor) (*domain.Versioned[domain.Organization], error) {
	if !actor.Can(domain.PermManageEntities) {
		return nil, fmt.Errorf("%w: role %s cannot manage organizations", apperrors.ErrForbidden, actor.Role)
	}

	org := domain.Organization{
		Name:                   req.Name,
		Mission:                req.Mission,
		Email:                  req.Email,
		TaxID:                  req.TaxID,
		FundBalanceAccountID:   req.FundBalanceAccountID,
		IncomeSummaryAccountID: req.IncomeSummaryAccountID,
	}
	return s.store.Create(ctx, "", org, effectiveOrNow(req.EffectiveAt), actor.UserID)
}

// GetOrganizationByID returns the current version of the organization.
func (s *OrganizationService) GetOrganizationByID(ctx context.Context, organizationID string) (*domain.Versioned[domain.Organization], error) {
	return s.store.GetCurrent(ctx, organizationID)
}

// ListOrganizations returns the current version of every organization.
func (s *OrganizationService) ListOrganizations(ctx context.Context) ([]domain.Versioned[domain.Organization], error) {
	return s.store.ListCurrent(ctx)
}

// UpdateOrganization revises the organization. Nil request fields are left
// untouched.
func (s *OrganizationService) UpdateOrganization(ctx context.Context, organizationID string, req dto.UpdateOrganizationRequest, actor domain.Actor) (*domain.Versioned[domain.Organization], error) {
	if !actor.Can(domain.PermManageEntities) {
		return nil, fmt.Errorf("%w: role %s cannot manage organizations", apperrors.ErrForbidden, actor.Role)
	}

	return s.store.ReviseWithRetry(ctx, organizationID, effectiveOrNow(req.EffectiveAt), actor.UserID, func(org *domain.Organization) error {
		if req.Name != nil {
			org.Name = *req.Name
		}
		if req.Mission != nil {
			org.Mission = *req.Mission
		}
		if req.Email != nil {
			org.Email = *req.Email
		}
		if req.TaxID != nil {
			org.TaxID = *req.TaxID
		}
		if req.FundBalanceAccountID != nil {
			org.FundBalanceAccountID = *req.FundBalanceAccountID
		}
		if req.IncomeSummaryAccountID != nil {
			org.IncomeSummaryAccountID = *req.IncomeSummaryAccountID
		}
		return nil
	})
}

// GetOrganizationAsOf returns the organization as the system currently
// believes it was at the given instant.
func (s *OrganizationService) GetOrganizationAsOf(ctx context.Context, organizationID string, at time.Time) (*domain.Versioned[domain.Organization], error) {
	return s.store.GetAsOf(ctx, organizationID, at)
}

// GetOrganizationHistory returns the organization's full version chain.
func (s *OrganizationService) GetOrganizationHistory(ctx context.Context, organizationID string) ([]domain.Versioned[domain.Organization], error) {
	return s.store.GetHistory(ctx, organizationID)
}

// GetOrganizationChanges returns every organization version recorded in
// [from, to).
func (s *OrganizationService) GetOrganizationChanges(ctx context.Context, from, to time.Time) ([]domain.Versioned[domain.Organization], error) {
	return s.store.GetChangesInRange(ctx, from, to)
}

// DeleteOrganization soft-deletes the organization; history stays queryable.
func (s *OrganizationService) DeleteOrganization(ctx context.Context, organizationID string, actor domain.Actor) error {
	if !actor.Can(domain.PermManageEntities) {
		return fmt.Errorf("%w: role %s cannot manage organizations", apperrors.ErrForbidden, actor.Role)
	}
	return s.store.SoftDelete(ctx, organizationID, actor.UserID)
}
