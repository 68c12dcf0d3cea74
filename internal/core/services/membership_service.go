package services

import (
	"context"
	"fmt"
	"time"

	"github.com/opennpo/nonprofit_books_app/internal/apperrors"
	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	portsrepo "github.com/opennpo/nonprofit_books_app/internal/core/ports/repositories"
	"github.com/opennpo/nonprofit_books_app/internal/dto"
)

// MembershipService manages versioned membership enrollments.
type MembershipService struct {
	store      *VersionStore[domain.Membership]
	contactSvc *ContactService
}

// NewMembershipService creates a new MembershipService.
func NewMembershipService(versionRepo portsrepo.VersionRepository, contactSvc *ContactService) *MembershipService {
	return &MembershipService{
		store:      NewVersionStore[domain.Membership](domain.EntityMembership, versionRepo),
		contactSvc: contactSvc,
	}
}

func validMembershipLevel(level domain.MembershipLevel) bool {
	switch level {
	case domain.LevelIndividual, domain.LevelHousehold, domain.LevelSustaining, domain.LevelLifetime:
		return true
	}
	return false
}

// CreateMembership enrolls a contact as a member.
func (s *MembershipService) CreateMembership(ctx context.Context, req dto.CreateMembershipRequest, actor domain.Actor) (*domain.Versioned[domain.Membership], error) {
	if !actor.Can(domain.PermManageEntities) {
		return nil, fmt.Errorf("%w: role %s cannot manage memberships", apperrors.ErrForbidden, actor.Role)
	}
	if !validMembershipLevel(req.Level) {
		return nil, fmt.Errorf("%w: unknown membership level %q", apperrors.ErrValidation, req.Level)
	}
	if req.EndDate != nil && !req.EndDate.After(req.StartDate) {
		return nil, fmt.Errorf("%w: membership end must be after start", apperrors.ErrValidation)
	}

	contact, err := s.contactSvc.GetContactByID(ctx, req.ContactID)
	if err != nil {
		return nil, fmt.Errorf("%w: contact %s not found", apperrors.ErrValidation, req.ContactID)
	}
	if contact.Entity.OrganizationID != req.OrganizationID {
		return nil, fmt.Errorf("%w: contact belongs to a different organization", apperrors.ErrValidation)
	}

	membership := domain.Membership{
		OrganizationID: req.OrganizationID,
		ContactID:      req.ContactID,
		Level:          req.Level,
		StartDate:      req.StartDate.UTC(),
		EndDate:        req.EndDate,
	}
	return s.store.Create(ctx, "", membership, effectiveOrNow(req.EffectiveAt), actor.UserID)
}

// GetMembershipByID returns the current version of the membership.
func (s *MembershipService) GetMembershipByID(ctx context.Context, membershipID string) (*domain.Versioned[domain.Membership], error) {
	return s.store.GetCurrent(ctx, membershipID)
}

// ListMembershipsByOrganization returns the organization's current memberships.
func (s *MembershipService) ListMembershipsByOrganization(ctx context.Context, organizationID string) ([]domain.Versioned[domain.Membership], error) {
	all, err := s.store.ListCurrent(ctx)
	if err != nil {
		return nil, err
	}
	memberships := make([]domain.Versioned[domain.Membership], 0, len(all))
	for _, m := range all {
		if m.Entity.OrganizationID == organizationID {
			memberships = append(memberships, m)
		}
	}
	return memberships, nil
}

// UpdateMembership revises the membership. Nil request fields are untouched.
func (s *MembershipService) UpdateMembership(ctx context.Context, membershipID string, req dto.UpdateMembershipRequest, actor domain.Actor) (*domain.Versioned[domain.Membership], error) {
	if !actor.Can(domain.PermManageEntities) {
		return nil, fmt.Errorf("%w: role %s cannot manage memberships", apperrors.ErrForbidden, actor.Role)
	}
	if req.Level != nil && !validMembershipLevel(*req.Level) {
		return nil, fmt.Errorf("%w: unknown membership level %q", apperrors.ErrValidation, *req.Level)
	}

	return s.store.ReviseWithRetry(ctx, membershipID, effectiveOrNow(req.EffectiveAt), actor.UserID, func(m *domain.Membership) error {
		if req.Level != nil {
			m.Level = *req.Level
		}
		if req.EndDate != nil {
			if !req.EndDate.After(m.StartDate) {
				return fmt.Errorf("%w: membership end must be after start", apperrors.ErrValidation)
			}
			m.EndDate = req.EndDate
		}
		return nil
	})
}

// GetMembershipAsOf returns the membership as the system currently believes
// it was at the given instant.
func (s *MembershipService) GetMembershipAsOf(ctx context.Context, membershipID string, at time.Time) (*domain.Versioned[domain.Membership], error) {
	return s.store.GetAsOf(ctx, membershipID, at)
}

// GetMembershipHistory returns the membership's full version chain.
func (s *MembershipService) GetMembershipHistory(ctx context.Context, membershipID string) ([]domain.Versioned[domain.Membership], error) {
	return s.store.GetHistory(ctx, membershipID)
}

// GetMembershipChanges returns every membership version recorded in [from, to).
func (s *MembershipService) GetMembershipChanges(ctx context.Context, from, to time.Time) ([]domain.Versioned[domain.Membership], error) {
	return s.store.GetChangesInRange(ctx, from, to)
}

// DeleteMembership soft-deletes the membership.
func (s *MembershipService) DeleteMembership(ctx context.Context, membershipID string, actor domain.Actor) error {
	if !actor.Can(domain.PermManageEntities) {
		return fmt.Errorf("%w: role %s cannot manage memberships", apperrors.ErrForbidden, actor.Role)
	}
	return s.store.SoftDelete(ctx, membershipID, actor.UserID)
}
