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

// ContactService manages versioned donor, member, and vendor contacts.
type ContactService struct {
	store  *VersionStore[domain.Contact]
	orgSvc portssvc.OrganizationSvcFacade
}

// NewContactService creates a new ContactService.
func NewContactService(versionRepo portsrepo.VersionRepository, orgSvc portssvc.OrganizationSvcFacade) *ContactService {
	return &ContactService{
		store:  NewVersionStore[domain.Contact](domain.EntityContact, versionRepo),
		orgSvc: orgSvc,
	}
}

// CreateContact creates version 1 of a new contact.
func (s *ContactService) CreateContact(ctx context.Context, req dto.CreateContactRequest, actor domain.Actor) (*domain.Versioned[domain.Contact], error) {
	if !actor.Can(domain.PermManageEntities) {
		return nil, fmt.Errorf("%w: role %s cannot manage contacts", apperrors.ErrForbidden, actor.Role)
	}
	if _, err := s.orgSvc.GetOrganizationByID(ctx, req.OrganizationID); err != nil {
		return nil, fmt.Errorf("%w: organization %s not found", apperrors.ErrValidation, req.OrganizationID)
	}

	contact := domain.Contact{
		OrganizationID: req.OrganizationID,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Phone:          req.Phone,
		Address:        req.Address,
	}
	return s.store.Create(ctx, "", contact, effectiveOrNow(req.EffectiveAt), actor.UserID)
}

// GetContactByID returns the current version of the contact.
func (s *ContactService) GetContactByID(ctx context.Context, contactID string) (*domain.Versioned[domain.Contact], error) {
	return s.store.GetCurrent(ctx, contactID)
}

// ListContactsByOrganization returns the organization's current contacts.
func (s *ContactService) ListContactsByOrganization(ctx context.Context, organizationID string) ([]domain.Versioned[domain.Contact], error) {
	all, err := s.store.ListCurrent(ctx)
	if err != nil {
		return nil, err
	}
	contacts := make([]domain.Versioned[domain.Contact], 0, len(all))
	for _, c := range all {
		if c.Entity.OrganizationID == organizationID {
			contacts = append(contacts, c)
		}
	}
	return contacts, nil
}

// UpdateContact revises the contact. Nil request fields are left untouched.
func (s *ContactService) UpdateContact(ctx context.Context, contactID string, req dto.UpdateContactRequest, actor domain.Actor) (*domain.Versioned[domain.Contact], error) {
	if !actor.Can(domain.PermManageEntities) {
		return nil, fmt.Errorf("%w: role %s cannot manage contacts", apperrors.ErrForbidden, actor.Role)
	}

	return s.store.ReviseWithRetry(ctx, contactID, effectiveOrNow(req.EffectiveAt), actor.UserID, func(c *domain.Contact) error {
		if req.FirstName != nil {
			c.FirstName = *req.FirstName
		}
		if req.LastName != nil {
			c.LastName = *req.LastName
		}
		if req.Email != nil {
			c.Email = *req.Email
		}
		if req.Phone != nil {
			c.Phone = *req.Phone
		}
		if req.Address != nil {
			c.Address = *req.Address
		}
		return nil
	})
}

// GetContactAsOf returns the contact as the system currently believes it was
// at the given instant.
func (s *ContactService) GetContactAsOf(ctx context.Context, contactID string, at time.Time) (*domain.Versioned[domain.Contact], error) {
	return s.store.GetAsOf(ctx, contactID, at)
}

// GetContactHistory returns the contact's full version chain.
func (s *ContactService) GetContactHistory(ctx context.Context, contactID string) ([]domain.Versioned[domain.Contact], error) {
	return s.store.GetHistory(ctx, contactID)
}

// GetContactChanges returns every contact version recorded in [from, to).
func (s *ContactService) GetContactChanges(ctx context.Context, from, to time.Time) ([]domain.Versioned[domain.Contact], error) {
	return s.store.GetChangesInRange(ctx, from, to)
}

// DeleteContact soft-deletes the contact.
func (s *ContactService) DeleteContact(ctx context.Context, contactID string, actor domain.Actor) error {
	if !actor.Can(domain.PermManageEntities) {
		return fmt.Errorf("%w: role %s cannot manage contacts", apperrors.ErrForbidden, actor.Role)
	}
	return s.store.SoftDelete(ctx, contactID, actor.UserID)
}
