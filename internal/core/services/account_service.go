package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opennpo/nonprofit_books_app/internal/apperrors"
	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	portsrepo "github.com/opennpo/nonprofit_books_app/internal/core/ports/repositories"
	portssvc "github.com/opennpo/nonprofit_books_app/internal/core/ports/services"
	"github.com/opennpo/nonprofit_books_app/internal/dto"
	"github.com/opennpo/nonprofit_books_app/internal/middleware"
	"github.com/shopspring/decimal"
)

// AccountService manages the chart of accounts. Account facts are versioned
// through the bitemporal store; the balance is derived state owned by the
// ledger and only read through here.
type AccountService struct {
	store      *VersionStore[domain.Account]
	ledgerRepo portsrepo.LedgerRepository
}

// NewAccountService creates a new AccountService.
func NewAccountService(versionRepo portsrepo.VersionRepository, ledgerRepo portsrepo.LedgerRepository) *AccountService {
	return &AccountService{
		store:      NewVersionStore[domain.Account](domain.EntityAccount, versionRepo),
		ledgerRepo: ledgerRepo,
	}
}

// Ensure AccountService implements the facade other services depend on.
var _ portssvc.AccountSvcFacade = (*AccountService)(nil)

func effectiveOrNow(effectiveAt *time.Time) time.Time {
	if effectiveAt != nil {
		return *effectiveAt
	}
	return time.Now().UTC()
}

// CreateAccount creates version 1 of a new account and its zero balance row.
func (s *AccountService) CreateAccount(ctx context.Context, req dto.CreateAccountRequest, actor domain.Actor) (*domain.Versioned[domain.Account], error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if !actor.Can(domain.PermManageAccounts) {
		return nil, fmt.Errorf("%w: role %s cannot manage accounts", apperrors.ErrForbidden, actor.Role)
	}
	if !domain.ValidAccountType(req.AccountType) {
		return nil, fmt.Errorf("%w: unknown account type %q", apperrors.ErrValidation, req.AccountType)
	}

	parentID := ""
	if req.ParentAccountID != nil && *req.ParentAccountID != "" {
		parent, err := s.store.GetCurrent(ctx, *req.ParentAccountID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("%w: parent account %s not found", apperrors.ErrValidation, *req.ParentAccountID)
			}
			return nil, err
		}
		if parent.Entity.OrganizationID != req.OrganizationID {
			return nil, fmt.Errorf("%w: parent account belongs to a different organization", apperrors.ErrValidation)
		}
		if !parent.Entity.IsActive {
			return nil, fmt.Errorf("%w: parent account %s is inactive", apperrors.ErrValidation, *req.ParentAccountID)
		}
		parentID = *req.ParentAccountID
	}

	account := domain.Account{
		OrganizationID:  req.OrganizationID,
		Code:            req.Code,
		Name:            req.Name,
		AccountType:     req.AccountType,
		ParentAccountID: parentID,
		Description:     req.Description,
		IsActive:        true, // Default to active on creation
	}

	created, err := s.store.Create(ctx, "", account, effectiveOrNow(req.EffectiveAt), actor.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.ledgerRepo.InitBalance(ctx, created.EntityID); err != nil {
		logger.Error("Failed to initialize account balance", slog.String("account_id", created.EntityID), slog.String("error", err.Error()))
		return nil, err
	}

	logger.Info("Account created", slog.String("account_id", created.EntityID), slog.String("code", account.Code))
	return created, nil
}

// GetAccountByID returns the current version of the account.
func (s *AccountService) GetAccountByID(ctx context.Context, accountID string) (*domain.Versioned[domain.Account], error) {
	return s.store.GetCurrent(ctx, accountID)
}

// GetAccountsByIDs batch-fetches current account versions. Missing IDs are
// absent from the map rather than an error.
func (s *AccountService) GetAccountsByIDs(ctx context.Context, accountIDs []string) (map[string]domain.Versioned[domain.Account], error) {
	out := make(map[string]domain.Versioned[domain.Account], len(accountIDs))
	for _, id := range accountIDs {
		if _, seen := out[id]; seen {
			continue
		}
		acc, err := s.store.GetCurrent(ctx, id)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out[id] = *acc
	}
	return out, nil
}

// ListAccountsByOrganization returns every current, non-deleted account of the
// organization, active and inactive alike.
func (s *AccountService) ListAccountsByOrganization(ctx context.Context, organizationID string) ([]domain.Versioned[domain.Account], error) {
	all, err := s.store.ListCurrent(ctx)
	if err != nil {
		return nil, err
	}
	accounts := make([]domain.Versioned[domain.Account], 0, len(all))
	for _, acc := range all {
		if acc.Entity.OrganizationID == organizationID {
			accounts = append(accounts, acc)
		}
	}
	return accounts, nil
}

// GetAccountAsOf returns the account as the system currently believes it was
// at the given instant.
func (s *AccountService) GetAccountAsOf(ctx context.Context, accountID string, at time.Time) (*domain.Versioned[domain.Account], error) {
	return s.store.GetAsOf(ctx, accountID, at)
}

// GetAccountHistory returns the account's full version chain.
func (s *AccountService) GetAccountHistory(ctx context.Context, accountID string) ([]domain.Versioned[domain.Account], error) {
	return s.store.GetHistory(ctx, accountID)
}

// GetAccountChanges returns every account version recorded in [from, to).
func (s *AccountService) GetAccountChanges(ctx context.Context, from, to time.Time) ([]domain.Versioned[domain.Account], error) {
	return s.store.GetChangesInRange(ctx, from, to)
}

// GetTrialBalance returns every current account of the organization together
// with its ledger balance. Accounts without a balance row report zero.
func (s *AccountService) GetTrialBalance(ctx context.Context, organizationID string) ([]domain.Versioned[domain.Account], map[string]decimal.Decimal, error) {
	accounts, err := s.ListAccountsByOrganization(ctx, organizationID)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]string, len(accounts))
	for i, acc := range accounts {
		ids[i] = acc.EntityID
	}
	balances, err := s.ledgerRepo.FindBalances(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	for _, id := range ids {
		if _, ok := balances[id]; !ok {
			balances[id] = decimal.Zero
		}
	}
	return accounts, balances, nil
}

// GetBalance returns the live ledger balance of the account.
func (s *AccountService) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	if _, err := s.store.GetCurrent(ctx, accountID); err != nil {
		return decimal.Zero, err
	}
	return s.ledgerRepo.FindBalance(ctx, accountID)
}

// UpdateAccount revises the descriptive fields of an account. The account
// type is fixed at creation and never revised.
func (s *AccountService) UpdateAccount(ctx context.Context, accountID string, req dto.UpdateAccountRequest, actor domain.Actor) (*domain.Versioned[domain.Account], error) {
	if !actor.Can(domain.PermManageAccounts) {
		return nil, fmt.Errorf("%w: role %s cannot manage accounts", apperrors.ErrForbidden, actor.Role)
	}

	return s.store.ReviseWithRetry(ctx, accountID, effectiveOrNow(req.EffectiveAt), actor.UserID, func(acc *domain.Account) error {
		if req.Code != nil {
			acc.Code = *req.Code
		}
		if req.Name != nil {
			acc.Name = *req.Name
		}
		if req.Description != nil {
			acc.Description = *req.Description
		}
		return nil
	})
}

// ReparentAccount moves the account under a new parent, rejecting moves that
// would create a cycle in the hierarchy.
func (s *AccountService) ReparentAccount(ctx context.Context, accountID string, req dto.ReparentAccountRequest, actor domain.Actor) (*domain.Versioned[domain.Account], error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if !actor.Can(domain.PermManageAccounts) {
		return nil, fmt.Errorf("%w: role %s cannot manage accounts", apperrors.ErrForbidden, actor.Role)
	}

	account, err := s.store.GetCurrent(ctx, accountID)
	if err != nil {
		return nil, err
	}

	newParentID := ""
	if req.ParentAccountID != nil && *req.ParentAccountID != "" {
		newParentID = *req.ParentAccountID
		if newParentID == accountID {
			return nil, fmt.Errorf("%w: account cannot be its own parent", apperrors.ErrValidation)
		}
		parent, err := s.store.GetCurrent(ctx, newParentID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("%w: parent account %s not found", apperrors.ErrValidation, newParentID)
			}
			return nil, err
		}
		if parent.Entity.OrganizationID != account.Entity.OrganizationID {
			return nil, fmt.Errorf("%w: parent account belongs to a different organization", apperrors.ErrValidation)
		}
		if !parent.Entity.IsActive {
			return nil, fmt.Errorf("%w: parent account %s is inactive", apperrors.ErrValidation, newParentID)
		}
		if err := s.checkNoCycle(ctx, accountID, newParentID); err != nil {
			return nil, err
		}
	}

	revised, err := s.store.Revise(ctx, accountID, effectiveOrNow(req.EffectiveAt), actor.UserID, func(acc *domain.Account) error {
		acc.ParentAccountID = newParentID
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Account reparented", slog.String("account_id", accountID), slog.String("parent_account_id", newParentID))
	return revised, nil
}

// checkNoCycle walks the ancestor chain from candidateParent to a root and
// fails if accountID appears on the way.
func (s *AccountService) checkNoCycle(ctx context.Context, accountID, candidateParentID string) error {
	seen := map[string]struct{}{accountID: {}}
	cursor := candidateParentID
	for cursor != "" {
		if _, ok := seen[cursor]; ok {
			return fmt.Errorf("%w: moving account %s under %s would create a cycle", apperrors.ErrValidation, accountID, candidateParentID)
		}
		seen[cursor] = struct{}{}
		ancestor, err := s.store.GetCurrent(ctx, cursor)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil
			}
			return err
		}
		cursor = ancestor.Entity.ParentAccountID
	}
	return nil
}

// DeactivateAccount marks the account inactive. An account with active
// children cannot be deactivated.
func (s *AccountService) DeactivateAccount(ctx context.Context, accountID string, actor domain.Actor) (*domain.Versioned[domain.Account], error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if !actor.Can(domain.PermManageAccounts) {
		return nil, fmt.Errorf("%w: role %s cannot manage accounts", apperrors.ErrForbidden, actor.Role)
	}

	account, err := s.store.GetCurrent(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.Entity.IsActive {
		return nil, fmt.Errorf("%w: account %s is already inactive", apperrors.ErrValidation, accountID)
	}

	children, err := s.activeChildren(ctx, account.Entity.OrganizationID, accountID)
	if err != nil {
		return nil, err
	}
	if len(children) > 0 {
		return nil, fmt.Errorf("%w: account %s has %d active child accounts", apperrors.ErrStateInvalid, accountID, len(children))
	}

	revised, err := s.store.Revise(ctx, accountID, time.Now().UTC(), actor.UserID, func(acc *domain.Account) error {
		acc.IsActive = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Account deactivated", slog.String("account_id", accountID))
	return revised, nil
}

// ActivateAccount marks the account active again. The parent, when set, must
// itself be active.
func (s *AccountService) ActivateAccount(ctx context.Context, accountID string, actor domain.Actor) (*domain.Versioned[domain.Account], error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if !actor.Can(domain.PermManageAccounts) {
		return nil, fmt.Errorf("%w: role %s cannot manage accounts", apperrors.ErrForbidden, actor.Role)
	}

	account, err := s.store.GetCurrent(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Entity.IsActive {
		return nil, fmt.Errorf("%w: account %s is already active", apperrors.ErrValidation, accountID)
	}

	if account.Entity.ParentAccountID != "" {
		parent, err := s.store.GetCurrent(ctx, account.Entity.ParentAccountID)
		if err != nil {
			return nil, err
		}
		if !parent.Entity.IsActive {
			return nil, fmt.Errorf("%w: parent account %s is inactive", apperrors.ErrStateInvalid, account.Entity.ParentAccountID)
		}
	}

	revised, err := s.store.Revise(ctx, accountID, time.Now().UTC(), actor.UserID, func(acc *domain.Account) error {
		acc.IsActive = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Account activated", slog.String("account_id", accountID))
	return revised, nil
}

// DeleteAccount soft-deletes the account. It must be inactive, carry a zero
// balance, and have no remaining children.
func (s *AccountService) DeleteAccount(ctx context.Context, accountID string, actor domain.Actor) error {
	logger := middleware.GetLoggerFromCtx(ctx)

	if !actor.Can(domain.PermManageAccounts) {
		return fmt.Errorf("%w: role %s cannot manage accounts", apperrors.ErrForbidden, actor.Role)
	}

	account, err := s.store.GetCurrent(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Entity.IsActive {
		return fmt.Errorf("%w: account %s must be deactivated before deletion", apperrors.ErrStateInvalid, accountID)
	}

	balance, err := s.ledgerRepo.FindBalance(ctx, accountID)
	if err != nil {
		return err
	}
	if !balance.IsZero() {
		return fmt.Errorf("%w: account %s has a non-zero balance of %s", apperrors.ErrStateInvalid, accountID, balance.String())
	}

	children, err := s.allChildren(ctx, account.Entity.OrganizationID, accountID)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return fmt.Errorf("%w: account %s still has %d child accounts", apperrors.ErrStateInvalid, accountID, len(children))
	}

	if err := s.store.SoftDelete(ctx, accountID, actor.UserID); err != nil {
		return err
	}

	logger.Info("Account deleted", slog.String("account_id", accountID))
	return nil
}

func (s *AccountService) activeChildren(ctx context.Context, organizationID, accountID string) ([]domain.Versioned[domain.Account], error) {
	children, err := s.allChildren(ctx, organizationID, accountID)
	if err != nil {
		return nil, err
	}
	active := children[:0]
	for _, c := range children {
		if c.Entity.IsActive {
			active = append(active, c)
		}
	}
	return active, nil
}

func (s *AccountService) allChildren(ctx context.Context, organizationID, accountID string) ([]domain.Versioned[domain.Account], error) {
	accounts, err := s.ListAccountsByOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	children := make([]domain.Versioned[domain.Account], 0)
	for _, acc := range accounts {
		if acc.Entity.ParentAccountID == accountID {
			children = append(children, acc)
		}
	}
	return children, nil
}
