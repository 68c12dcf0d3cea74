package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/opennpo/nonprofit_books_app/internal/apperrors"
	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	"github.com/opennpo/nonprofit_books_app/internal/core/services"
	"github.com/opennpo/nonprofit_books_app/internal/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// --- Test Suite Setup ---

type AccountServiceTestSuite struct {
	suite.Suite
	ctx        context.Context
	repo       *fakeVersionRepo
	mockLedger *MockLedgerRepository
	service    *services.AccountService
	treasurer  domain.Actor
}

func (suite *AccountServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.repo = newFakeVersionRepo()
	suite.mockLedger = new(MockLedgerRepository)
	suite.service = services.NewAccountService(suite.repo, suite.mockLedger)
	suite.treasurer = domain.Actor{UserID: "user-treasurer", Role: domain.RoleTreasurer}
}

// createAccount seeds an account through the service itself, so the version
// chain underneath is the real one.
func (suite *AccountServiceTestSuite) createAccount(organizationID, code string, accountType domain.AccountType, parentID *string) *domain.Versioned[domain.Account] {
	suite.mockLedger.On("InitBalance", mock.Anything, mock.AnythingOfType("string")).Return(nil).Once()
	created, err := suite.service.CreateAccount(suite.ctx, dto.CreateAccountRequest{
		OrganizationID:  organizationID,
		Code:            code,
		Name:            "Account " + code,
		AccountType:     accountType,
		ParentAccountID: parentID,
	}, suite.treasurer)
	suite.Require().NoError(err)
	return created
}

// --- Test Cases ---

func (suite *AccountServiceTestSuite) TestCreateAccount_Success() {
	suite.mockLedger.On("InitBalance", mock.Anything, mock.AnythingOfType("string")).Return(nil).Once()

	created, err := suite.service.CreateAccount(suite.ctx, dto.CreateAccountRequest{
		OrganizationID: "org-1",
		Code:           "1000",
		Name:           "Checking",
		AccountType:    domain.Asset,
		Description:    "Primary operating account",
	}, suite.treasurer)

	suite.Require().NoError(err)
	suite.NotEmpty(created.EntityID)
	suite.Equal("1000", created.Entity.Code)
	suite.Equal(domain.Asset, created.Entity.AccountType)
	suite.True(created.Entity.IsActive)
	suite.Empty(created.Entity.ParentAccountID)
	suite.mockLedger.AssertExpectations(suite.T())
}

func (suite *AccountServiceTestSuite) TestCreateAccount_InvalidType() {
	_, err := suite.service.CreateAccount(suite.ctx, dto.CreateAccountRequest{
		OrganizationID: "org-1",
		Code:           "1000",
		Name:           "Checking",
		AccountType:    domain.AccountType("SAVINGS"),
	}, suite.treasurer)
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *AccountServiceTestSuite) TestCreateAccount_Forbidden() {
	_, err := suite.service.CreateAccount(suite.ctx, dto.CreateAccountRequest{
		OrganizationID: "org-1",
		Code:           "1000",
		Name:           "Checking",
		AccountType:    domain.Asset,
	}, domain.Actor{UserID: "user-viewer", Role: domain.RoleReadOnly})
	suite.ErrorIs(err, apperrors.ErrForbidden)
}

func (suite *AccountServiceTestSuite) TestCreateAccount_ParentNotFound() {
	missing := "no-such-account"
	_, err := suite.service.CreateAccount(suite.ctx, dto.CreateAccountRequest{
		OrganizationID:  "org-1",
		Code:            "1010",
		Name:            "Petty Cash",
		AccountType:     domain.Asset,
		ParentAccountID: &missing,
	}, suite.treasurer)
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *AccountServiceTestSuite) TestCreateAccount_ParentWrongOrganization() {
	parent := suite.createAccount("org-other", "1000", domain.Asset, nil)

	parentID := parent.EntityID
	_, err := suite.service.CreateAccount(suite.ctx, dto.CreateAccountRequest{
		OrganizationID:  "org-1",
		Code:            "1010",
		Name:            "Petty Cash",
		AccountType:     domain.Asset,
		ParentAccountID: &parentID,
	}, suite.treasurer)
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *AccountServiceTestSuite) TestDeactivateAccount_WithActiveChildren() {
	parent := suite.createAccount("org-1", "1000", domain.Asset, nil)
	parentID := parent.EntityID
	suite.createAccount("org-1", "1010", domain.Asset, &parentID)

	_, err := suite.service.DeactivateAccount(suite.ctx, parentID, suite.treasurer)
	suite.ErrorIs(err, apperrors.ErrStateInvalid)
}

func (suite *AccountServiceTestSuite) TestDeactivateAccount_Success() {
	account := suite.createAccount("org-1", "1000", domain.Asset, nil)

	deactivated, err := suite.service.DeactivateAccount(suite.ctx, account.EntityID, suite.treasurer)
	suite.Require().NoError(err)
	suite.False(deactivated.Entity.IsActive)

	_, err = suite.service.DeactivateAccount(suite.ctx, account.EntityID, suite.treasurer)
	suite.ErrorIs(err, apperrors.ErrValidation, "deactivating twice is rejected")
}

func (suite *AccountServiceTestSuite) TestActivateAccount_ParentInactive() {
	parent := suite.createAccount("org-1", "1000", domain.Asset, nil)
	parentID := parent.EntityID
	child := suite.createAccount("org-1", "1010", domain.Asset, &parentID)

	_, err := suite.service.DeactivateAccount(suite.ctx, child.EntityID, suite.treasurer)
	suite.Require().NoError(err)
	_, err = suite.service.DeactivateAccount(suite.ctx, parentID, suite.treasurer)
	suite.Require().NoError(err)

	_, err = suite.service.ActivateAccount(suite.ctx, child.EntityID, suite.treasurer)
	suite.ErrorIs(err, apperrors.ErrStateInvalid)

	// Reactivating the parent first unblocks the child.
	_, err = suite.service.ActivateAccount(suite.ctx, parentID, suite.treasurer)
	suite.Require().NoError(err)
	activated, err := suite.service.ActivateAccount(suite.ctx, child.EntityID, suite.treasurer)
	suite.Require().NoError(err)
	suite.True(activated.Entity.IsActive)
}

func (suite *AccountServiceTestSuite) TestReparentAccount_Cycle() {
	a := suite.createAccount("org-1", "1000", domain.Asset, nil)
	aID := a.EntityID
	b := suite.createAccount("org-1", "1010", domain.Asset, &aID)
	bID := b.EntityID

	_, err := suite.service.ReparentAccount(suite.ctx, aID, dto.ReparentAccountRequest{ParentAccountID: &bID}, suite.treasurer)
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *AccountServiceTestSuite) TestReparentAccount_SelfParent() {
	a := suite.createAccount("org-1", "1000", domain.Asset, nil)
	aID := a.EntityID

	_, err := suite.service.ReparentAccount(suite.ctx, aID, dto.ReparentAccountRequest{ParentAccountID: &aID}, suite.treasurer)
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *AccountServiceTestSuite) TestReparentAccount_Success() {
	a := suite.createAccount("org-1", "1000", domain.Asset, nil)
	aID := a.EntityID
	b := suite.createAccount("org-1", "1010", domain.Asset, &aID)
	c := suite.createAccount("org-1", "1100", domain.Asset, nil)
	cID := c.EntityID

	moved, err := suite.service.ReparentAccount(suite.ctx, b.EntityID, dto.ReparentAccountRequest{ParentAccountID: &cID}, suite.treasurer)
	suite.Require().NoError(err)
	suite.Equal(cID, moved.Entity.ParentAccountID)

	history, err := suite.service.GetAccountHistory(suite.ctx, b.EntityID)
	suite.Require().NoError(err)
	suite.Len(history, 2, "reparenting appends a version")
}

func (suite *AccountServiceTestSuite) TestDeleteAccount_StillActive() {
	account := suite.createAccount("org-1", "1000", domain.Asset, nil)

	err := suite.service.DeleteAccount(suite.ctx, account.EntityID, suite.treasurer)
	suite.ErrorIs(err, apperrors.ErrStateInvalid)
}

func (suite *AccountServiceTestSuite) TestDeleteAccount_NonZeroBalance() {
	account := suite.createAccount("org-1", "1000", domain.Asset, nil)
	_, err := suite.service.DeactivateAccount(suite.ctx, account.EntityID, suite.treasurer)
	suite.Require().NoError(err)

	suite.mockLedger.On("FindBalance", mock.Anything, account.EntityID).Return(decimal.NewFromInt(250), nil).Once()

	err = suite.service.DeleteAccount(suite.ctx, account.EntityID, suite.treasurer)
	suite.ErrorIs(err, apperrors.ErrStateInvalid)
	suite.mockLedger.AssertExpectations(suite.T())
}

func (suite *AccountServiceTestSuite) TestDeleteAccount_Success() {
	effectiveAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	suite.mockLedger.On("InitBalance", mock.Anything, mock.AnythingOfType("string")).Return(nil).Once()
	account, err := suite.service.CreateAccount(suite.ctx, dto.CreateAccountRequest{
		OrganizationID: "org-1",
		Code:           "1000",
		Name:           "Checking",
		AccountType:    domain.Asset,
		EffectiveAt:    &effectiveAt,
	}, suite.treasurer)
	suite.Require().NoError(err)

	_, err = suite.service.DeactivateAccount(suite.ctx, account.EntityID, suite.treasurer)
	suite.Require().NoError(err)

	suite.mockLedger.On("FindBalance", mock.Anything, account.EntityID).Return(decimal.Zero, nil).Once()

	err = suite.service.DeleteAccount(suite.ctx, account.EntityID, suite.treasurer)
	suite.Require().NoError(err)

	_, err = suite.service.GetAccountByID(suite.ctx, account.EntityID)
	suite.ErrorIs(err, apperrors.ErrNotFound)

	// History and past state survive the deletion.
	asOf, err := suite.service.GetAccountAsOf(suite.ctx, account.EntityID, effectiveAt.Add(time.Hour))
	suite.Require().NoError(err)
	suite.Equal("1000", asOf.Entity.Code)
}

func (suite *AccountServiceTestSuite) TestGetAccountsByIDs_SkipsMissing() {
	account := suite.createAccount("org-1", "1000", domain.Asset, nil)

	accounts, err := suite.service.GetAccountsByIDs(suite.ctx, []string{account.EntityID, "no-such-account"})
	suite.Require().NoError(err)
	suite.Len(accounts, 1)
	suite.Contains(accounts, account.EntityID)
}

func (suite *AccountServiceTestSuite) TestGetBalance_Success() {
	account := suite.createAccount("org-1", "1000", domain.Asset, nil)
	suite.mockLedger.On("FindBalance", mock.Anything, account.EntityID).Return(decimal.NewFromInt(42), nil).Once()

	balance, err := suite.service.GetBalance(suite.ctx, account.EntityID)
	suite.Require().NoError(err)
	suite.True(balance.Equal(decimal.NewFromInt(42)))
	suite.mockLedger.AssertExpectations(suite.T())
}

func (suite *AccountServiceTestSuite) TestGetBalance_AccountNotFound() {
	_, err := suite.service.GetBalance(suite.ctx, "no-such-account")
	suite.ErrorIs(err, apperrors.ErrNotFound)
}

func (suite *AccountServiceTestSuite) TestUpdateAccount_RetriesOnConflict() {
	account := suite.createAccount("org-1", "1000", domain.Asset, nil)
	newName := "Operating Checking"

	// The first close loses the race; the update re-reads and lands anyway.
	suite.repo.failNextClose = true
	updated, err := suite.service.UpdateAccount(suite.ctx, account.EntityID, dto.UpdateAccountRequest{Name: &newName}, suite.treasurer)
	suite.Require().NoError(err)
	suite.Equal(newName, updated.Entity.Name)

	history, err := suite.service.GetAccountHistory(suite.ctx, account.EntityID)
	suite.Require().NoError(err)
	suite.Len(history, 2)
}

func (suite *AccountServiceTestSuite) TestGetAccountChanges_ReturnsRecordedWindow() {
	before := time.Now().UTC().Add(-time.Minute)
	a := suite.createAccount("org-1", "1000", domain.Asset, nil)
	suite.createAccount("org-1", "4000", domain.Revenue, nil)
	_, err := suite.service.DeactivateAccount(suite.ctx, a.EntityID, suite.treasurer)
	suite.Require().NoError(err)

	changes, err := suite.service.GetAccountChanges(suite.ctx, before, time.Now().UTC().Add(time.Minute))
	suite.Require().NoError(err)
	suite.Len(changes, 3, "two creations plus the deactivation revision")

	_, err = suite.service.GetAccountChanges(suite.ctx, before, before)
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *AccountServiceTestSuite) TestGetTrialBalance() {
	cash := suite.createAccount("org-1", "1000", domain.Asset, nil)
	revenue := suite.createAccount("org-1", "4000", domain.Revenue, nil)
	suite.createAccount("org-other", "1000", domain.Asset, nil)

	// The revenue account has no balance row yet and reports zero.
	suite.mockLedger.On("FindBalances", mock.Anything, mock.MatchedBy(func(ids []string) bool {
		return len(ids) == 2
	})).Return(map[string]decimal.Decimal{cash.EntityID: decimal.NewFromInt(750)}, nil).Once()

	accounts, balances, err := suite.service.GetTrialBalance(suite.ctx, "org-1")
	suite.Require().NoError(err)
	suite.Len(accounts, 2)
	suite.True(balances[cash.EntityID].Equal(decimal.NewFromInt(750)))
	suite.True(balances[revenue.EntityID].IsZero())
	suite.mockLedger.AssertExpectations(suite.T())
}

func TestAccountServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AccountServiceTestSuite))
}
