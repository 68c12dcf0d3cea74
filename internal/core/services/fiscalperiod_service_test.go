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

type FiscalPeriodServiceTestSuite struct {
	suite.Suite
	ctx         context.Context
	mockPeriods *MockFiscalPeriodRepository
	mockAccts   *MockAccountFacade
	mockOrgs    *MockOrganizationFacade
	service     *services.FiscalPeriodService
	treasurer   domain.Actor
}

func (suite *FiscalPeriodServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.mockPeriods = new(MockFiscalPeriodRepository)
	suite.mockAccts = new(MockAccountFacade)
	suite.mockOrgs = new(MockOrganizationFacade)
	suite.service = services.NewFiscalPeriodService(suite.mockPeriods, suite.mockAccts, suite.mockOrgs)
	suite.treasurer = domain.Actor{UserID: "user-treasurer", Role: domain.RoleTreasurer}
}

func q1Request() dto.CreateFiscalPeriodRequest {
	return dto.CreateFiscalPeriodRequest{
		OrganizationID: "org-1",
		Name:           "FY2024 Q1",
		StartDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func openQ1Period() *domain.FiscalPeriod {
	return &domain.FiscalPeriod{
		PeriodID:       "period-1",
		OrganizationID: "org-1",
		Name:           "FY2024 Q1",
		StartDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		Status:         domain.PeriodOpen,
	}
}

// versionedOrg builds an organization with the closing accounts configured.
func versionedOrg(fundAccountID, summaryAccountID string) *domain.Versioned[domain.Organization] {
	return &domain.Versioned[domain.Organization]{
		VersionMeta: domain.VersionMeta{
			EntityID:   "org-1",
			VersionID:  "org-1-v1",
			ValidFrom:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			ValidTo:    domain.MaxTime,
			SystemFrom: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			SystemTo:   domain.MaxTime,
		},
		Entity: domain.Organization{
			Name:                   "River Valley Food Bank",
			FundBalanceAccountID:   fundAccountID,
			IncomeSummaryAccountID: summaryAccountID,
		},
	}
}

// --- Test Cases ---

func (suite *FiscalPeriodServiceTestSuite) TestOpenPeriod_Success() {
	suite.mockPeriods.On("FindOverlappingPeriod", mock.Anything, "org-1", mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return(nil, apperrors.ErrNotFound).Once()
	suite.mockPeriods.On("SavePeriod", mock.Anything, mock.MatchedBy(func(p domain.FiscalPeriod) bool {
		return p.Status == domain.PeriodOpen && p.Name == "FY2024 Q1"
	})).Return(nil).Once()

	period, err := suite.service.OpenPeriod(suite.ctx, q1Request(), suite.treasurer)
	suite.Require().NoError(err)
	suite.NotEmpty(period.PeriodID)
	suite.Equal(domain.PeriodOpen, period.Status)
	suite.Nil(period.ClosedAt)
	suite.mockPeriods.AssertExpectations(suite.T())
}

func (suite *FiscalPeriodServiceTestSuite) TestOpenPeriod_EndNotAfterStart() {
	req := q1Request()
	req.EndDate = req.StartDate
	_, err := suite.service.OpenPeriod(suite.ctx, req, suite.treasurer)
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *FiscalPeriodServiceTestSuite) TestOpenPeriod_Overlap() {
	suite.mockPeriods.On("FindOverlappingPeriod", mock.Anything, "org-1", mock.AnythingOfType("time.Time"), mock.AnythingOfType("time.Time")).
		Return(openQ1Period(), nil).Once()

	_, err := suite.service.OpenPeriod(suite.ctx, q1Request(), suite.treasurer)
	suite.ErrorIs(err, apperrors.ErrConflict)
}

func (suite *FiscalPeriodServiceTestSuite) TestOpenPeriod_Forbidden() {
	_, err := suite.service.OpenPeriod(suite.ctx, q1Request(),
		domain.Actor{UserID: "user-bookkeeper", Role: domain.RoleBookkeeper})
	suite.ErrorIs(err, apperrors.ErrForbidden)
}

func (suite *FiscalPeriodServiceTestSuite) TestExecuteClose_Success() {
	period := openQ1Period()
	suite.mockPeriods.On("FindPeriodByID", mock.Anything, "period-1").Return(period, nil).Once()
	suite.mockOrgs.On("GetOrganizationByID", mock.Anything, "org-1").
		Return(versionedOrg("acct-fund", "acct-summary"), nil).Once()
	suite.mockAccts.On("ListAccountsByOrganization", mock.Anything, "org-1").
		Return([]domain.Versioned[domain.Account]{
			versionedAccount("acct-fund", "org-1", domain.Equity, true),
			versionedAccount("acct-summary", "org-1", domain.Equity, true),
			versionedAccount("acct-donations", "org-1", domain.Revenue, true),
			versionedAccount("acct-rent", "org-1", domain.Expense, true),
		}, nil).Once()

	closedAt := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	closingTxnID := "txn-closing"
	closed := openQ1Period()
	closed.Status = domain.PeriodClosed
	closed.ClosedAt = &closedAt
	closed.ClosedBy = "user-treasurer"
	closed.ClosingTransactionID = &closingTxnID
	closingTxn := &domain.Transaction{
		TransactionID:   closingTxnID,
		OrganizationID:  "org-1",
		DebitAccountID:  "acct-summary",
		CreditAccountID: "acct-fund",
		Amount:          decimal.NewFromInt(500),
		Type:            domain.TxnClosing,
	}
	suite.mockPeriods.On("ClosePeriod", mock.Anything, *period, mock.Anything, "acct-fund", "acct-summary", "user-treasurer").
		Return(closed, closingTxn, nil).Once()
	suite.mockPeriods.On("ComputeSummary", mock.Anything, *closed, mock.Anything).
		Return(&domain.PeriodSummary{
			PeriodID:     "period-1",
			TotalRevenue: decimal.NewFromInt(2000),
			TotalExpense: decimal.NewFromInt(1500),
			NetIncome:    decimal.NewFromInt(500),
		}, nil).Once()

	gotPeriod, gotTxn, gotSummary, err := suite.service.ExecuteClose(suite.ctx, "period-1", suite.treasurer)
	suite.Require().NoError(err)
	suite.Equal(domain.PeriodClosed, gotPeriod.Status)
	suite.Require().NotNil(gotTxn)
	suite.Equal(domain.TxnClosing, gotTxn.Type)
	suite.True(gotSummary.NetIncome.Equal(decimal.NewFromInt(500)))
	suite.mockPeriods.AssertExpectations(suite.T())
}

func (suite *FiscalPeriodServiceTestSuite) TestExecuteClose_AlreadyClosed() {
	closed := openQ1Period()
	closed.Status = domain.PeriodClosed
	suite.mockPeriods.On("FindPeriodByID", mock.Anything, "period-1").Return(closed, nil).Once()

	_, _, _, err := suite.service.ExecuteClose(suite.ctx, "period-1", suite.treasurer)
	suite.ErrorIs(err, apperrors.ErrConflict)
}

func (suite *FiscalPeriodServiceTestSuite) TestExecuteClose_NoClosingAccountsConfigured() {
	suite.mockPeriods.On("FindPeriodByID", mock.Anything, "period-1").Return(openQ1Period(), nil).Once()
	suite.mockOrgs.On("GetOrganizationByID", mock.Anything, "org-1").
		Return(versionedOrg("", ""), nil).Once()

	_, _, _, err := suite.service.ExecuteClose(suite.ctx, "period-1", suite.treasurer)
	suite.ErrorIs(err, apperrors.ErrStateInvalid)
}

func (suite *FiscalPeriodServiceTestSuite) TestExecuteClose_NonEquityClosingAccount() {
	suite.mockPeriods.On("FindPeriodByID", mock.Anything, "period-1").Return(openQ1Period(), nil).Once()
	suite.mockOrgs.On("GetOrganizationByID", mock.Anything, "org-1").
		Return(versionedOrg("acct-fund", "acct-summary"), nil).Once()
	suite.mockAccts.On("ListAccountsByOrganization", mock.Anything, "org-1").
		Return([]domain.Versioned[domain.Account]{
			versionedAccount("acct-fund", "org-1", domain.Asset, true), // wrong type
			versionedAccount("acct-summary", "org-1", domain.Equity, true),
		}, nil).Once()

	_, _, _, err := suite.service.ExecuteClose(suite.ctx, "period-1", suite.treasurer)
	suite.ErrorIs(err, apperrors.ErrStateInvalid)
}

func (suite *FiscalPeriodServiceTestSuite) TestExecuteClose_ClosingAccountMissing() {
	suite.mockPeriods.On("FindPeriodByID", mock.Anything, "period-1").Return(openQ1Period(), nil).Once()
	suite.mockOrgs.On("GetOrganizationByID", mock.Anything, "org-1").
		Return(versionedOrg("acct-fund", "acct-summary"), nil).Once()
	suite.mockAccts.On("ListAccountsByOrganization", mock.Anything, "org-1").
		Return([]domain.Versioned[domain.Account]{
			versionedAccount("acct-summary", "org-1", domain.Equity, true),
		}, nil).Once()

	_, _, _, err := suite.service.ExecuteClose(suite.ctx, "period-1", suite.treasurer)
	suite.ErrorIs(err, apperrors.ErrStateInvalid)
}

func (suite *FiscalPeriodServiceTestSuite) TestExecuteClose_Forbidden() {
	_, _, _, err := suite.service.ExecuteClose(suite.ctx, "period-1",
		domain.Actor{UserID: "user-bookkeeper", Role: domain.RoleBookkeeper})
	suite.ErrorIs(err, apperrors.ErrForbidden)
}

func (suite *FiscalPeriodServiceTestSuite) TestGetSummary() {
	period := openQ1Period()
	suite.mockPeriods.On("FindPeriodByID", mock.Anything, "period-1").Return(period, nil).Once()
	suite.mockAccts.On("ListAccountsByOrganization", mock.Anything, "org-1").
		Return([]domain.Versioned[domain.Account]{
			versionedAccount("acct-donations", "org-1", domain.Revenue, true),
		}, nil).Once()
	suite.mockPeriods.On("ComputeSummary", mock.Anything, *period,
		map[string]domain.AccountType{"acct-donations": domain.Revenue}).
		Return(&domain.PeriodSummary{
			PeriodID:     "period-1",
			TotalRevenue: decimal.NewFromInt(900),
			TotalExpense: decimal.NewFromInt(100),
			NetIncome:    decimal.NewFromInt(800),
		}, nil).Once()

	summary, err := suite.service.GetSummary(suite.ctx, "period-1")
	suite.Require().NoError(err)
	suite.True(summary.NetIncome.Equal(decimal.NewFromInt(800)))
	suite.mockPeriods.AssertExpectations(suite.T())
}

func TestFiscalPeriodServiceTestSuite(t *testing.T) {
	suite.Run(t, new(FiscalPeriodServiceTestSuite))
}
