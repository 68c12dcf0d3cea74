package services_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/opennpo/nonprofit_books_app/internal/core/domain"
	portsrepo "github.com/opennpo/nonprofit_books_app/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockLedgerRepository is a mock type for the LedgerRepository interface
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) SaveTransaction(ctx context.Context, txn domain.Transaction, deltas map[string]decimal.Decimal) error {
	args := m.Called(ctx, txn, deltas)
	return args.Error(0)
}

func (m *MockLedgerRepository) SaveTransactionInTx(ctx context.Context, tx pgx.Tx, txn domain.Transaction, deltas map[string]decimal.Decimal) error {
	args := m.Called(ctx, tx, txn, deltas)
	return args.Error(0)
}

func (m *MockLedgerRepository) MarkVoided(ctx context.Context, txn domain.Transaction, deltas map[string]decimal.Decimal) error {
	args := m.Called(ctx, txn, deltas)
	return args.Error(0)
}

func (m *MockLedgerRepository) MarkVoidedInTx(ctx context.Context, tx pgx.Tx, txn domain.Transaction, deltas map[string]decimal.Decimal) error {
	args := m.Called(ctx, tx, txn, deltas)
	return args.Error(0)
}

func (m *MockLedgerRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockLedgerRepository) ListTransactionsByAccount(ctx context.Context, organizationID, accountID string, limit int, nextToken *string) ([]domain.Transaction, *string, error) {
	args := m.Called(ctx, organizationID, accountID, limit, nextToken)
	var txns []domain.Transaction
	if args.Get(0) != nil {
		txns = args.Get(0).([]domain.Transaction)
	}
	var token *string
	if args.Get(1) != nil {
		token = args.Get(1).(*string)
	}
	return txns, token, args.Error(2)
}

func (m *MockLedgerRepository) InitBalance(ctx context.Context, accountID string) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

func (m *MockLedgerRepository) FindBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerRepository) FindBalances(ctx context.Context, accountIDs []string) (map[string]decimal.Decimal, error) {
	args := m.Called(ctx, accountIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]decimal.Decimal), args.Error(1)
}

func (m *MockLedgerRepository) SumAccountActivityInRange(ctx context.Context, organizationID string, from, to time.Time) (map[string]portsrepo.AccountActivity, error) {
	args := m.Called(ctx, organizationID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]portsrepo.AccountActivity), args.Error(1)
}

func (m *MockLedgerRepository) SumAccountActivityInRangeInTx(ctx context.Context, tx pgx.Tx, organizationID string, from, to time.Time) (map[string]portsrepo.AccountActivity, error) {
	args := m.Called(ctx, tx, organizationID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]portsrepo.AccountActivity), args.Error(1)
}

// MockBillRepository is a mock type for the BillRepository interface
type MockBillRepository struct {
	mock.Mock
}

func (m *MockBillRepository) SaveBill(ctx context.Context, bill domain.Bill, accrual *domain.Transaction, accrualDeltas map[string]decimal.Decimal) error {
	args := m.Called(ctx, bill, accrual, accrualDeltas)
	return args.Error(0)
}

func (m *MockBillRepository) FindBillByID(ctx context.Context, billID string) (*domain.Bill, error) {
	args := m.Called(ctx, billID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bill), args.Error(1)
}

func (m *MockBillRepository) ListBills(ctx context.Context, organizationID string, direction *domain.BillDirection, limit int, nextToken *string) ([]domain.Bill, *string, error) {
	args := m.Called(ctx, organizationID, direction, limit, nextToken)
	var bills []domain.Bill
	if args.Get(0) != nil {
		bills = args.Get(0).([]domain.Bill)
	}
	var token *string
	if args.Get(1) != nil {
		token = args.Get(1).(*string)
	}
	return bills, token, args.Error(2)
}

func (m *MockBillRepository) ListOutstandingBills(ctx context.Context, organizationID string) ([]domain.Bill, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Bill), args.Error(1)
}

func (m *MockBillRepository) ListPaymentsForBill(ctx context.Context, billID string) ([]domain.BillPayment, error) {
	args := m.Called(ctx, billID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BillPayment), args.Error(1)
}

func (m *MockBillRepository) RecordPayment(ctx context.Context, payment domain.BillPayment, txn domain.Transaction, deltas map[string]decimal.Decimal) (*domain.Bill, error) {
	args := m.Called(ctx, payment, txn, deltas)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bill), args.Error(1)
}

func (m *MockBillRepository) RecalculateStatus(ctx context.Context, billID string, by string) (*domain.Bill, error) {
	args := m.Called(ctx, billID, by)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bill), args.Error(1)
}

func (m *MockBillRepository) CancelBill(ctx context.Context, billID string, by string, voidAccrual *domain.Transaction, voidDeltas map[string]decimal.Decimal) (*domain.Bill, error) {
	args := m.Called(ctx, billID, by, voidAccrual, voidDeltas)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Bill), args.Error(1)
}

// MockFiscalPeriodRepository is a mock type for the FiscalPeriodRepository interface
type MockFiscalPeriodRepository struct {
	mock.Mock
}

func (m *MockFiscalPeriodRepository) SavePeriod(ctx context.Context, period domain.FiscalPeriod) error {
	args := m.Called(ctx, period)
	return args.Error(0)
}

func (m *MockFiscalPeriodRepository) FindPeriodByID(ctx context.Context, periodID string) (*domain.FiscalPeriod, error) {
	args := m.Called(ctx, periodID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FiscalPeriod), args.Error(1)
}

func (m *MockFiscalPeriodRepository) ListPeriods(ctx context.Context, organizationID string) ([]domain.FiscalPeriod, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FiscalPeriod), args.Error(1)
}

func (m *MockFiscalPeriodRepository) FindOverlappingPeriod(ctx context.Context, organizationID string, start, end time.Time) (*domain.FiscalPeriod, error) {
	args := m.Called(ctx, organizationID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FiscalPeriod), args.Error(1)
}

func (m *MockFiscalPeriodRepository) FindClosedPeriodContaining(ctx context.Context, organizationID string, at time.Time) (*domain.FiscalPeriod, error) {
	args := m.Called(ctx, organizationID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FiscalPeriod), args.Error(1)
}

func (m *MockFiscalPeriodRepository) ComputeSummary(ctx context.Context, period domain.FiscalPeriod, accountTypes map[string]domain.AccountType) (*domain.PeriodSummary, error) {
	args := m.Called(ctx, period, accountTypes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PeriodSummary), args.Error(1)
}

func (m *MockFiscalPeriodRepository) ClosePeriod(ctx context.Context, period domain.FiscalPeriod, accountTypes map[string]domain.AccountType, fundAccountID, summaryAccountID, closedBy string) (*domain.FiscalPeriod, *domain.Transaction, error) {
	args := m.Called(ctx, period, accountTypes, fundAccountID, summaryAccountID, closedBy)
	var closed *domain.FiscalPeriod
	if args.Get(0) != nil {
		closed = args.Get(0).(*domain.FiscalPeriod)
	}
	var txn *domain.Transaction
	if args.Get(1) != nil {
		txn = args.Get(1).(*domain.Transaction)
	}
	return closed, txn, args.Error(2)
}

// MockAccountFacade is a mock type for the AccountSvcFacade interface
type MockAccountFacade struct {
	mock.Mock
}

func (m *MockAccountFacade) GetAccountByID(ctx context.Context, accountID string) (*domain.Versioned[domain.Account], error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Versioned[domain.Account]), args.Error(1)
}

func (m *MockAccountFacade) GetAccountsByIDs(ctx context.Context, accountIDs []string) (map[string]domain.Versioned[domain.Account], error) {
	args := m.Called(ctx, accountIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.Versioned[domain.Account]), args.Error(1)
}

func (m *MockAccountFacade) ListAccountsByOrganization(ctx context.Context, organizationID string) ([]domain.Versioned[domain.Account], error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Versioned[domain.Account]), args.Error(1)
}

func (m *MockAccountFacade) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockOrganizationFacade is a mock type for the OrganizationSvcFacade interface
type MockOrganizationFacade struct {
	mock.Mock
}

func (m *MockOrganizationFacade) GetOrganizationByID(ctx context.Context, organizationID string) (*domain.Versioned[domain.Organization], error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Versioned[domain.Organization]), args.Error(1)
}

// versionedAccount builds a current versioned account for facade returns.
func versionedAccount(accountID, organizationID string, accountType domain.AccountType, active bool) domain.Versioned[domain.Account] {
	return domain.Versioned[domain.Account]{
		VersionMeta: domain.VersionMeta{
			EntityID:   accountID,
			VersionID:  accountID + "-v1",
			ValidFrom:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			ValidTo:    domain.MaxTime,
			SystemFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			SystemTo:   domain.MaxTime,
			ChangedBy:  "user-setup",
		},
		Entity: domain.Account{
			OrganizationID: organizationID,
			Code:           "0000",
			Name:           accountID,
			AccountType:    accountType,
			IsActive:       active,
		},
	}
}
