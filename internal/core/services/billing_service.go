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
	"github.com/opennpo/nonprofit_books_app/internal/utils/accounting"
	"github.com/shopspring/decimal"
)

// BillingService tracks payables and receivables and keeps them reconciled
// with the ledger: accruals, payments, and cancellation voids all post through
// the same repository transaction that mutates the bill.
type BillingService struct {
	billRepo   portsrepo.BillRepository
	ledgerRepo portsrepo.LedgerRepository
	periodRepo portsrepo.FiscalPeriodRepository
	accountSvc portssvc.AccountSvcFacade
}

// NewBillingService creates a new BillingService.
func NewBillingService(billRepo portsrepo.BillRepository, ledgerRepo portsrepo.LedgerRepository, periodRepo portsrepo.FiscalPeriodRepository, accountSvc portssvc.AccountSvcFacade) *BillingService {
	return &BillingService{
		billRepo:   billRepo,
		ledgerRepo: ledgerRepo,
		periodRepo: periodRepo,
		accountSvc: accountSvc,
	}
}

func (s *BillingService) ensureOpenPeriod(ctx context.Context, organizationID string, at time.Time) error {
	period, err := s.periodRepo.FindClosedPeriodContaining(ctx, organizationID, at)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}
	return fmt.Errorf("%w: date %s falls inside closed fiscal period %s",
		apperrors.ErrStateInvalid, at.Format("2006-01-02"), period.Name)
}

// billAccounts loads and validates the ledger and offset accounts of a bill.
// Payables accrue against a LIABILITY ledger account with an EXPENSE offset;
// receivables against an ASSET ledger account with a REVENUE offset.
func (s *BillingService) billAccounts(ctx context.Context, bill domain.Bill) (ledgerType, offsetType domain.AccountType, err error) {
	accounts, err := s.accountSvc.GetAccountsByIDs(ctx, []string{bill.LedgerAccountID, bill.OffsetAccountID})
	if err != nil {
		return "", "", err
	}
	for _, accountID := range []string{bill.LedgerAccountID, bill.OffsetAccountID} {
		acc, ok := accounts[accountID]
		if !ok {
			return "", "", fmt.Errorf("%w: account %s not found", apperrors.ErrValidation, accountID)
		}
		if acc.Entity.OrganizationID != bill.OrganizationID {
			return "", "", fmt.Errorf("%w: account %s belongs to a different organization", apperrors.ErrValidation, accountID)
		}
		if !acc.Entity.IsActive {
			return "", "", fmt.Errorf("%w: account %s is inactive", apperrors.ErrValidation, accountID)
		}
	}

	ledgerType = accounts[bill.LedgerAccountID].Entity.AccountType
	offsetType = accounts[bill.OffsetAccountID].Entity.AccountType

	switch bill.Direction {
	case domain.Payable:
		if ledgerType != domain.Liability {
			return "", "", fmt.Errorf("%w: payable ledger account must be a LIABILITY account", apperrors.ErrValidation)
		}
		if offsetType != domain.Expense {
			return "", "", fmt.Errorf("%w: payable offset account must be an EXPENSE account", apperrors.ErrValidation)
		}
	case domain.Receivable:
		if ledgerType != domain.Asset {
			return "", "", fmt.Errorf("%w: receivable ledger account must be an ASSET account", apperrors.ErrValidation)
		}
		if offsetType != domain.Revenue {
			return "", "", fmt.Errorf("%w: receivable offset account must be a REVENUE account", apperrors.ErrValidation)
		}
	default:
		return "", "", fmt.Errorf("%w: unknown bill direction %q", apperrors.ErrValidation, bill.Direction)
	}
	return ledgerType, offsetType, nil
}

// accrualTransaction builds the accrual posting for a bill. A payable debits
// the expense and credits the liability; a receivable debits the asset and
// credits the revenue.
func accrualTransaction(bill domain.Bill, by string, now time.Time) domain.Transaction {
	txn := domain.Transaction{
		TransactionID:   uuid.NewString(),
		OrganizationID:  bill.OrganizationID,
		Amount:          bill.Amount,
		TransactionDate: bill.BillDate,
		Type:            domain.TxnBillAccrual,
		Description:     fmt.Sprintf("Accrual for bill %s (%s)", bill.BillID, bill.CounterpartyName),
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     by,
			LastUpdatedAt: now,
			LastUpdatedBy: by,
		},
	}
	if bill.Direction == domain.Payable {
		txn.DebitAccountID = bill.OffsetAccountID
		txn.CreditAccountID = bill.LedgerAccountID
	} else {
		txn.DebitAccountID = bill.LedgerAccountID
		txn.CreditAccountID = bill.OffsetAccountID
	}
	return txn
}

// CreateBill records a new bill and, when requested, posts its accrual in the
// same unit of work.
func (s *BillingService) CreateBill(ctx context.Context, req dto.CreateBillRequest, actor domain.Actor) (*domain.Bill, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if !actor.Can(domain.PermManageBills) {
		return nil, fmt.Errorf("%w: role %s cannot manage bills", apperrors.ErrForbidden, actor.Role)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: bill amount must be positive, got %s", apperrors.ErrValidation, req.Amount.String())
	}
	if !domain.ValidBillDirection(req.Direction) {
		return nil, fmt.Errorf("%w: unknown bill direction %q", apperrors.ErrValidation, req.Direction)
	}
	if req.DueDate.Before(req.BillDate) {
		return nil, fmt.Errorf("%w: due date precedes bill date", apperrors.ErrValidation)
	}

	now := time.Now().UTC()
	bill := domain.Bill{
		BillID:           uuid.NewString(),
		OrganizationID:   req.OrganizationID,
		Direction:        req.Direction,
		CounterpartyName: req.CounterpartyName,
		Description:      req.Description,
		Amount:           req.Amount,
		AmountPaid:       decimal.Zero,
		Status:           domain.BillUnpaid,
		BillDate:         req.BillDate.UTC(),
		DueDate:          req.DueDate.UTC(),
		LedgerAccountID:  req.LedgerAccountID,
		OffsetAccountID:  req.OffsetAccountID,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     actor.UserID,
			LastUpdatedAt: now,
			LastUpdatedBy: actor.UserID,
		},
	}

	ledgerType, offsetType, err := s.billAccounts(ctx, bill)
	if err != nil {
		return nil, err
	}

	var accrual *domain.Transaction
	var accrualDeltas map[string]decimal.Decimal
	if req.PostAccrual {
		if err := s.ensureOpenPeriod(ctx, bill.OrganizationID, bill.BillDate); err != nil {
			return nil, err
		}
		txn := accrualTransaction(bill, actor.UserID, now)
		debitType, creditType := offsetType, ledgerType
		if bill.Direction == domain.Receivable {
			debitType, creditType = ledgerType, offsetType
		}
		accrualDeltas, err = accounting.PostingDeltas(txn, debitType, creditType)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInternal, err)
		}
		accrual = &txn
		bill.AccrualTransactionID = &txn.TransactionID
	}

	if err := s.billRepo.SaveBill(ctx, bill, accrual, accrualDeltas); err != nil {
		logger.Error("Failed to save bill", slog.String("bill_id", bill.BillID), slog.String("error", err.Error()))
		return nil, err
	}

	logger.Info("Bill created",
		slog.String("bill_id", bill.BillID),
		slog.String("direction", string(bill.Direction)),
		slog.Bool("accrual_posted", accrual != nil),
	)
	return &bill, nil
}

// GetBillByID returns a single bill.
func (s *BillingService) GetBillByID(ctx context.Context, billID string) (*domain.Bill, error) {
	return s.billRepo.FindBillByID(ctx, billID)
}

// ListBills returns a page of the organization's bills, newest first.
func (s *BillingService) ListBills(ctx context.Context, organizationID string, direction *domain.BillDirection, limit int, nextToken *string) ([]domain.Bill, *string, error) {
	if direction != nil && !domain.ValidBillDirection(*direction) {
		return nil, nil, fmt.Errorf("%w: unknown bill direction %q", apperrors.ErrValidation, *direction)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.billRepo.ListBills(ctx, organizationID, direction, limit, nextToken)
}

// ListPayments returns every payment event recorded against the bill.
func (s *BillingService) ListPayments(ctx context.Context, billID string) ([]domain.BillPayment, error) {
	if _, err := s.billRepo.FindBillByID(ctx, billID); err != nil {
		return nil, err
	}
	return s.billRepo.ListPaymentsForBill(ctx, billID)
}

// RecordPayment posts a payment against the bill: ledger posting, payment
// row, and status recompute land in one database transaction. The repository
// re-validates the remaining balance under the bill row lock, so racing
// payments can never push a bill past its amount.
func (s *BillingService) RecordPayment(ctx context.Context, billID string, req dto.RecordPaymentRequest, actor domain.Actor) (*domain.Bill, *domain.BillPayment, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if !actor.Can(domain.PermRecordPayment) {
		return nil, nil, fmt.Errorf("%w: role %s cannot record payments", apperrors.ErrForbidden, actor.Role)
	}
	if !req.Amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: payment amount must be positive, got %s", apperrors.ErrValidation, req.Amount.String())
	}

	bill, err := s.billRepo.FindBillByID(ctx, billID)
	if err != nil {
		return nil, nil, err
	}
	if bill.IsTerminal() {
		return nil, nil, fmt.Errorf("%w: bill %s is %s and accepts no further payments", apperrors.ErrStateInvalid, billID, bill.Status)
	}
	if req.Amount.GreaterThan(bill.Outstanding()) {
		return nil, nil, fmt.Errorf("%w: payment of %s exceeds outstanding balance %s",
			apperrors.ErrValidation, req.Amount.String(), bill.Outstanding().String())
	}

	if err := s.ensureOpenPeriod(ctx, bill.OrganizationID, req.PaymentDate); err != nil {
		return nil, nil, err
	}

	accounts, err := s.accountSvc.GetAccountsByIDs(ctx, []string{req.CashAccountID, bill.LedgerAccountID})
	if err != nil {
		return nil, nil, err
	}
	cash, ok := accounts[req.CashAccountID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: cash account %s not found", apperrors.ErrValidation, req.CashAccountID)
	}
	if cash.Entity.OrganizationID != bill.OrganizationID {
		return nil, nil, fmt.Errorf("%w: cash account belongs to a different organization", apperrors.ErrValidation)
	}
	if !cash.Entity.IsActive {
		return nil, nil, fmt.Errorf("%w: cash account %s is inactive", apperrors.ErrValidation, req.CashAccountID)
	}
	if cash.Entity.AccountType != domain.Asset {
		return nil, nil, fmt.Errorf("%w: cash account must be an ASSET account", apperrors.ErrValidation)
	}
	ledgerAcc, ok := accounts[bill.LedgerAccountID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: ledger account of bill %s no longer resolvable", apperrors.ErrInternal, billID)
	}

	now := time.Now().UTC()
	txn := domain.Transaction{
		TransactionID:   uuid.NewString(),
		OrganizationID:  bill.OrganizationID,
		Amount:          req.Amount,
		TransactionDate: req.PaymentDate.UTC(),
		Type:            domain.TxnBillPayment,
		Description:     fmt.Sprintf("Payment on bill %s (%s)", bill.BillID, bill.CounterpartyName),
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     actor.UserID,
			LastUpdatedAt: now,
			LastUpdatedBy: actor.UserID,
		},
	}

	// Paying a payable settles the liability from cash; collecting a
	// receivable moves cash in and clears the receivable.
	var debitType, creditType domain.AccountType
	if bill.Direction == domain.Payable {
		txn.DebitAccountID = bill.LedgerAccountID
		txn.CreditAccountID = req.CashAccountID
		debitType, creditType = ledgerAcc.Entity.AccountType, cash.Entity.AccountType
	} else {
		txn.DebitAccountID = req.CashAccountID
		txn.CreditAccountID = bill.LedgerAccountID
		debitType, creditType = cash.Entity.AccountType, ledgerAcc.Entity.AccountType
	}

	deltas, err := accounting.PostingDeltas(txn, debitType, creditType)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrInternal, err)
	}

	payment := domain.BillPayment{
		PaymentID:     uuid.NewString(),
		BillID:        bill.BillID,
		TransactionID: txn.TransactionID,
		Amount:        req.Amount,
		PaymentDate:   req.PaymentDate.UTC(),
		CashAccountID: req.CashAccountID,
		Notes:         req.Notes,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     actor.UserID,
			LastUpdatedAt: now,
			LastUpdatedBy: actor.UserID,
		},
	}

	updated, err := s.billRepo.RecordPayment(ctx, payment, txn, deltas)
	if err != nil {
		logger.Error("Failed to record payment", slog.String("bill_id", billID), slog.String("error", err.Error()))
		return nil, nil, err
	}

	logger.Info("Payment recorded",
		slog.String("bill_id", billID),
		slog.String("payment_id", payment.PaymentID),
		slog.String("amount", req.Amount.String()),
		slog.String("status", string(updated.Status)),
	)
	return updated, &payment, nil
}

// RecalculateBillStatus recomputes amount paid and status from the bill's
// non-voided payments. Running it twice in a row changes nothing.
func (s *BillingService) RecalculateBillStatus(ctx context.Context, billID string, actor domain.Actor) (*domain.Bill, error) {
	if !actor.Can(domain.PermManageBills) {
		return nil, fmt.Errorf("%w: role %s cannot manage bills", apperrors.ErrForbidden, actor.Role)
	}
	return s.billRepo.RecalculateStatus(ctx, billID, actor.UserID)
}

// CancelBill cancels a bill that never received a payment, voiding its
// accrual posting when one exists.
func (s *BillingService) CancelBill(ctx context.Context, billID string, actor domain.Actor) (*domain.Bill, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if !actor.Can(domain.PermManageBills) {
		return nil, fmt.Errorf("%w: role %s cannot manage bills", apperrors.ErrForbidden, actor.Role)
	}

	bill, err := s.billRepo.FindBillByID(ctx, billID)
	if err != nil {
		return nil, err
	}
	if bill.IsTerminal() {
		return nil, fmt.Errorf("%w: bill %s is already %s", apperrors.ErrStateInvalid, billID, bill.Status)
	}
	payments, err := s.billRepo.ListPaymentsForBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	if len(payments) > 0 {
		return nil, fmt.Errorf("%w: bill %s has recorded payments and cannot be cancelled", apperrors.ErrStateInvalid, billID)
	}

	var voidTxn *domain.Transaction
	var voidDeltas map[string]decimal.Decimal
	if bill.AccrualTransactionID != nil {
		accrual, err := s.ledgerRepo.FindTransactionByID(ctx, *bill.AccrualTransactionID)
		if err != nil {
			return nil, err
		}
		if !accrual.IsVoided {
			if err := s.ensureOpenPeriod(ctx, bill.OrganizationID, accrual.TransactionDate); err != nil {
				return nil, err
			}
			ledgerType, offsetType, err := s.billAccounts(ctx, *bill)
			if err != nil {
				return nil, err
			}
			debitType, creditType := offsetType, ledgerType
			if bill.Direction == domain.Receivable {
				debitType, creditType = ledgerType, offsetType
			}
			deltas, err := accounting.PostingDeltas(*accrual, debitType, creditType)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", apperrors.ErrInternal, err)
			}

			now := time.Now().UTC()
			accrual.IsVoided = true
			accrual.VoidReason = fmt.Sprintf("Bill %s cancelled", billID)
			accrual.VoidedBy = actor.UserID
			accrual.VoidedAt = &now
			accrual.LastUpdatedAt = now
			accrual.LastUpdatedBy = actor.UserID

			voidTxn = accrual
			voidDeltas = accounting.InverseDeltas(deltas)
		}
	}

	cancelled, err := s.billRepo.CancelBill(ctx, billID, actor.UserID, voidTxn, voidDeltas)
	if err != nil {
		logger.Error("Failed to cancel bill", slog.String("bill_id", billID), slog.String("error", err.Error()))
		return nil, err
	}

	logger.Info("Bill cancelled", slog.String("bill_id", billID), slog.Bool("accrual_voided", voidTxn != nil))
	return cancelled, nil
}

// GetAging buckets the organization's outstanding bills by days past due as
// of the given date, separately for payables and receivables.
func (s *BillingService) GetAging(ctx context.Context, organizationID string, asOf time.Time) (*domain.AgingReport, error) {
	bills, err := s.billRepo.ListOutstandingBills(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	report := &domain.AgingReport{AsOf: asOf}
	for _, bill := range bills {
		daysOverdue := int(asOf.Sub(bill.DueDate).Hours() / 24)
		if daysOverdue < 0 {
			daysOverdue = 0
		}
		if bill.Direction == domain.Payable {
			report.Payables.Add(daysOverdue, bill.Outstanding())
		} else {
			report.Receivables.Add(daysOverdue, bill.Outstanding())
		}
	}
	return report, nil
}

// GetProjectedBalance reports what the cash account's balance becomes once
// every outstanding bill due through the horizon has settled: payables drain
// it, receivables feed it.
func (s *BillingService) GetProjectedBalance(ctx context.Context, organizationID, cashAccountID string, through time.Time) (current, projected decimal.Decimal, err error) {
	cash, err := s.accountSvc.GetAccountByID(ctx, cashAccountID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if cash.Entity.OrganizationID != organizationID {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: account %s belongs to a different organization", apperrors.ErrValidation, cashAccountID)
	}
	if cash.Entity.AccountType != domain.Asset {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: projected balance applies to ASSET accounts only", apperrors.ErrValidation)
	}

	current, err = s.accountSvc.GetBalance(ctx, cashAccountID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	bills, err := s.billRepo.ListOutstandingBills(ctx, organizationID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	projected = current
	for _, bill := range bills {
		if bill.DueDate.After(through) {
			continue
		}
		if bill.Direction == domain.Payable {
			projected = projected.Sub(bill.Outstanding())
		} else {
			projected = projected.Add(bill.Outstanding())
		}
	}
	return current, projected, nil
}

// CheckOverdraftRisk reports whether settling everything due through the
// horizon would push the cash account negative.
func (s *BillingService) CheckOverdraftRisk(ctx context.Context, organizationID, cashAccountID string, through time.Time) (bool, error) {
	_, projected, err := s.GetProjectedBalance(ctx, organizationID, cashAccountID, through)
	if err != nil {
		return false, err
	}
	return projected.IsNegative(), nil
}
