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

// LedgerService posts and voids double-entry transactions. Every posting
// debits exactly one account and credits exactly one other; the derived
// balances move only through here and through the billing and period-close
// flows that reuse the same repository primitives.
type LedgerService struct {
	ledgerRepo portsrepo.LedgerRepository
	periodRepo portsrepo.FiscalPeriodRepository
	accountSvc portssvc.AccountSvcFacade
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(ledgerRepo portsrepo.LedgerRepository, periodRepo portsrepo.FiscalPeriodRepository, accountSvc portssvc.AccountSvcFacade) *LedgerService {
	return &LedgerService{
		ledgerRepo: ledgerRepo,
		periodRepo: periodRepo,
		accountSvc: accountSvc,
	}
}

// ensureOpenPeriod rejects postings and voids dated inside a CLOSED period.
func (s *LedgerService) ensureOpenPeriod(ctx context.Context, organizationID string, at time.Time) error {
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

// resolvePostingAccounts loads both accounts of a posting and checks that they
// are distinct, active, and belong to the transaction's organization.
func (s *LedgerService) resolvePostingAccounts(ctx context.Context, txn domain.Transaction) (debitType, creditType domain.AccountType, err error) {
	if txn.DebitAccountID == txn.CreditAccountID {
		return "", "", fmt.Errorf("%w: debit and credit accounts must differ", apperrors.ErrValidation)
	}

	accounts, err := s.accountSvc.GetAccountsByIDs(ctx, []string{txn.DebitAccountID, txn.CreditAccountID})
	if err != nil {
		return "", "", err
	}

	for _, accountID := range []string{txn.DebitAccountID, txn.CreditAccountID} {
		acc, ok := accounts[accountID]
		if !ok {
			return "", "", fmt.Errorf("%w: account %s not found", apperrors.ErrValidation, accountID)
		}
		if acc.Entity.OrganizationID != txn.OrganizationID {
			return "", "", fmt.Errorf("%w: account %s belongs to a different organization", apperrors.ErrValidation, accountID)
		}
		if !acc.Entity.IsActive {
			return "", "", fmt.Errorf("%w: account %s is inactive", apperrors.ErrValidation, accountID)
		}
	}

	return accounts[txn.DebitAccountID].Entity.AccountType, accounts[txn.CreditAccountID].Entity.AccountType, nil
}

// CreateTransaction validates and posts a new ledger entry, applying the
// signed balance deltas to both accounts in the same database transaction.
func (s *LedgerService) CreateTransaction(ctx context.Context, req dto.CreateTransactionRequest, actor domain.Actor) (*domain.Transaction, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if !actor.Can(domain.PermPostTransaction) {
		return nil, fmt.Errorf("%w: role %s cannot post transactions", apperrors.ErrForbidden, actor.Role)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", apperrors.ErrValidation, req.Amount.String())
	}
	if !domain.ValidTransactionType(req.Type) {
		return nil, fmt.Errorf("%w: unknown transaction type %q", apperrors.ErrValidation, req.Type)
	}
	if req.Type == domain.TxnClosing {
		return nil, fmt.Errorf("%w: closing transactions are posted by period close only", apperrors.ErrValidation)
	}

	if err := s.ensureOpenPeriod(ctx, req.OrganizationID, req.TransactionDate); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	txn := domain.Transaction{
		TransactionID:   uuid.NewString(),
		OrganizationID:  req.OrganizationID,
		DebitAccountID:  req.DebitAccountID,
		CreditAccountID: req.CreditAccountID,
		Amount:          req.Amount,
		TransactionDate: req.TransactionDate.UTC(),
		Type:            req.Type,
		Description:     req.Description,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     actor.UserID,
			LastUpdatedAt: now,
			LastUpdatedBy: actor.UserID,
		},
	}

	debitType, creditType, err := s.resolvePostingAccounts(ctx, txn)
	if err != nil {
		return nil, err
	}

	deltas, err := accounting.PostingDeltas(txn, debitType, creditType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInternal, err)
	}

	if err := s.ledgerRepo.SaveTransaction(ctx, txn, deltas); err != nil {
		logger.Error("Failed to save transaction", slog.String("transaction_id", txn.TransactionID), slog.String("error", err.Error()))
		return nil, err
	}

	logger.Info("Transaction posted",
		slog.String("transaction_id", txn.TransactionID),
		slog.String("type", string(txn.Type)),
		slog.String("amount", txn.Amount.String()),
	)
	return &txn, nil
}

// VoidTransaction flags a posting voided and restores both balances by
// applying the exact inverse deltas. The original row is never deleted.
func (s *LedgerService) VoidTransaction(ctx context.Context, transactionID string, req dto.VoidTransactionRequest, actor domain.Actor) (*domain.Transaction, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if !actor.Can(domain.PermVoidTransaction) {
		return nil, fmt.Errorf("%w: role %s cannot void transactions", apperrors.ErrForbidden, actor.Role)
	}
	if req.Reason == "" {
		return nil, fmt.Errorf("%w: a void reason is required", apperrors.ErrValidation)
	}

	txn, err := s.ledgerRepo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.IsVoided {
		return nil, fmt.Errorf("%w: transaction %s is already voided", apperrors.ErrConflict, transactionID)
	}
	// A closing entry is the settlement of a closed period. It is dated at the
	// period's end boundary, which sits outside the period's half-open range,
	// so the closed-period check below would not catch it.
	if txn.Type == domain.TxnClosing {
		return nil, fmt.Errorf("%w: closing transaction %s settles a closed fiscal period and cannot be voided", apperrors.ErrStateInvalid, transactionID)
	}

	if err := s.ensureOpenPeriod(ctx, txn.OrganizationID, txn.TransactionDate); err != nil {
		return nil, err
	}

	// Account types are needed to recompute the original deltas; inactive
	// accounts still participate since the posting already exists.
	accounts, err := s.accountSvc.GetAccountsByIDs(ctx, []string{txn.DebitAccountID, txn.CreditAccountID})
	if err != nil {
		return nil, err
	}
	debit, okD := accounts[txn.DebitAccountID]
	credit, okC := accounts[txn.CreditAccountID]
	if !okD || !okC {
		return nil, fmt.Errorf("%w: posting accounts of transaction %s no longer resolvable", apperrors.ErrInternal, transactionID)
	}

	deltas, err := accounting.PostingDeltas(*txn, debit.Entity.AccountType, credit.Entity.AccountType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInternal, err)
	}

	now := time.Now().UTC()
	txn.IsVoided = true
	txn.VoidReason = req.Reason
	txn.VoidedBy = actor.UserID
	txn.VoidedAt = &now
	txn.LastUpdatedAt = now
	txn.LastUpdatedBy = actor.UserID

	if err := s.ledgerRepo.MarkVoided(ctx, *txn, accounting.InverseDeltas(deltas)); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			logger.Warn("Concurrent void detected", slog.String("transaction_id", transactionID))
		} else {
			logger.Error("Failed to void transaction", slog.String("transaction_id", transactionID), slog.String("error", err.Error()))
		}
		return nil, err
	}

	logger.Info("Transaction voided", slog.String("transaction_id", transactionID), slog.String("reason", req.Reason))
	return txn, nil
}

// GetTransactionByID returns a single posting.
func (s *LedgerService) GetTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return s.ledgerRepo.FindTransactionByID(ctx, transactionID)
}

// ListTransactionsByAccount returns a page of the account's postings, newest
// first, with a cursor for the next page.
func (s *LedgerService) ListTransactionsByAccount(ctx context.Context, organizationID, accountID string, limit int, nextToken *string) ([]domain.Transaction, *string, error) {
	account, err := s.accountSvc.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	if account.Entity.OrganizationID != organizationID {
		return nil, nil, fmt.Errorf("%w: account %s belongs to a different organization", apperrors.ErrValidation, accountID)
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.ledgerRepo.ListTransactionsByAccount(ctx, organizationID, accountID, limit, nextToken)
}

// GetAccountBalance returns the derived balance of one account.
func (s *LedgerService) GetAccountBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return s.accountSvc.GetBalance(ctx, accountID)
}
