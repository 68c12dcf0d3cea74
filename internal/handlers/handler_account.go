package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opennpo/nonprofit_books_app/internal/core/services"
	"github.com/opennpo/nonprofit_books_app/internal/dto"
	"github.com/opennpo/nonprofit_books_app/internal/middleware"
)

// accountHandler handles HTTP requests related to the chart of accounts.
type accountHandler struct {
	accountService *services.AccountService
}

func newAccountHandler(as *services.AccountService) *accountHandler {
	return &accountHandler{accountService: as}
}

// registerAccountRoutes registers routes related to accounts.
func registerAccountRoutes(rg *gin.RouterGroup, accountService *services.AccountService) {
	h := newAccountHandler(accountService)

	accounts := rg.Group("/accounts")
	{
		accounts.POST("", h.createAccount)
		accounts.GET("/changes", h.listAccountChanges)
		accounts.GET("/:accountID", h.getAccount)
		accounts.PUT("/:accountID", h.updateAccount)
		accounts.DELETE("/:accountID", h.deleteAccount)
		accounts.GET("/:accountID/balance", h.getAccountBalance)
		accounts.PUT("/:accountID/parent", h.reparentAccount)
		accounts.POST("/:accountID/activate", h.activateAccount)
		accounts.POST("/:accountID/deactivate", h.deactivateAccount)
		accounts.GET("/:accountID/as-of", h.getAccountAsOf)
		accounts.GET("/:accountID/history", h.getAccountHistory)
	}
	rg.GET("/organizations/:orgID/accounts", h.listAccounts)
	rg.GET("/organizations/:orgID/trial-balance", h.getTrialBalance)
}

// createAccount handles POST /accounts. The new account starts active with a
// zero balance.
func (h *accountHandler) createAccount(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateAccount", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	account, err := h.accountService.CreateAccount(c.Request.Context(), req, actor)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to create account")
		return
	}

	logger.Info("Account created", slog.String("account_id", account.EntityID), slog.String("code", account.Entity.Code))
	c.JSON(http.StatusCreated, dto.ToAccountResponse(account))
}

// getAccount handles GET /accounts/:accountID.
func (h *accountHandler) getAccount(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	account, err := h.accountService.GetAccountByID(c.Request.Context(), c.Param("accountID"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve account")
		return
	}
	c.JSON(http.StatusOK, dto.ToAccountResponse(account))
}

// listAccounts handles GET /organizations/:orgID/accounts. Inactive accounts
// are included; soft-deleted ones are not.
func (h *accountHandler) listAccounts(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	accounts, err := h.accountService.ListAccountsByOrganization(c.Request.Context(), c.Param("orgID"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to list accounts")
		return
	}
	c.JSON(http.StatusOK, dto.ListAccountsResponse{Accounts: dto.ToListAccountResponse(accounts)})
}

// updateAccount handles PUT /accounts/:accountID.
func (h *accountHandler) updateAccount(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	accountID := c.Param("accountID")

	var req dto.UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for UpdateAccount", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	account, err := h.accountService.UpdateAccount(c.Request.Context(), accountID, req, actor)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to update account")
		return
	}

	logger.Info("Account updated", slog.String("account_id", accountID))
	c.JSON(http.StatusOK, dto.ToAccountResponse(account))
}

// reparentAccount handles PUT /accounts/:accountID/parent.
func (h *accountHandler) reparentAccount(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	accountID := c.Param("accountID")

	var req dto.ReparentAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for ReparentAccount", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	account, err := h.accountService.ReparentAccount(c.Request.Context(), accountID, req, actor)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to reparent account")
		return
	}

	logger.Info("Account reparented", slog.String("account_id", accountID))
	c.JSON(http.StatusOK, dto.ToAccountResponse(account))
}

// activateAccount handles POST /accounts/:accountID/activate.
func (h *accountHandler) activateAccount(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	accountID := c.Param("accountID")

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	account, err := h.accountService.ActivateAccount(c.Request.Context(), accountID, actor)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to activate account")
		return
	}

	logger.Info("Account activated", slog.String("account_id", accountID))
	c.JSON(http.StatusOK, dto.ToAccountResponse(account))
}

// deactivateAccount handles POST /accounts/:accountID/deactivate.
func (h *accountHandler) deactivateAccount(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	accountID := c.Param("accountID")

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	account, err := h.accountService.DeactivateAccount(c.Request.Context(), accountID, actor)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to deactivate account")
		return
	}

	logger.Info("Account deactivated", slog.String("account_id", accountID))
	c.JSON(http.StatusOK, dto.ToAccountResponse(account))
}

// deleteAccount handles DELETE /accounts/:accountID. The account must already
// be inactive, hold a zero balance, and have no children.
func (h *accountHandler) deleteAccount(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	accountID := c.Param("accountID")

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	if err := h.accountService.DeleteAccount(c.Request.Context(), accountID, actor); err != nil {
		respondServiceError(c, logger, err, "Failed to delete account")
		return
	}

	logger.Info("Account deleted", slog.String("account_id", accountID))
	c.Status(http.StatusNoContent)
}

// getAccountBalance handles GET /accounts/:accountID/balance.
func (h *accountHandler) getAccountBalance(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	accountID := c.Param("accountID")

	balance, err := h.accountService.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve account balance")
		return
	}
	c.JSON(http.StatusOK, dto.AccountBalanceResponse{AccountID: accountID, Balance: balance})
}

// getAccountAsOf handles GET /accounts/:accountID/as-of?at=.
func (h *accountHandler) getAccountAsOf(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var params dto.AsOfParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	account, err := h.accountService.GetAccountAsOf(c.Request.Context(), c.Param("accountID"), params.At)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve account as of instant")
		return
	}
	c.JSON(http.StatusOK, dto.ToAccountResponse(account))
}

// getAccountHistory handles GET /accounts/:accountID/history.
func (h *accountHandler) getAccountHistory(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	versions, err := h.accountService.GetAccountHistory(c.Request.Context(), c.Param("accountID"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve account history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": dto.ToListAccountResponse(versions)})
}

// listAccountChanges handles GET /accounts/changes?from=&to=, the audit view
// of every account version recorded in the window.
func (h *accountHandler) listAccountChanges(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var params dto.ChangeRangeParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	versions, err := h.accountService.GetAccountChanges(c.Request.Context(), params.From, params.To)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to list account changes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": dto.ToListAccountResponse(versions)})
}

// getTrialBalance handles GET /organizations/:orgID/trial-balance.
func (h *accountHandler) getTrialBalance(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	orgID := c.Param("orgID")

	accounts, balances, err := h.accountService.GetTrialBalance(c.Request.Context(), orgID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to compute trial balance")
		return
	}
	c.JSON(http.StatusOK, dto.ToTrialBalanceResponse(orgID, accounts, balances))
}
