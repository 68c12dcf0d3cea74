package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opennpo/nonprofit_books_app/internal/core/services"
	"github.com/opennpo/nonprofit_books_app/internal/dto"
	"github.com/opennpo/nonprofit_books_app/internal/middleware"
)

// billHandler handles HTTP requests related to bills and payments.
type billHandler struct {
	billingService *services.BillingService
}

func newBillHandler(bs *services.BillingService) *billHandler {
	return &billHandler{billingService: bs}
}

// registerBillRoutes registers routes related to bills, payments, and the
// reports derived from them.
func registerBillRoutes(rg *gin.RouterGroup, billingService *services.BillingService) {
	h := newBillHandler(billingService)

	bills := rg.Group("/bills")
	{
		bills.POST("", h.createBill)
		bills.GET("/:billID", h.getBill)
		bills.POST("/:billID/payments", h.recordPayment)
		bills.GET("/:billID/payments", h.listPayments)
		bills.POST("/:billID/cancel", h.cancelBill)
		bills.POST("/:billID/recalculate", h.recalculateBill)
	}
	rg.GET("/organizations/:orgID/bills", h.listBills)
	rg.GET("/organizations/:orgID/reports/aging", h.getAging)
	rg.GET("/organizations/:orgID/accounts/:accountID/projected-balance", h.getProjectedBalance)
}

// createBill handles POST /bills. With postAccrual set, the accrual posting
// lands in the same unit of work as the bill.
func (h *billHandler) createBill(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateBill", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	bill, err := h.billingService.CreateBill(c.Request.Context(), req, actor)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to create bill")
		return
	}

	logger.Info("Bill created", slog.String("bill_id", bill.BillID))
	c.JSON(http.StatusCreated, dto.ToBillResponse(bill))
}

// getBill handles GET /bills/:billID.
func (h *billHandler) getBill(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	bill, err := h.billingService.GetBillByID(c.Request.Context(), c.Param("billID"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve bill")
		return
	}
	c.JSON(http.StatusOK, dto.ToBillResponse(bill))
}

// listBills handles GET /organizations/:orgID/bills with an optional
// direction filter and cursor pagination.
func (h *billHandler) listBills(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var params dto.ListBillsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	bills, nextToken, err := h.billingService.ListBills(
		c.Request.Context(), c.Param("orgID"), params.Direction, params.Limit, params.NextToken)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to list bills")
		return
	}

	c.JSON(http.StatusOK, dto.ListBillsResponse{
		Bills:     dto.ToListBillResponse(bills),
		NextToken: nextToken,
	})
}

// recordPayment handles POST /bills/:billID/payments.
func (h *billHandler) recordPayment(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	billID := c.Param("billID")

	var req dto.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for RecordPayment", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	bill, payment, err := h.billingService.RecordPayment(c.Request.Context(), billID, req, actor)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to record payment")
		return
	}

	logger.Info("Payment recorded", slog.String("bill_id", billID), slog.String("payment_id", payment.PaymentID))
	c.JSON(http.StatusCreated, gin.H{
		"bill":    dto.ToBillResponse(bill),
		"payment": dto.ToBillPaymentResponse(payment),
	})
}

// listPayments handles GET /bills/:billID/payments.
func (h *billHandler) listPayments(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	payments, err := h.billingService.ListPayments(c.Request.Context(), c.Param("billID"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to list payments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": dto.ToListBillPaymentResponse(payments)})
}

// cancelBill handles POST /bills/:billID/cancel. Only bills with no recorded
// payments can be cancelled; a posted accrual is voided alongside.
func (h *billHandler) cancelBill(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	billID := c.Param("billID")

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	bill, err := h.billingService.CancelBill(c.Request.Context(), billID, actor)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to cancel bill")
		return
	}

	logger.Info("Bill cancelled", slog.String("bill_id", billID))
	c.JSON(http.StatusOK, dto.ToBillResponse(bill))
}

// recalculateBill handles POST /bills/:billID/recalculate, recomputing amount
// paid and status from the bill's non-voided payments.
func (h *billHandler) recalculateBill(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	billID := c.Param("billID")

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	bill, err := h.billingService.RecalculateBillStatus(c.Request.Context(), billID, actor)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to recalculate bill status")
		return
	}

	logger.Info("Bill status recalculated", slog.String("bill_id", billID), slog.String("status", string(bill.Status)))
	c.JSON(http.StatusOK, dto.ToBillResponse(bill))
}

// getAging handles GET /organizations/:orgID/reports/aging?asOf=.
func (h *billHandler) getAging(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var params dto.AgingParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	asOf := time.Now().UTC()
	if params.AsOf != nil {
		asOf = *params.AsOf
	}

	report, err := h.billingService.GetAging(c.Request.Context(), c.Param("orgID"), asOf)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to build aging report")
		return
	}
	c.JSON(http.StatusOK, report)
}

// getProjectedBalance handles
// GET /organizations/:orgID/accounts/:accountID/projected-balance?through=.
func (h *billHandler) getProjectedBalance(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	accountID := c.Param("accountID")

	var params dto.ProjectedBalanceParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	current, projected, err := h.billingService.GetProjectedBalance(
		c.Request.Context(), c.Param("orgID"), accountID, params.Through)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to project balance")
		return
	}

	c.JSON(http.StatusOK, dto.ProjectedBalanceResponse{
		AccountID:        accountID,
		CurrentBalance:   current,
		ProjectedBalance: projected,
		Through:          params.Through,
		OverdraftRisk:    projected.IsNegative(),
	})
}
