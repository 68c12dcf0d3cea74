package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opennpo/nonprofit_books_app/internal/core/services"
	"github.com/opennpo/nonprofit_books_app/internal/dto"
	"github.com/opennpo/nonprofit_books_app/internal/middleware"
)

// fiscalPeriodHandler handles HTTP requests related to fiscal periods.
type fiscalPeriodHandler struct {
	periodService *services.FiscalPeriodService
}

func newFiscalPeriodHandler(ps *services.FiscalPeriodService) *fiscalPeriodHandler {
	return &fiscalPeriodHandler{periodService: ps}
}

// registerFiscalPeriodRoutes registers routes related to fiscal periods.
func registerFiscalPeriodRoutes(rg *gin.RouterGroup, periodService *services.FiscalPeriodService) {
	h := newFiscalPeriodHandler(periodService)

	periods := rg.Group("/fiscal-periods")
	{
		periods.POST("", h.openPeriod)
		periods.GET("/:periodID", h.getPeriod)
		periods.GET("/:periodID/summary", h.getPeriodSummary)
		periods.POST("/:periodID/close", h.closePeriod)
	}
	rg.GET("/organizations/:orgID/fiscal-periods", h.listPeriods)
}

// openPeriod handles POST /fiscal-periods. Periods of one organization may
// never overlap.
func (h *fiscalPeriodHandler) openPeriod(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateFiscalPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for OpenPeriod", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	period, err := h.periodService.OpenPeriod(c.Request.Context(), req, actor)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to open fiscal period")
		return
	}

	logger.Info("Fiscal period opened", slog.String("period_id", period.PeriodID))
	c.JSON(http.StatusCreated, dto.ToFiscalPeriodResponse(period))
}

// getPeriod handles GET /fiscal-periods/:periodID.
func (h *fiscalPeriodHandler) getPeriod(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	period, err := h.periodService.GetPeriodByID(c.Request.Context(), c.Param("periodID"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve fiscal period")
		return
	}
	c.JSON(http.StatusOK, dto.ToFiscalPeriodResponse(period))
}

// listPeriods handles GET /organizations/:orgID/fiscal-periods.
func (h *fiscalPeriodHandler) listPeriods(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	periods, err := h.periodService.ListPeriods(c.Request.Context(), c.Param("orgID"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to list fiscal periods")
		return
	}
	c.JSON(http.StatusOK, gin.H{"periods": dto.ToListFiscalPeriodResponse(periods)})
}

// getPeriodSummary handles GET /fiscal-periods/:periodID/summary.
func (h *fiscalPeriodHandler) getPeriodSummary(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	summary, err := h.periodService.GetSummary(c.Request.Context(), c.Param("periodID"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to summarize fiscal period")
		return
	}
	c.JSON(http.StatusOK, dto.ToPeriodSummaryResponse(summary))
}

// closePeriod handles POST /fiscal-periods/:periodID/close. Net activity is
// swept into the fund-balance account and the period locks against further
// postings. Closing twice returns 409.
func (h *fiscalPeriodHandler) closePeriod(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	periodID := c.Param("periodID")

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	period, closingTxn, summary, err := h.periodService.ExecuteClose(c.Request.Context(), periodID, actor)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to close fiscal period")
		return
	}

	resp := dto.ClosePeriodResponse{
		Period:  dto.ToFiscalPeriodResponse(period),
		Summary: dto.ToPeriodSummaryResponse(summary),
	}
	if closingTxn != nil {
		txnResp := dto.ToTransactionResponse(closingTxn)
		resp.ClosingTransaction = &txnResp
	}

	logger.Info("Fiscal period closed", slog.String("period_id", periodID))
	c.JSON(http.StatusOK, resp)
}
