package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opennpo/nonprofit_books_app/internal/core/services"
	"github.com/opennpo/nonprofit_books_app/internal/dto"
	"github.com/opennpo/nonprofit_books_app/internal/middleware"
)

// programSpendingHandler handles HTTP requests related to program spending.
type programSpendingHandler struct {
	spendingService *services.ProgramSpendingService
}

func newProgramSpendingHandler(ps *services.ProgramSpendingService) *programSpendingHandler {
	return &programSpendingHandler{spendingService: ps}
}

// registerProgramSpendingRoutes registers routes related to program spending.
func registerProgramSpendingRoutes(rg *gin.RouterGroup, spendingService *services.ProgramSpendingService) {
	h := newProgramSpendingHandler(spendingService)

	spending := rg.Group("/program-spending")
	{
		spending.POST("", h.createProgramSpending)
		spending.GET("/changes", h.listProgramSpendingChanges)
		spending.GET("/:spendingID", h.getProgramSpending)
		spending.PUT("/:spendingID", h.updateProgramSpending)
		spending.DELETE("/:spendingID", h.deleteProgramSpending)
		spending.GET("/:spendingID/as-of", h.getProgramSpendingAsOf)
		spending.GET("/:spendingID/history", h.getProgramSpendingHistory)
	}
	rg.GET("/organizations/:orgID/program-spending", h.listProgramSpending)
}

// createProgramSpending handles POST /program-spending.
func (h *programSpendingHandler) createProgramSpending(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateProgramSpendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateProgramSpending", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	spending, err := h.spendingService.CreateProgramSpending(c.Request.Context(), req, actor)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to create program spending record")
		return
	}

	logger.Info("Program spending recorded", slog.String("spending_id", spending.EntityID))
	c.JSON(http.StatusCreated, dto.ToProgramSpendingResponse(spending))
}

// getProgramSpending handles GET /program-spending/:spendingID.
func (h *programSpendingHandler) getProgramSpending(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	spending, err := h.spendingService.GetProgramSpendingByID(c.Request.Context(), c.Param("spendingID"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve program spending record")
		return
	}
	c.JSON(http.StatusOK, dto.ToProgramSpendingResponse(spending))
}

// listProgramSpending handles GET /organizations/:orgID/program-spending.
func (h *programSpendingHandler) listProgramSpending(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	records, err := h.spendingService.ListProgramSpendingByOrganization(c.Request.Context(), c.Param("orgID"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to list program spending records")
		return
	}
	c.JSON(http.StatusOK, gin.H{"programSpending": dto.ToListProgramSpendingResponse(records)})
}

// updateProgramSpending handles PUT /program-spending/:spendingID.
func (h *programSpendingHandler) updateProgramSpending(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	spendingID := c.Param("spendingID")

	var req dto.UpdateProgramSpendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for UpdateProgramSpending", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	spending, err := h.spendingService.UpdateProgramSpending(c.Request.Context(), spendingID, req, actor)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to update program spending record")
		return
	}

	logger.Info("Program spending updated", slog.String("spending_id", spendingID))
	c.JSON(http.StatusOK, dto.ToProgramSpendingResponse(spending))
}

// deleteProgramSpending handles DELETE /program-spending/:spendingID.
func (h *programSpendingHandler) deleteProgramSpending(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	spendingID := c.Param("spendingID")

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	if err := h.spendingService.DeleteProgramSpending(c.Request.Context(), spendingID, actor); err != nil {
		respondServiceError(c, logger, err, "Failed to delete program spending record")
		return
	}

	logger.Info("Program spending deleted", slog.String("spending_id", spendingID))
	c.Status(http.StatusNoContent)
}

// getProgramSpendingAsOf handles GET /program-spending/:spendingID/as-of?at=.
func (h *programSpendingHandler) getProgramSpendingAsOf(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var params dto.AsOfParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	spending, err := h.spendingService.GetProgramSpendingAsOf(c.Request.Context(), c.Param("spendingID"), params.At)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve program spending as of instant")
		return
	}
	c.JSON(http.StatusOK, dto.ToProgramSpendingResponse(spending))
}

// getProgramSpendingHistory handles GET /program-spending/:spendingID/history.
func (h *programSpendingHandler) getProgramSpendingHistory(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	versions, err := h.spendingService.GetProgramSpendingHistory(c.Request.Context(), c.Param("spendingID"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve program spending history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": dto.ToListProgramSpendingResponse(versions)})
}

// listProgramSpendingChanges handles GET /program-spending/changes?from=&to=,
// the audit view of every program-spending version recorded in the window.
func (h *programSpendingHandler) listProgramSpendingChanges(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var params dto.ChangeRangeParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	versions, err := h.spendingService.GetProgramSpendingChanges(c.Request.Context(), params.From, params.To)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to list program spending changes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": dto.ToListProgramSpendingResponse(versions)})
}
