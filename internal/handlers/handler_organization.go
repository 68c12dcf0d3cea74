package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opennpo/nonprofit_books_app/internal/core/services"
	"github.com/opennpo/nonprofit_books_app/internal/dto"
	"github.com/opennpo/nonprofit_books_app/internal/middleware"
)

// organizationHandler handles HTTP requests related to organizations.
type organizationHandler struct {
	orgService *services.OrganizationService
}

func newOrganizationHandler(os *services.OrganizationService) *organizationHandler {
	return &organizationHandler{orgService: os}
}

// registerOrganizationRoutes registers routes related to organizations.
func registerOrganizationRoutes(rg *gin.RouterGroup, orgService *services.OrganizationService) {
	h := newOrganizationHandler(orgService)

	orgs := rg.Group("/organizations")
	{
		orgs.POST("", h.createOrganization)
		orgs.GET("", h.listOrganizations)
		orgs.GET("/changes", h.listOrganizationChanges)
		orgs.GET("/:orgID", h.getOrganization)
		orgs.PUT("/:orgID", h.updateOrganization)
		orgs.DELETE("/:orgID", h.deleteOrganization)
		orgs.GET("/:orgID/as-of", h.getOrganizationAsOf)
		orgs.GET("/:orgID/history", h.getOrganizationHistory)
	}
}

// createOrganization handles POST /organizations.
func (h *organizationHandler) createOrganization(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateOrganization", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	org, err := h.orgService.CreateOrganization(c.Request.Context(), req, actor)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to create organization")
		return
	}

	logger.Info("Organization created", slog.String("organization_id", org.EntityID))
	c.JSON(http.StatusCreated, dto.ToOrganizationResponse(org))
}

// getOrganization handles GET /organizations/:orgID.
func (h *organizationHandler) getOrganization(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	org, err := h.orgService.GetOrganizationByID(c.Request.Context(), c.Param("orgID"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve organization")
		return
	}
	c.JSON(http.StatusOK, dto.ToOrganizationResponse(org))
}

// listOrganizations handles GET /organizations.
func (h *organizationHandler) listOrganizations(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	orgs, err := h.orgService.ListOrganizations(c.Request.Context())
	if err != nil {
		respondServiceError(c, logger, err, "Failed to list organizations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"organizations": dto.ToListOrganizationResponse(orgs)})
}

// updateOrganization handles PUT /organizations/:orgID.
func (h *organizationHandler) updateOrganization(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	orgID := c.Param("orgID")

	var req dto.UpdateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for UpdateOrganization", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	org, err := h.orgService.UpdateOrganization(c.Request.Context(), orgID, req, actor)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to update organization")
		return
	}

	logger.Info("Organization updated", slog.String("organization_id", orgID))
	c.JSON(http.StatusOK, dto.ToOrganizationResponse(org))
}

// deleteOrganization handles DELETE /organizations/:orgID.
func (h *organizationHandler) deleteOrganization(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	orgID := c.Param("orgID")

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	if err := h.orgService.DeleteOrganization(c.Request.Context(), orgID, actor); err != nil {
		respondServiceError(c, logger, err, "Failed to delete organization")
		return
	}

	logger.Info("Organization deleted", slog.String("organization_id", orgID))
	c.Status(http.StatusNoContent)
}

// getOrganizationAsOf handles GET /organizations/:orgID/as-of?at=.
func (h *organizationHandler) getOrganizationAsOf(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var params dto.AsOfParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	org, err := h.orgService.GetOrganizationAsOf(c.Request.Context(), c.Param("orgID"), params.At)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve organization as of instant")
		return
	}
	c.JSON(http.StatusOK, dto.ToOrganizationResponse(org))
}

// getOrganizationHistory handles GET /organizations/:orgID/history.
func (h *organizationHandler) getOrganizationHistory(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	versions, err := h.orgService.GetOrganizationHistory(c.Request.Context(), c.Param("orgID"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve organization history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": dto.ToListOrganizationResponse(versions)})
}

// listOrganizationChanges handles GET /organizations/changes?from=&to=, the
// audit view of every organization version recorded in the window.
func (h *organizationHandler) listOrganizationChanges(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var params dto.ChangeRangeParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	versions, err := h.orgService.GetOrganizationChanges(c.Request.Context(), params.From, params.To)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to list organization changes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": dto.ToListOrganizationResponse(versions)})
}
