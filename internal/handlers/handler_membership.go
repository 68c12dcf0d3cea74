package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opennpo/nonprofit_books_app/internal/core/services"
	"github.com/opennpo/nonprofit_books_app/internal/dto"
	"github.com/opennpo/nonprofit_books_app/internal/middleware"
)

// membershipHandler handles HTTP requests related to memberships.
type membershipHandler struct {
	membershipService *services.MembershipService
}

func newMembershipHandler(ms *services.MembershipService) *membershipHandler {
	return &membershipHandler{membershipService: ms}
}

// registerMembershipRoutes registers routes related to memberships.
func registerMembershipRoutes(rg *gin.RouterGroup, membershipService *services.MembershipService) {
	h := newMembershipHandler(membershipService)

	memberships := rg.Group("/memberships")
	{
		memberships.POST("", h.createMembership)
		memberships.GET("/changes", h.listMembershipChanges)
		memberships.GET("/:membershipID", h.getMembership)
		memberships.PUT("/:membershipID", h.updateMembership)
		memberships.DELETE("/:membershipID", h.deleteMembership)
		memberships.GET("/:membershipID/as-of", h.getMembershipAsOf)
		memberships.GET("/:membershipID/history", h.getMembershipHistory)
	}
	rg.GET("/organizations/:orgID/memberships", h.listMemberships)
}

// createMembership handles POST /memberships.
func (h *membershipHandler) createMembership(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateMembership", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	membership, err := h.membershipService.CreateMembership(c.Request.Context(), req, actor)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to create membership")
		return
	}

	logger.Info("Membership created", slog.String("membership_id", membership.EntityID))
	c.JSON(http.StatusCreated, dto.ToMembershipResponse(membership))
}

// getMembership handles GET /memberships/:membershipID.
func (h *membershipHandler) getMembership(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	membership, err := h.membershipService.GetMembershipByID(c.Request.Context(), c.Param("membershipID"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve membership")
		return
	}
	c.JSON(http.StatusOK, dto.ToMembershipResponse(membership))
}

// listMemberships handles GET /organizations/:orgID/memberships.
func (h *membershipHandler) listMemberships(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	memberships, err := h.membershipService.ListMembershipsByOrganization(c.Request.Context(), c.Param("orgID"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to list memberships")
		return
	}
	c.JSON(http.StatusOK, gin.H{"memberships": dto.ToListMembershipResponse(memberships)})
}

// updateMembership handles PUT /memberships/:membershipID.
func (h *membershipHandler) updateMembership(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	membershipID := c.Param("membershipID")

	var req dto.UpdateMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for UpdateMembership", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	membership, err := h.membershipService.UpdateMembership(c.Request.Context(), membershipID, req, actor)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to update membership")
		return
	}

	logger.Info("Membership updated", slog.String("membership_id", membershipID))
	c.JSON(http.StatusOK, dto.ToMembershipResponse(membership))
}

// deleteMembership handles DELETE /memberships/:membershipID.
func (h *membershipHandler) deleteMembership(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	membershipID := c.Param("membershipID")

	actor, ok := requireActor(c)
	if !ok {
		return
	}

	if err := h.membershipService.DeleteMembership(c.Request.Context(), membershipID, actor); err != nil {
		respondServiceError(c, logger, err, "Failed to delete membership")
		return
	}

	logger.Info("Membership deleted", slog.String("membership_id", membershipID))
	c.Status(http.StatusNoContent)
}

// getMembershipAsOf handles GET /memberships/:membershipID/as-of?at=.
func (h *membershipHandler) getMembershipAsOf(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var params dto.AsOfParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	membership, err := h.membershipService.GetMembershipAsOf(c.Request.Context(), c.Param("membershipID"), params.At)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve membership as of instant")
		return
	}
	c.JSON(http.StatusOK, dto.ToMembershipResponse(membership))
}

// getMembershipHistory handles GET /memberships/:membershipID/history.
func (h *membershipHandler) getMembershipHistory(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	versions, err := h.membershipService.GetMembershipHistory(c.Request.Context(), c.Param("membershipID"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve membership history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": dto.ToListMembershipResponse(versions)})
}

// listMembershipChanges handles GET /memberships/changes?from=&to=, the audit
// view of every membership version recorded in the window.
func (h *membershipHandler) listMembershipChanges(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var params dto.ChangeRangeParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	versions, err := h.membershipService.GetMembershipChanges(c.Request.Context(), params.From, params.To)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to list membership changes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": dto.ToListMembershipResponse(versions)})
}
